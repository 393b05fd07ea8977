// Package command parses mapper command lines into typed calls against the
// core: the atlas store, the synchronization session, and the pathfinder.
// Responses are synthesized plain-text lines handed to the session injector.
package command

import "strings"

// ParseResult holds the parsed verb and arguments from a command line.
type ParseResult struct {
	// Verb is the first word of the input, lowercased.
	Verb string
	// Args are the remaining words after the verb.
	Args []string
	// RawArgs is the raw text after the verb (preserving spacing for notes).
	RawArgs string
}

// Parse splits a command line into a verb and arguments.
//
// Precondition: line should be trimmed of leading/trailing whitespace.
// Postcondition: Returns a ParseResult. If line is empty, Verb is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexByte(line, ' ')
	if spaceIdx < 0 {
		return ParseResult{
			Verb: strings.ToLower(line),
		}
	}

	verb := strings.ToLower(line[:spaceIdx])
	rest := strings.TrimSpace(line[spaceIdx+1:])

	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}

	return ParseResult{
		Verb:    verb,
		Args:    args,
		RawArgs: rest,
	}
}
