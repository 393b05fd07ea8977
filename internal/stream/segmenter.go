package stream

import (
	"bytes"
	"strings"

	"github.com/mapward/mapward/internal/atlas"
)

// Telnet IAC constants, needed to skip option negotiation inside the tap.
const (
	iac  byte = 255
	dont byte = 254
	do   byte = 253
	wont byte = 252
	will byte = 251
	sb   byte = 250
	se   byte = 240
)

// maxTagLen bounds how many bytes may accumulate inside an unclosed tag
// before the segmenter declares the boundary malformed and resynchronizes.
const maxTagLen = 128

type iacState int

const (
	iacNone iacState = iota
	iacSeen
	iacOption
	iacSub
	iacSubSeen
)

type section int

const (
	secNone section = iota
	secName
	secDesc
	secExits
	secPrompt
)

// pending accumulates one room presentation across its tags until the
// closing prompt finalizes it.
type pending struct {
	name     string
	hasName  bool
	desc     string
	hasDesc  bool
	dynamic  bytes.Buffer
	exits    string
	hasExits bool
	closed   bool
}

// Segmenter converts raw relayed server bytes into a lazy, unbounded,
// non-restartable sequence of events. Feed it byte slices as they arrive;
// partial tags and lines buffer across feeds. It never blocks and its cost
// per fed byte is bounded.
type Segmenter struct {
	iac     iacState
	inTag   bool
	tag     bytes.Buffer
	text    bytes.Buffer
	entity  bytes.Buffer
	inEnt   bool
	inRoom  bool
	ignore  int // depth of <gratuitous> grouping tags
	section section
	room    *pending
}

// NewSegmenter creates a segmenter in its initial scanning state.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Feed consumes the next chunk of relayed server bytes and returns the
// events completed by it, in stream order.
//
// Postcondition: Returns zero or more events; the segmenter retains any
// partial tag or section content for the next feed.
func (s *Segmenter) Feed(p []byte) []Event {
	var events []Event
	for _, b := range p {
		events = s.feedByte(b, events)
	}
	return events
}

func (s *Segmenter) feedByte(b byte, events []Event) []Event {
	// Telnet negotiation is invisible to segmentation.
	switch s.iac {
	case iacSeen:
		switch b {
		case will, wont, do, dont:
			s.iac = iacOption
		case sb:
			s.iac = iacSub
		case iac:
			s.iac = iacNone // escaped 0xFF, not meaningful in tag text
		default:
			s.iac = iacNone
		}
		return events
	case iacOption:
		s.iac = iacNone
		return events
	case iacSub:
		if b == iac {
			s.iac = iacSubSeen
		}
		return events
	case iacSubSeen:
		if b == se {
			s.iac = iacNone
		} else {
			s.iac = iacSub
		}
		return events
	}
	if b == iac {
		s.iac = iacSeen
		return events
	}

	if s.inTag {
		if b == '>' {
			tag := s.tag.String()
			s.tag.Reset()
			s.inTag = false
			return s.handleTag(tag, events)
		}
		if s.tag.Len() >= maxTagLen {
			s.inTag = false
			s.tag.Reset()
			return append(events, ParseError{Reason: "unterminated tag"})
		}
		s.tag.WriteByte(b)
		return events
	}

	if b == '<' {
		s.flushEntity()
		s.inTag = true
		return events
	}

	if b == '\r' {
		return events
	}

	if s.inEnt {
		if b == ';' {
			s.writeText(decodeEntity(s.entity.String()))
			s.entity.Reset()
			s.inEnt = false
			return events
		}
		if s.entity.Len() >= 6 {
			s.flushEntity()
			s.writeText(string(b))
			return events
		}
		s.entity.WriteByte(b)
		return events
	}
	if b == '&' {
		s.inEnt = true
		return events
	}

	s.writeText(string(b))
	return events
}

// flushEntity emits an unterminated entity literally.
func (s *Segmenter) flushEntity() {
	if s.inEnt {
		s.writeText("&" + s.entity.String())
		s.entity.Reset()
		s.inEnt = false
	}
}

func decodeEntity(name string) string {
	switch name {
	case "lt":
		return "<"
	case "gt":
		return ">"
	case "amp":
		return "&"
	case "quot":
		return "\""
	default:
		return "&" + name + ";"
	}
}

// writeText routes plain text to whichever section is open. Text outside
// every section and outside a room is relayed traffic the mapper does not
// care about.
func (s *Segmenter) writeText(text string) {
	switch {
	case s.ignore > 0:
		// Gratuitous content is relayed but never mapped.
	case s.section != secNone:
		s.text.WriteString(text)
	case s.inRoom && s.room != nil:
		s.room.dynamic.WriteString(text)
	}
}

func (s *Segmenter) handleTag(tag string, events []Event) []Event {
	s.flushEntity()
	name, attrs, closing, selfClosing := splitTag(tag)

	if name == "gratuitous" {
		if closing {
			if s.ignore > 0 {
				s.ignore--
			}
		} else {
			s.ignore++
		}
		return events
	}
	if s.ignore > 0 {
		return events
	}

	if selfClosing && name == "movement" {
		dir, _ := atlas.ParseDirection(attrValue(attrs, "dir"))
		return append(events, MovementEcho{Dir: dir})
	}

	switch name {
	case "room":
		if closing {
			if !s.inRoom || s.room == nil {
				return append(events, ParseError{Reason: "room close without open"})
			}
			s.inRoom = false
			s.room.closed = true
		} else {
			if s.inRoom && s.room != nil {
				events = append(events, ParseError{Reason: "room presentation interrupted"})
			}
			s.inRoom = true
			s.room = &pending{}
		}
	case "name":
		events = s.enterOrClose(closing, secName, events, func(text string) {
			if s.room != nil {
				s.room.name = strings.TrimSpace(text)
				s.room.hasName = true
			}
		})
	case "description":
		events = s.enterOrClose(closing, secDesc, events, func(text string) {
			if s.room != nil {
				s.room.desc = strings.TrimRight(text, "\n")
				s.room.hasDesc = true
			}
		})
	case "exits":
		events = s.enterOrClose(closing, secExits, events, func(text string) {
			if s.room != nil {
				s.room.exits = strings.TrimSpace(text)
				s.room.hasExits = true
			}
		})
	case "prompt":
		if !closing {
			if s.section != secNone {
				events = append(events, ParseError{Reason: "section opened inside another section"})
				s.text.Reset()
			}
			s.section = secPrompt
			break
		}
		if s.section != secPrompt {
			s.text.Reset()
			s.section = secNone
			return append(events, ParseError{Reason: "mismatched closing tag"})
		}
		glyph := promptTerrain(s.text.String())
		s.text.Reset()
		s.section = secNone
		if s.room != nil && s.room.closed {
			events = append(events, s.finalizeRoom(glyph)...)
		}
		events = append(events, Prompt{TerrainGlyph: glyph})
	default:
		// Unrecognized tags pass through segmentation untouched.
	}
	return events
}

// enterOrClose opens a section or closes it and hands its text to done.
func (s *Segmenter) enterOrClose(closing bool, sec section, events []Event, done func(string)) []Event {
	if !closing {
		if s.section != secNone {
			events = append(events, ParseError{Reason: "section opened inside another section"})
			s.text.Reset()
		}
		s.section = sec
		return events
	}
	if s.section != sec {
		s.text.Reset()
		s.section = secNone
		return append(events, ParseError{Reason: "mismatched closing tag"})
	}
	text := s.text.String()
	s.text.Reset()
	s.section = secNone
	done(text)
	return events
}

// finalizeRoom turns the pending presentation into an event. A presentation
// without a name is malformed and skipped.
func (s *Segmenter) finalizeRoom(glyph byte) []Event {
	room := s.room
	s.room = nil
	if !room.hasName || room.name == "" {
		return []Event{ParseError{Reason: "room presentation without name"}}
	}
	pres := RoomPresentation{
		Name:         room.name,
		StaticDesc:   room.desc,
		DynamicDesc:  strings.TrimSpace(room.dynamic.String()),
		TerrainGlyph: glyph,
		RawExits:     room.exits,
	}
	if room.hasExits {
		pres.Exits = ParseExitsLine(room.exits)
	}
	return []Event{pres}
}

// promptTerrain extracts the terrain glyph from prompt text. The glyph sits
// in the first two characters, optionally preceded by a light symbol.
func promptTerrain(text string) byte {
	for i := 0; i < len(text) && i < 2; i++ {
		if _, ok := atlas.TerrainForGlyph(text[i]); ok {
			return text[i]
		}
	}
	return 0
}

// splitTag separates a raw tag body into its name, attribute text, and
// closing/self-closing markers.
func splitTag(tag string) (name, attrs string, closing, selfClosing bool) {
	tag = strings.TrimSpace(tag)
	if strings.HasPrefix(tag, "/") {
		closing = true
		tag = tag[1:]
	}
	if strings.HasSuffix(tag, "/") {
		selfClosing = true
		tag = strings.TrimRight(tag, "/")
		tag = strings.TrimSpace(tag)
	}
	if idx := strings.IndexAny(tag, " \t"); idx >= 0 {
		return tag[:idx], strings.TrimSpace(tag[idx+1:]), closing, selfClosing
	}
	return tag, "", closing, selfClosing
}

// attrValue extracts a key=value attribute from tag attribute text.
// Values may be bare or quoted.
func attrValue(attrs, key string) string {
	for _, field := range strings.Fields(attrs) {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k != key {
			continue
		}
		return strings.Trim(v, `"'`)
	}
	return ""
}

// ParseExitsLine parses the content of an exits line ("Exits: north, (east),
// =south=.") into per-direction entries with their inline decorations.
// Entries that do not resolve to a direction are skipped.
func ParseExitsLine(line string) []ExitInfo {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "Exits:"); ok {
		line = rest
	} else if rest, ok := strings.CutPrefix(line, "Exit:"); ok {
		line = rest
	}
	line = strings.TrimSuffix(strings.TrimSpace(line), ".")
	if line == "" || strings.EqualFold(line, "none!") || strings.EqualFold(line, "none") {
		return nil
	}

	var exits []ExitInfo
	for _, token := range strings.Split(line, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		var info ExitInfo
		for {
			switch {
			case cutWrap(&token, "??", "??"), cutWrap(&token, "!!", "!!"):
				// Undefined-room and deathtrap markers are emulation
				// conveniences, not flags worth keeping.
				continue
			case cutWrap(&token, "=", "="):
				info.Road = true
				continue
			case cutWrap(&token, "-", "-"):
				info.Trail = true
				continue
			case cutWrap(&token, "(", ")"):
				info.Door = true
				continue
			case cutWrap(&token, "[", "]"):
				info.Door = true
				info.Hidden = true
				continue
			case cutWrap(&token, "/", `\`):
				info.Climb = true
				continue
			}
			break
		}
		dir, ok := atlas.ParseDirection(strings.ToLower(token))
		if !ok {
			continue
		}
		info.Dir = dir
		exits = append(exits, info)
	}
	return exits
}

// cutWrap strips a prefix/suffix pair from the token if both are present.
func cutWrap(token *string, prefix, suffix string) bool {
	t := *token
	if len(t) > len(prefix)+len(suffix) && strings.HasPrefix(t, prefix) && strings.HasSuffix(t, suffix) {
		*token = t[len(prefix) : len(t)-len(suffix)]
		return true
	}
	return false
}
