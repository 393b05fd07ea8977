package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mapward/mapward/internal/atlas"
)

const sampleRoom = "<movement dir=north/>" +
	"<room><name>Market Square</name>" +
	"<description>The heart of town.\nStalls crowd the cobbles.\n</description>" +
	"A beggar is sitting here.\n" +
	"<exits>Exits: north, =south=, (east).\n</exits></room>" +
	"<prompt>#&gt;</prompt>"

func TestFeedFullPresentation(t *testing.T) {
	events := NewSegmenter().Feed([]byte(sampleRoom))
	require.Len(t, events, 3)

	move, ok := events[0].(MovementEcho)
	require.True(t, ok)
	assert.Equal(t, atlas.North, move.Dir)

	pres, ok := events[1].(RoomPresentation)
	require.True(t, ok)
	assert.Equal(t, "Market Square", pres.Name)
	assert.Equal(t, "The heart of town.\nStalls crowd the cobbles.", pres.StaticDesc)
	assert.Equal(t, "A beggar is sitting here.", pres.DynamicDesc)
	assert.Equal(t, byte('#'), pres.TerrainGlyph)
	require.Len(t, pres.Exits, 3)
	assert.Equal(t, ExitInfo{Dir: atlas.North}, pres.Exits[0])
	assert.Equal(t, ExitInfo{Dir: atlas.South, Road: true}, pres.Exits[1])
	assert.Equal(t, ExitInfo{Dir: atlas.East, Door: true}, pres.Exits[2])

	prompt, ok := events[2].(Prompt)
	require.True(t, ok)
	assert.Equal(t, byte('#'), prompt.TerrainGlyph)
}

func TestFeedSplitAcrossChunksProperty(t *testing.T) {
	whole := NewSegmenter().Feed([]byte(sampleRoom))

	rapid.Check(t, func(t *rapid.T) {
		seg := NewSegmenter()
		var events []Event
		data := []byte(sampleRoom)
		for len(data) > 0 {
			n := rapid.IntRange(1, len(data)).Draw(t, "chunk")
			events = append(events, seg.Feed(data[:n])...)
			data = data[n:]
		}
		require.Equal(t, whole, events)
	})
}

func TestFeedDecodesEntities(t *testing.T) {
	input := "<room><name>The Sign of the &lt;Red&gt; Dragon &amp; Keg</name></room><prompt>#</prompt>"
	events := NewSegmenter().Feed([]byte(input))
	require.Len(t, events, 2)
	pres, ok := events[0].(RoomPresentation)
	require.True(t, ok)
	assert.Equal(t, "The Sign of the <Red> Dragon & Keg", pres.Name)
}

func TestFeedSkipsTelnetNegotiation(t *testing.T) {
	input := []byte("<room><na")
	input = append(input, 255, 251, 1) // IAC WILL ECHO mid-tag
	input = append(input, []byte("me>Cellar</name></room><prompt>#</prompt>")...)

	events := NewSegmenter().Feed(input)
	require.Len(t, events, 2)
	pres, ok := events[0].(RoomPresentation)
	require.True(t, ok)
	assert.Equal(t, "Cellar", pres.Name)
}

func TestFeedSkipsSubnegotiation(t *testing.T) {
	input := []byte{255, 250, 24, 'j', 'u', 'n', 'k', 255, 240}
	input = append(input, []byte("<room><name>Attic</name></room><prompt>#</prompt>")...)

	events := NewSegmenter().Feed(input)
	require.Len(t, events, 2)
	assert.Equal(t, "Attic", events[0].(RoomPresentation).Name)
}

func TestFeedIgnoresGratuitousContent(t *testing.T) {
	input := "<gratuitous><room><name>Scried Room</name></room><prompt>#</prompt></gratuitous>" +
		"<room><name>Real Room</name></room><prompt>.</prompt>"

	events := NewSegmenter().Feed([]byte(input))
	require.Len(t, events, 2)
	pres, ok := events[0].(RoomPresentation)
	require.True(t, ok)
	assert.Equal(t, "Real Room", pres.Name)
	assert.Equal(t, byte('.'), events[1].(Prompt).TerrainGlyph)
}

func TestFeedUnterminatedTag(t *testing.T) {
	input := make([]byte, 0, maxTagLen+10)
	input = append(input, '<')
	for i := 0; i < maxTagLen+5; i++ {
		input = append(input, 'x')
	}

	events := NewSegmenter().Feed(input)
	require.Len(t, events, 1)
	perr, ok := events[0].(ParseError)
	require.True(t, ok)
	assert.Equal(t, "unterminated tag", perr.Reason)
}

func TestFeedRoomWithoutName(t *testing.T) {
	input := "<room><description>Mist.\n</description></room><prompt>#</prompt>"
	events := NewSegmenter().Feed([]byte(input))
	require.Len(t, events, 2)
	perr, ok := events[0].(ParseError)
	require.True(t, ok)
	assert.Equal(t, "room presentation without name", perr.Reason)
	_, ok = events[1].(Prompt)
	assert.True(t, ok)
}

func TestFeedInterruptedRoom(t *testing.T) {
	input := "<room><name>First</name><room><name>Second</name></room><prompt>#</prompt>"
	events := NewSegmenter().Feed([]byte(input))
	require.Len(t, events, 3)
	perr, ok := events[0].(ParseError)
	require.True(t, ok)
	assert.Equal(t, "room presentation interrupted", perr.Reason)
	assert.Equal(t, "Second", events[1].(RoomPresentation).Name)
}

func TestFeedMovementWithoutDirection(t *testing.T) {
	events := NewSegmenter().Feed([]byte("<movement/>"))
	require.Len(t, events, 1)
	move, ok := events[0].(MovementEcho)
	require.True(t, ok)
	assert.False(t, move.Dir.IsValid())
}

func TestFeedBarePrompt(t *testing.T) {
	events := NewSegmenter().Feed([]byte("<prompt>~&gt;</prompt>"))
	require.Len(t, events, 1)
	prompt, ok := events[0].(Prompt)
	require.True(t, ok)
	assert.Equal(t, byte('~'), prompt.TerrainGlyph)
}

func TestFeedPromptWithLightSymbol(t *testing.T) {
	// The terrain glyph may sit second, after a light symbol.
	events := NewSegmenter().Feed([]byte("<prompt>*#&gt;</prompt>"))
	require.Len(t, events, 1)
	assert.Equal(t, byte('#'), events[0].(Prompt).TerrainGlyph)
}

func TestParseExitsLine(t *testing.T) {
	exits := ParseExitsLine(`Exits: north, =south=, (east), [west], /up\, -down-.`)
	require.Len(t, exits, 6)
	assert.Equal(t, ExitInfo{Dir: atlas.North}, exits[0])
	assert.Equal(t, ExitInfo{Dir: atlas.South, Road: true}, exits[1])
	assert.Equal(t, ExitInfo{Dir: atlas.East, Door: true}, exits[2])
	assert.Equal(t, ExitInfo{Dir: atlas.West, Door: true, Hidden: true}, exits[3])
	assert.Equal(t, ExitInfo{Dir: atlas.Up, Climb: true}, exits[4])
	assert.Equal(t, ExitInfo{Dir: atlas.Down, Trail: true}, exits[5])
}

func TestParseExitsLineNone(t *testing.T) {
	assert.Nil(t, ParseExitsLine("Exits: none!"))
	assert.Nil(t, ParseExitsLine("Exit: none."))
	assert.Nil(t, ParseExitsLine(""))
}

func TestParseExitsLineNestedDecorations(t *testing.T) {
	exits := ParseExitsLine("Exits: ??=north=??.")
	require.Len(t, exits, 1)
	assert.Equal(t, ExitInfo{Dir: atlas.North, Road: true}, exits[0])
}

func TestParseExitsLineSkipsUnknownTokens(t *testing.T) {
	exits := ParseExitsLine("Exits: north, somewhere, south.")
	require.Len(t, exits, 2)
	assert.Equal(t, atlas.North, exits[0].Dir)
	assert.Equal(t, atlas.South, exits[1].Dir)
}
