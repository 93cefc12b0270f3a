package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BracketedFormat(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] John Doe: Hello everyone"

	result := Parse(raw)

	require.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, "John Doe", msg.Sender)
	assert.Equal(t, "Hello everyone", msg.Content)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC), msg.Timestamp)
	assert.False(t, msg.IsMedia)
}

func TestParse_MultiLineMessage(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] John Doe: First line\n" +
		"second line without a timestamp\n" +
		"third line"

	result := Parse(raw)

	require.Equal(t, 1, result.MessageCount)
	assert.Equal(t, "First line\nsecond line without a timestamp\nthird line",
		result.Messages[0].Content)
}

func TestParse_MixedFormatsAndParticipants(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] A: first\n" +
		"15/01/2024, 14:31 - B: second"

	result := Parse(raw)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, []string{"A", "B"}, result.Participants)
	assert.True(t, result.Messages[0].Timestamp.Before(result.Messages[1].Timestamp))
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC), result.StartsAt)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 31, 0, 0, time.UTC), result.EndsAt)
}

func TestParse_TwelveHourFormatAndShortYear(t *testing.T) {
	raw := "1/15/24, 2:30 PM - Jane: afternoon message\n" +
		"1/15/24, 12:05 AM - Jane: midnight message"

	result := Parse(raw)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), result.Messages[0].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 5, 0, 0, time.UTC), result.Messages[1].Timestamp)
}

func TestParse_SystemEventDiscarded(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] A: real message\n" +
		"[2024/01/15, 14:31:00] A created the group\n" +
		"continuation of the real message"

	result := Parse(raw)

	// The system event is recognized and dropped; the continuation still
	// attaches to the previous real message.
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "real message\ncontinuation of the real message", result.Messages[0].Content)
	assert.Equal(t, []string{"A"}, result.Participants)
}

func TestParse_OrphanContinuationDropped(t *testing.T) {
	raw := "just some stray text\nwith no timestamp at all"

	result := Parse(raw)

	assert.Empty(t, result.Messages)
	assert.Equal(t, 0, result.MessageCount)
	assert.True(t, result.StartsAt.IsZero())
}

func TestParse_MediaMessageCountedButFlagged(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] A: <Media omitted>\n" +
		"[2024/01/15, 14:31:00] A: a real message"

	result := Parse(raw)

	require.Equal(t, 2, result.MessageCount)
	assert.True(t, result.Messages[0].IsMedia)
	assert.False(t, result.Messages[1].IsMedia)
}

func TestParse_ParticipantsSortedAndDeduplicated(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] Zoe: one\n" +
		"[2024/01/15, 14:31:22] Adam: two\n" +
		"[2024/01/15, 14:32:22] Zoe: three"

	result := Parse(raw)

	assert.Equal(t, []string{"Adam", "Zoe"}, result.Participants)
}

func TestRender_SkipsMediaAndIncludesHeader(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] A: hello there\n" +
		"[2024/01/15, 14:31:00] B: <Media omitted>\n" +
		"15/01/2024, 14:32 - B: goodbye"

	result := Parse(raw)
	doc := Render(result)

	assert.Contains(t, doc, "Participants: A, B")
	assert.Contains(t, doc, "Period: 2024/01/15 to 2024/01/15")
	assert.Contains(t, doc, "Messages: 3")
	assert.Contains(t, doc, "[2024/01/15 14:30:22] A: hello there")
	assert.Contains(t, doc, "[2024/01/15 14:32:00] B: goodbye")
	assert.NotContains(t, doc, "Media omitted")
}

func TestRender_EmptyResult(t *testing.T) {
	doc := Render(ParseResult{})

	assert.Contains(t, doc, "Period: unknown to unknown")
	assert.Contains(t, doc, "Messages: 0")
}

func TestParse_Deterministic(t *testing.T) {
	raw := "[2024/01/15, 14:30:22] A: one\n15/01/2024, 14:31 - B: two\nmore text"

	a := Parse(raw)
	b := Parse(raw)

	assert.Equal(t, a, b)
}
