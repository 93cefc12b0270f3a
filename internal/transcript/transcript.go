// Package transcript parses chat-export text blobs into structured messages
// and renders them back into a single linear document suitable for storage
// as a document's extracted text. Pure and deterministic, no I/O.
//
// Export formats vary by locale and platform:
//
//	[2024/01/15, 14:30:22] John Doe: Message text here
//	15/01/2024, 14:30 - John Doe: Message text here
//	1/15/24, 2:30 PM - John Doe: Message text here
package transcript

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Message is one parsed chat message.
type Message struct {
	Timestamp time.Time
	Sender    string
	Content   string
	IsMedia   bool
}

// ParseResult is the transient output of Parse, consumed once to synthesize
// a document's initial text.
type ParseResult struct {
	Messages     []Message
	Participants []string
	StartsAt     time.Time // zero when no messages parsed
	EndsAt       time.Time
	MessageCount int
}

// Line formats tried in priority order. The first match wins.
var messagePatterns = []*regexp.Regexp{
	// [YYYY/MM/DD, HH:mm:ss] Sender: Message
	regexp.MustCompile(`^\[(\d{4}/\d{1,2}/\d{1,2}),\s*(\d{1,2}:\d{2}(?::\d{2})?)\]\s*(.+?):\s*(.+)$`),
	// DD/MM/YYYY, HH:mm - Sender: Message
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4}),\s*(\d{1,2}:\d{2}(?::\d{2})?)\s*-\s*(.+?):\s*(.+)$`),
	// M/D/YY, H:mm AM/PM - Sender: Message
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),\s*(\d{1,2}:\d{2}(?:\s*[APap][Mm])?)\s*-\s*(.+?):\s*(.+)$`),
}

// System-event variants: same date/time prefix, no "sender:" segment.
// Recognized and discarded.
var systemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[(\d{4}/\d{1,2}/\d{1,2}),\s*(\d{1,2}:\d{2}(?::\d{2})?)\]\s*(.+)$`),
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{4}),\s*(\d{1,2}:\d{2}(?::\d{2})?)\s*-\s*(.+)$`),
}

var mediaIndicators = []string{
	"<media omitted>",
	"image omitted",
	"video omitted",
	"audio omitted",
	"sticker omitted",
	"document omitted",
	"gif omitted",
	"contact card omitted",
}

// Parse turns a raw chat export into structured messages. Lines matching no
// known format are continuations of the previous message body; continuation
// lines with no previous message are dropped.
func Parse(raw string) ParseResult {
	var messages []Message
	participants := make(map[string]struct{})
	var current *Message

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		matched := false
		for _, pattern := range messagePatterns {
			m := pattern.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}

			if current != nil {
				messages = append(messages, *current)
			}

			sender := strings.TrimSpace(m[3])
			content := strings.TrimSpace(m[4])
			participants[sender] = struct{}{}
			current = &Message{
				Timestamp: parseTimestamp(m[1], m[2]),
				Sender:    sender,
				Content:   content,
				IsMedia:   isMediaContent(content),
			}
			matched = true
			break
		}

		if !matched {
			for _, pattern := range systemPatterns {
				if pattern.MatchString(trimmed) {
					matched = true
					break
				}
			}
		}

		if !matched && current != nil {
			current.Content += "\n" + trimmed
		}
	}

	if current != nil {
		messages = append(messages, *current)
	}

	names := make([]string, 0, len(participants))
	for name := range participants {
		names = append(names, name)
	}
	sort.Strings(names)

	result := ParseResult{
		Messages:     messages,
		Participants: names,
		MessageCount: len(messages),
	}
	if len(messages) > 0 {
		// Input is assumed chronological; first/last in parse order.
		result.StartsAt = messages[0].Timestamp
		result.EndsAt = messages[len(messages)-1].Timestamp
	}
	return result
}

// Render serializes a parse result into a readable linear document:
// participants, a date range header, and every non-media message.
func Render(result ParseResult) string {
	lines := []string{
		"Chat Export",
		"Participants: " + strings.Join(result.Participants, ", "),
		fmt.Sprintf("Period: %s to %s", formatDate(result.StartsAt), formatDate(result.EndsAt)),
		fmt.Sprintf("Messages: %d", result.MessageCount),
		"",
		"---",
		"",
	}

	for _, msg := range result.Messages {
		if msg.IsMedia {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Timestamp.Format("2006/01/02 15:04:05"), msg.Sender, msg.Content))
	}

	return strings.Join(lines, "\n")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006/01/02")
}

func isMediaContent(content string) bool {
	lower := strings.ToLower(content)
	for _, indicator := range mediaIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

var (
	dateYMD = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	dateDMY = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dateMDY = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
)

// parseTimestamp resolves the date and time parts of a matched line. Date
// forms are tried in the same priority order as the line patterns;
// two-digit years are normalized by prefixing 20. Returns the zero time
// when nothing matches.
func parseTimestamp(datePart, timePart string) time.Time {
	var year, month, day int

	if m := dateYMD.FindStringSubmatch(datePart); m != nil {
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	} else if m := dateDMY.FindStringSubmatch(datePart); m != nil {
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
	} else if m := dateMDY.FindStringSubmatch(datePart); m != nil {
		month, day = atoi(m[1]), atoi(m[2])
		if len(m[3]) == 2 {
			year = atoi("20" + m[3])
		} else {
			year = atoi(m[3])
		}
	} else {
		return time.Time{}
	}

	hour, minute, second := parseClock(timePart)
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

// parseClock handles "H:MM", "H:MM:SS" and "H:MM AM/PM" forms, converting
// 12-hour times to 24-hour.
func parseClock(timePart string) (hour, minute, second int) {
	t := strings.TrimSpace(timePart)

	meridiem := ""
	lower := strings.ToLower(t)
	if strings.HasSuffix(lower, "am") || strings.HasSuffix(lower, "pm") {
		meridiem = lower[len(lower)-2:]
		t = strings.TrimSpace(t[:len(t)-2])
	}

	parts := strings.Split(t, ":")
	if len(parts) >= 2 {
		hour = atoi(parts[0])
		minute = atoi(parts[1])
	}
	if len(parts) >= 3 {
		second = atoi(parts[2])
	}

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, second
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
