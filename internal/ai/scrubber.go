package ai

import (
	"context"
	"fmt"
	"strings"
)

const piiSystemPrompt = `You are a PII redaction specialist for a small residential community's document archive.

Your task: Replace personally identifiable information with typed placeholders, while preserving context needed for building management.

REDACT these categories:
- Government ID numbers: [REDACTED_ID_NUMBER]
- Phone numbers (landline or mobile, any format): [REDACTED_PHONE]
- Email addresses: [REDACTED_EMAIL]
- Physical/postal addresses (when identifying a person's residence, NOT the building itself): [REDACTED_ADDRESS]
- Bank account numbers: [REDACTED_BANK_ACCOUNT]
- Financial amounts tied to specific individuals: [REDACTED_AMOUNT]

DO NOT REDACT:
- Names of people acting in official capacity (trustees, chairman, building manager, lawyers, contractors) — these are public roles
- The building's own name or address
- Company names (management companies, contractor businesses)
- Unit numbers (these are building references, not personal addresses)
- Dates, meeting references, resolution numbers
- General financial figures (levy amounts, budgets) that aren't tied to one person's private finances

RULES:
- Return ONLY the redacted text, nothing else
- Preserve all formatting (paragraphs, bullet points, line breaks)
- If zero PII is found, return the text unchanged
- When in doubt, redact — it's safer to over-redact than under-redact`

const (
	// scrubSegmentSize is the per-request character budget for long texts.
	scrubSegmentSize = 15000
	// scrubOverlap is carried between segments so redactions spanning a
	// boundary are not missed.
	scrubOverlap = 200

	scrubMaxTokens = 8192
)

// Scrubber redacts PII from document text using a language model for
// context-aware detection.
type Scrubber struct {
	api ChatAPI
}

// NewScrubber creates a Scrubber on top of a chat API.
func NewScrubber(api ChatAPI) *Scrubber {
	return &Scrubber{api: api}
}

// Scrub returns the text with PII replaced by [REDACTED_*] markers. Long
// documents are processed in overlapping segments and reassembled.
func (s *Scrubber) Scrub(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	runes := []rune(text)
	if len(runes) <= scrubSegmentSize {
		return s.api.Complete(ctx, piiSystemPrompt,
			"Redact PII from the following document text:\n\n"+text, scrubMaxTokens)
	}
	return s.scrubLong(ctx, runes)
}

func (s *Scrubber) scrubLong(ctx context.Context, runes []rune) (string, error) {
	var segments []string
	offset := 0
	for offset < len(runes) {
		end := offset + scrubSegmentSize
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[offset:end]))
		if end == len(runes) {
			break
		}
		offset = end - scrubOverlap
	}

	var out strings.Builder
	for i, segment := range segments {
		prompt := fmt.Sprintf("Redact PII from the following document text (segment %d of %d):\n\n%s",
			i+1, len(segments), segment)
		scrubbed, err := s.api.Complete(ctx, piiSystemPrompt, prompt, scrubMaxTokens)
		if err != nil {
			return "", err
		}
		if i > 0 {
			// Drop the re-scrubbed overlap carried from the previous
			// segment.
			scrubbedRunes := []rune(scrubbed)
			if len(scrubbedRunes) > scrubOverlap {
				scrubbed = string(scrubbedRunes[scrubOverlap:])
			} else {
				scrubbed = ""
			}
		}
		out.WriteString(scrubbed)
	}
	return out.String(), nil
}
