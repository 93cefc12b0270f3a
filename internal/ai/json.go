package ai

import (
	"errors"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("```json\n?|\n?```")

// extractJSON pulls the JSON object out of a model response that may be
// wrapped in code fences or surrounded by preamble text.
func extractJSON(response string) ([]byte, error) {
	cleaned := codeFencePattern.ReplaceAllString(response, "")
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New("no JSON object found in response")
	}
	return []byte(cleaned[start : end+1]), nil
}
