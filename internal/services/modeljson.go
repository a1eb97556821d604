package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON parses a model response that is supposed to be JSON but
// routinely arrives wrapped in markdown code fences. Isolated here so the
// string handling is testable without any network call.
func decodeModelJSON(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}
