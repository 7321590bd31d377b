package semantic

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// stripFences removes the markdown code fences models wrap JSON in even when
// told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeLenient parses model output into v. Strategies in order: standard
// JSON, mechanical repair (unquoted keys, single quotes, trailing commas),
// Hjson as the most lenient reading.
func DecodeLenient(raw string, v any) error {
	cleaned := stripFences(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	if repaired, err := jsonrepair.RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	var loose any
	if err := hjson.Unmarshal([]byte(cleaned), &loose); err == nil {
		if b, err := json.Marshal(loose); err == nil {
			if err := json.Unmarshal(b, v); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("model response is not valid JSON: %s", snippet(cleaned, 120))
}

func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
