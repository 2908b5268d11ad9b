// Package llmjson extracts structured JSON from LLM responses that wrap it
// in markdown fences or surrounding prose.
package llmjson

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractObject returns the JSON object embedded in text, stripping markdown
// code fences and any prose around the outermost braces. Returns "" when no
// object is present.
func ExtractObject(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// ExtractArray returns the JSON array embedded in text, with the same fence
// and prose handling as ExtractObject. Returns "" when no array is present.
func ExtractArray(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}

// CoerceInt converts a decoded JSON value to an int. LLMs sometimes return
// counts as strings with thousands separators ("12,345").
func CoerceInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, eris.Wrapf(err, "llmjson: coerce %q to int", n)
		}
		return i, nil
	default:
		return 0, eris.Errorf("llmjson: cannot coerce %T to int", v)
	}
}
