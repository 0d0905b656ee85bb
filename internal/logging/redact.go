package logging

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxValueChars bounds any single string written to the log. Source code and
// file contents travel through requests and would otherwise flood it.
const MaxValueChars = 512

var secretKeys = map[string]bool{
	"api_key":             true,
	"apikey":              true,
	"authorization":       true,
	"openai_api_key":      true,
	"axiom_model_api_key": true,
	"token":               true,
	"secret":              true,
}

func RedactValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "bearer ") {
		return "Bearer " + mask(trimmed[7:])
	}
	return mask(trimmed)
}

func RedactAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			if isSecretKey(key) {
				out[key] = RedactValue(fmt.Sprint(val))
				continue
			}
			out[key] = RedactAny(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, val := range typed {
			if isSecretKey(key) {
				out[key] = RedactValue(val)
				continue
			}
			out[key] = Clip(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = RedactAny(val)
		}
		return out
	case string:
		return Clip(typed)
	default:
		return value
	}
}

func RedactJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Clip(strings.TrimSpace(string(raw)))
	}
	return RedactAny(payload)
}

// Clip shortens s to MaxValueChars runes and notes how much was dropped.
func Clip(s string) string {
	if utf8.RuneCountInString(s) <= MaxValueChars {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s...(%d more chars)", string(runes[:MaxValueChars]), len(runes)-MaxValueChars)
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	return secretKeys[lower]
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
