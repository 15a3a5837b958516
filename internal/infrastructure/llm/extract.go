package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a model answer holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractJSON decodes text as a JSON object, retrying on the span between
// the first '{' and the last '}' when the model wrapped it in prose.
func ExtractJSON(text string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out, nil
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	out = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil || out == nil {
		return nil, ErrNoJSON
	}
	return out, nil
}
