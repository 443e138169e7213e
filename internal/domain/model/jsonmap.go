package model

import "encoding/json"

// toMap converts a JSON-serialisable value into a map so that it can be
// masked generically and rendered with sorted keys.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
