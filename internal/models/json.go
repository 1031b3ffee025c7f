package models

import "encoding/json"

// EncodeStringList marshals a string slice for storage in a text column.
// Empty slices store as "[]" so the column is never NULL.
func EncodeStringList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	raw, _ := json.Marshal(list)
	return string(raw)
}

// DecodeStringList unmarshals a stored JSON array, tolerating empty and
// malformed values.
func DecodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
