package util

import "encoding/json"

// ConvertStructToJson marshals v, returning an empty string on failure.
// Callers use it for queue payloads where a marshal failure is a
// programmer error surfaced by the consumer instead.
func ConvertStructToJson(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
