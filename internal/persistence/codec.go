package persistence

import (
	"github.com/goccy/go-json"
)

// EncodeValue serializes v as JSON. Run records and events are plain JSON
// documents so every backend stores the same bytes the API serves.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodeValue decodes JSON produced by EncodeValue into a T.
// Empty input yields the zero value.
func DecodeValue[T any](data []byte) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(data, &out)
	return out, err
}
