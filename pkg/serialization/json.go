package serialization

import "encoding/json"

// JSON is a Codec backed by encoding/json.
type JSON struct{}

// NewJSON creates a JSON codec.
func NewJSON() *JSON { return &JSON{} }

func (*JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (*JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
