package serialization

import (
	"bytes"
	"encoding/gob"
)

// Gob is a Codec backed by encoding/gob.
type Gob struct{}

// NewGob creates a gob codec.
func NewGob() *Gob { return &Gob{} }

func (*Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (*Gob) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
