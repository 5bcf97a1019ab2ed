// Package serialization converts cache payloads to and from opaque bytes.
// The cache core is agnostic to payload shape; everything crossing the
// storage boundary goes through a Codec.
package serialization

const (
	// JSONType selects the JSON codec.
	JSONType = "json"

	// GobType selects the gob codec.
	GobType = "gob"
)

// Codec serializes payloads at the storage boundary.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
