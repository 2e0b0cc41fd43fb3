package settings

import "encoding/json"

// Codec serializes structured values into the bytes stored under a key.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

// Decode ignores fields the target does not declare, so values written by
// an older version of a type still read after a field is dropped.
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
