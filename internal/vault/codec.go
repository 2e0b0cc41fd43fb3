package vault

// Codec matches the settings codec contract.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// SealedCodec seals the output of an inner codec, so structured values are
// stored encrypted and only readers holding the key can decode them.
type SealedCodec struct {
	inner Codec
	key   []byte
}

// NewCodec wraps inner with AES-GCM sealing under key.
func NewCodec(inner Codec, key []byte) *SealedCodec {
	return &SealedCodec{inner: inner, key: append([]byte(nil), key...)}
}

func (c *SealedCodec) Encode(v any) ([]byte, error) {
	plain, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return Seal(plain, c.key)
}

func (c *SealedCodec) Decode(data []byte, v any) error {
	plain, err := Open(data, c.key)
	if err != nil {
		return err
	}
	return c.inner.Decode(plain, v)
}
