package settings

import "errors"

var (
	// ErrCannotOpenPartition is returned when the engine refuses a partition's namespace.
	ErrCannotOpenPartition = errors.New("settings: cannot open partition")
	// ErrKeyNotFound is returned when no value is stored under the key.
	ErrKeyNotFound = errors.New("settings: key not found")
	// ErrTypeMismatch is returned when the key holds a value that cannot be read as the requested type.
	ErrTypeMismatch = errors.New("settings: key exists, type mismatch")
	// ErrEncodeFailed is returned when the codec cannot encode a value. Nothing is written.
	ErrEncodeFailed = errors.New("settings: cannot encode value")
	// ErrUnexpected wraps engine failures that fit no other kind.
	ErrUnexpected = errors.New("settings: unexpected failure")
)
