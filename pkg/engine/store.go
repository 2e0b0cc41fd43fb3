// Package engine defines the partitioned key-value engine that backs the
// settings façade, plus its in-memory and file-persisted implementation.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrKeyNotFound is returned when a requested key does not exist within a partition.
	ErrKeyNotFound = errors.New("engine: key not found")
	// ErrInvalidNamespace is returned when the engine refuses to open a partition.
	ErrInvalidNamespace = errors.New("engine: invalid namespace")
	// ErrInvalidValue is returned when writing a Value of KindInvalid.
	ErrInvalidValue = errors.New("engine: invalid value")
	// ErrInvalidKey is returned when writing under a key that is not valid UTF-8.
	ErrInvalidKey = errors.New("engine: invalid key")
)

// DefaultNamespace names the engine's unnamed partition.
const DefaultNamespace = ""

const maxNamespaceLen = 200

// Engine opens partitions by namespace.
// Both the in-memory engine and the SQLite engine implement this contract.
type Engine interface {
	// Partition opens (creating on first write) the partition for namespace.
	Partition(namespace string) (Partition, error)
	// Namespaces lists every namespace that currently holds at least one key.
	Namespaces() ([]string, error)
	// Close flushes pending writes and releases resources.
	Close() error
}

// Partition is a handle to one namespace of an Engine. Handles for the same
// namespace observe the same data.
type Partition interface {
	Namespace() string
	// Get returns ErrKeyNotFound when key holds no value.
	Get(key string) (Value, error)
	// Set replaces the value under key.
	Set(key string, val Value) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys lists the keys in this partition only.
	Keys() ([]string, error)
	// Watch signals on the returned channel after every write or delete of
	// key. Signals coalesce, so a slow reader sees at least the latest change.
	// The cancel func stops delivery and closes the channel.
	Watch(key string) (<-chan struct{}, func())
}

// ValidateNamespace reports whether an engine may open namespace.
func ValidateNamespace(namespace string) error {
	if namespace == DefaultNamespace {
		return nil
	}
	switch {
	case len(namespace) > maxNamespaceLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidNamespace, maxNamespaceLen)
	case strings.TrimSpace(namespace) == "":
		return fmt.Errorf("%w: blank", ErrInvalidNamespace)
	case namespace == "." || namespace == "..":
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	case strings.HasPrefix(namespace, "_"):
		return fmt.Errorf("%w: %q uses the reserved prefix", ErrInvalidNamespace, namespace)
	case !utf8.ValidString(namespace):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidNamespace, namespace)
	case strings.ContainsAny(namespace, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidNamespace, namespace)
	}
	for _, r := range namespace {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidNamespace, namespace)
		}
	}
	return nil
}

// ValidateKey reports whether a value may be written under key. Keys must be
// valid UTF-8 so they survive JSON persistence unchanged.
func ValidateKey(key string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidKey, key)
	}
	return nil
}

// checkWrite validates a key and value before they reach an engine.
func checkWrite(key string, val Value) error {
	if !val.IsValid() {
		return ErrInvalidValue
	}
	return ValidateKey(key)
}
