package settings

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-settings/pkg/engine"
)

// Storage exposes store, read, remove and observe operations over the
// partitions of a Resolver. It holds no mutable state of its own and is safe
// for concurrent use when the engine is.
type Storage struct {
	resolver *Resolver
	codec    Codec
	log      LoggingConfig
}

// Option customizes a Storage.
type Option func(*Storage)

// WithCodec sets the codec used by StoreEncoded, ReadEncoded and ObserveEncoded.
// If not provided, JSONCodec is used.
func WithCodec(c Codec) Option {
	return func(s *Storage) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogging sets the logging configuration.
// If not provided, DefaultLogging is used.
func WithLogging(cfg LoggingConfig) Option {
	return func(s *Storage) {
		s.log = cfg
	}
}

// New creates a Storage over the partitions of r.
func New(r *Resolver, opts ...Option) *Storage {
	s := &Storage{
		resolver: r,
		codec:    JSONCodec{},
		log:      DefaultLogging(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec returns the codec used for structured values.
func (s *Storage) Codec() Codec { return s.codec }

func (s *Storage) resolve(p PartitionID) (engine.Partition, error) {
	part, err := s.resolver.Resolve(p)
	if err != nil {
		s.log.failuref("❌ Unable to open partition {%s}: %v", p, err)
		return nil, err
	}
	return part, nil
}

func (s *Storage) unexpected(op string, p PartitionID, key string, err error) error {
	s.log.failuref("❌ %s failed for key {%s} in partition {%s}: %v", op, key, p, err)
	return fmt.Errorf("%w: %s %q in %s: %w", ErrUnexpected, op, key, p, err)
}

// Set writes val under key in partition p, replacing any previous value.
// Writing the zero Value removes the key.
func (s *Storage) Set(p PartitionID, key string, val engine.Value) error {
	part, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.write(part, p, key, val)
}

func (s *Storage) write(part engine.Partition, p PartitionID, key string, val engine.Value) error {
	if !val.IsValid() {
		return s.delete(part, p, key)
	}

	if prior, err := part.Get(key); err == nil {
		s.log.debugf("ℹ️ Rewritten original value {%v} for key {%s} while persisting", prior, key)
	}
	if err := part.Set(key, val); err != nil {
		return s.unexpected("store", p, key, err)
	}
	s.log.debugf("✅ Successfully persisted value {%v} for key {%s} in partition {%s}", val, key, p)
	return nil
}

// Get returns the raw value under key in partition p.
func (s *Storage) Get(p PartitionID, key string) (engine.Value, error) {
	part, err := s.resolve(p)
	if err != nil {
		return engine.Value{}, err
	}
	val, err := part.Get(key)
	switch {
	case errors.Is(err, engine.ErrKeyNotFound):
		s.log.failuref("ℹ️ Value with key {%s} does not exist in partition {%s}", key, p)
		return engine.Value{}, fmt.Errorf("%w: %q in %s", ErrKeyNotFound, key, p)
	case err != nil:
		return engine.Value{}, s.unexpected("read", p, key, err)
	}
	return val, nil
}

// Remove deletes key from partition p. Removing an absent key succeeds.
func (s *Storage) Remove(p PartitionID, key string) error {
	part, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.delete(part, p, key)
}

func (s *Storage) delete(part engine.Partition, p PartitionID, key string) error {
	if err := part.Delete(key); err != nil {
		return s.unexpected("remove", p, key, err)
	}
	s.log.debugf("✅ Successfully removed value with key {%s} from partition {%s}", key, p)
	return nil
}

// RemoveAll deletes every key of partition p. Other partitions are untouched.
func (s *Storage) RemoveAll(p PartitionID) error {
	part, err := s.resolve(p)
	if err != nil {
		return err
	}
	keys, err := part.Keys()
	if err != nil {
		return s.unexpected("list", p, "*", err)
	}
	for _, k := range keys {
		if err := part.Delete(k); err != nil {
			return s.unexpected("remove", p, k, err)
		}
	}
	s.log.debugf("✅ Successfully removed %d values from partition {%s}", len(keys), p)
	return nil
}

// Entries returns a snapshot of every key and raw value in partition p.
func (s *Storage) Entries(p PartitionID) (map[string]engine.Value, error) {
	part, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	keys, err := part.Keys()
	if err != nil {
		return nil, s.unexpected("list", p, "*", err)
	}
	out := make(map[string]engine.Value, len(keys))
	for _, k := range keys {
		val, err := part.Get(k)
		if errors.Is(err, engine.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, s.unexpected("read", p, k, err)
		}
		out[k] = val
	}
	return out, nil
}

// Namespaces lists the engine namespaces that hold data, including ones
// written under other bundle ids.
func (s *Storage) Namespaces() ([]string, error) {
	list, err := s.resolver.engine.Namespaces()
	if err != nil {
		s.log.failuref("❌ Listing namespaces failed: %v", err)
		return nil, fmt.Errorf("%w: list namespaces: %w", ErrUnexpected, err)
	}
	return list, nil
}
