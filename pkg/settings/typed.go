package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"reflect"

	"github.com/celerix-dev/celerix-settings/pkg/engine"
)

// Primitive is the closed set of types stored without the codec.
type Primitive interface {
	bool | int | int64 | float64 | string | []byte
}

// Result is one item of an observed stream.
type Result[T any] struct {
	Value T
	Err   error
}

// interpreter converts a present raw value into T, reporting false when the
// value has another shape.
type interpreter[T any] func(engine.Value) (T, bool)

func primitiveValue[T Primitive](v T) engine.Value {
	switch x := any(v).(type) {
	case bool:
		return engine.Bool(x)
	case int:
		return engine.Int(int64(x))
	case int64:
		return engine.Int(x)
	case float64:
		return engine.Float(x)
	case string:
		return engine.String(x)
	case []byte:
		if x == nil {
			return engine.Value{}
		}
		return engine.Data(x)
	}
	panic(fmt.Sprintf("settings: unreachable primitive %T", v))
}

func primitive[T Primitive](val engine.Value) (T, bool) {
	var out T
	ok := false
	switch p := any(&out).(type) {
	case *bool:
		*p, ok = val.AsBool()
	case *int:
		var i int64
		i, ok = val.AsInt()
		ok = ok && i >= math.MinInt && i <= math.MaxInt
		*p = int(i)
	case *int64:
		*p, ok = val.AsInt()
	case *float64:
		*p, ok = val.AsFloat()
	case *string:
		*p, ok = val.AsString()
	case *[]byte:
		*p, ok = val.AsData()
	}
	if !ok {
		var zero T
		return zero, false
	}
	return out, true
}

func decoded[T any](c Codec) interpreter[T] {
	return func(val engine.Value) (T, bool) {
		var out T
		data, ok := val.AsData()
		if !ok {
			return out, false
		}
		if err := c.Decode(data, &out); err != nil {
			var zero T
			return zero, false
		}
		return out, true
	}
}

// isNull reports whether v is an untyped nil, a nil pointer or a nil interface.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// readFrom runs the typed-read decision on an opened partition.
func readFrom[T any](s *Storage, part engine.Partition, p PartitionID, key string, interpret interpreter[T]) (T, error) {
	var zero T
	raw, err := part.Get(key)
	switch {
	case errors.Is(err, engine.ErrKeyNotFound):
		s.log.failuref("ℹ️ Value with key {%s} does not exist in partition {%s}, returning `KeyNotFound` failure.", key, p)
		return zero, fmt.Errorf("%w: %q in %s", ErrKeyNotFound, key, p)
	case err != nil:
		return zero, s.unexpected("read", p, key, err)
	}

	val, ok := interpret(raw)
	if !ok {
		s.log.failuref("❌ Value with key {%s} exists, but cannot be read as %T (stored %s).", key, zero, raw.Kind())
		return zero, fmt.Errorf("%w: %q in %s holds %s, want %T", ErrTypeMismatch, key, p, raw.Kind(), zero)
	}
	s.log.debugf("✅ Successfully returned persisted value with key {%s} and associated value {%v}", key, val)
	return val, nil
}

func read[T any](s *Storage, p PartitionID, key string, interpret interpreter[T]) (T, error) {
	part, err := s.resolve(p)
	if err != nil {
		var zero T
		return zero, err
	}
	return readFrom[T](s, part, p, key, interpret)
}

// Store writes a primitive value under key in partition p. A nil []byte
// removes the key.
func Store[T Primitive](s *Storage, p PartitionID, key string, v T) error {
	return s.Set(p, key, primitiveValue(v))
}

// Read returns the primitive value under key in partition p. It fails with
// ErrKeyNotFound when the key holds nothing and ErrTypeMismatch when it holds
// a value of another kind.
func Read[T Primitive](s *Storage, p PartitionID, key string) (T, error) {
	return read[T](s, p, key, primitive[T])
}

// StoreEncoded encodes v with the Storage codec and writes the bytes under
// key in partition p. A nil pointer or interface, or any value the codec
// encodes as null, removes the key. Encoding failures return ErrEncodeFailed
// and leave any previous value in place.
func StoreEncoded[T any](s *Storage, p PartitionID, key string, v T) error {
	part, err := s.resolve(p)
	if err != nil {
		return err
	}
	if isNull(v) {
		return s.delete(part, p, key)
	}
	data, err := s.codec.Encode(v)
	if err != nil {
		s.log.failuref("❌ Unable to encode value for key {%s}: %v", key, err)
		return fmt.Errorf("%w: %q in %s: %w", ErrEncodeFailed, key, p, err)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return s.delete(part, p, key)
	}
	return s.write(part, p, key, engine.Data(data))
}

// ReadEncoded decodes the value under key in partition p into a T. Entries
// that are not codec payloads, or that do not decode into T, fail with
// ErrTypeMismatch.
func ReadEncoded[T any](s *Storage, p PartitionID, key string) (T, error) {
	return read[T](s, p, key, decoded[T](s.codec))
}

// Observe streams the primitive value under key in partition p. Each range
// over the sequence opens its own subscription: it yields the current value
// first, then one item per change. An absent key yields an ErrKeyNotFound
// item and the stream goes on. The stream ends when the loop breaks or ctx is
// done.
func Observe[T Primitive](ctx context.Context, s *Storage, p PartitionID, key string) iter.Seq[Result[T]] {
	return observe[T](ctx, s, p, key, primitive[T])
}

// ObserveEncoded is Observe for codec-encoded values.
func ObserveEncoded[T any](ctx context.Context, s *Storage, p PartitionID, key string) iter.Seq[Result[T]] {
	return observe[T](ctx, s, p, key, decoded[T](s.codec))
}

// ObserveValue is Observe for raw values of any kind.
func ObserveValue(ctx context.Context, s *Storage, p PartitionID, key string) iter.Seq[Result[engine.Value]] {
	return observe[engine.Value](ctx, s, p, key, func(v engine.Value) (engine.Value, bool) { return v, true })
}

func observe[T any](ctx context.Context, s *Storage, p PartitionID, key string, interpret interpreter[T]) iter.Seq[Result[T]] {
	return func(yield func(Result[T]) bool) {
		part, err := s.resolve(p)
		if err != nil {
			yield(Result[T]{Err: err})
			return
		}

		// Subscribe before the first read so no change between the two is lost.
		changes, cancel := part.Watch(key)
		defer cancel()

		for {
			if ctx.Err() != nil {
				return
			}
			val, err := readFrom[T](s, part, p, key, interpret)
			if err == nil {
				s.log.debugf("✅ Observing value {%v} for key {%s}.", val, key)
			}
			if !yield(Result[T]{Value: val, Err: err}) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
			}
		}
	}
}
