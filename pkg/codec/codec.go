// Package codec converts column values to and from the raw bytes stored in a LiteTable cell.
//
// A Registry maps a Go type to a Codec. Every Registry starts with the built-in scalar set
// (strings, fixed-width integers, floats, bools, time.Time, decimal.Decimal, uuid.UUID and
// []byte); callers add their own types with Register or RegisterMsgPack.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrUnsupportedType is returned when no codec is registered for a type
	ErrUnsupportedType = errors.New("no codec registered for type")
	// ErrInvalidLength is returned when a stored value has the wrong width for its type
	ErrInvalidLength = errors.New("invalid value length")
)

// Codec encodes and decodes values of a single Go type.
type Codec struct {
	typ    reflect.Type
	encode func(v reflect.Value) ([]byte, error)
	decode func(b []byte) (reflect.Value, error)
}

// Type returns the Go type handled by the codec.
func (c *Codec) Type() reflect.Type {
	return c.typ
}

// Encode converts v, which must be of the codec's type, into bytes.
func (c *Codec) Encode(v reflect.Value) ([]byte, error) {
	if v.Type() != c.typ {
		return nil, fmt.Errorf("codec for %s cannot encode %s", c.typ, v.Type())
	}
	return c.encode(v)
}

// Decode converts bytes back into a value of the codec's type.
func (c *Codec) Decode(b []byte) (reflect.Value, error) {
	return c.decode(b)
}

// Registry is a concurrency-safe set of codecs keyed by Go type.
type Registry struct {
	mu     sync.RWMutex
	codecs map[reflect.Type]*Codec
}

// NewRegistry returns a registry pre-loaded with the built-in scalar codecs.
func NewRegistry() *Registry {
	r := &Registry{
		codecs: make(map[reflect.Type]*Codec),
	}
	registerBuiltins(r)
	return r
}

// Register binds T to an encoder/decoder pair, replacing any existing codec for T.
func Register[T any](r *Registry, enc func(T) ([]byte, error), dec func([]byte) (T, error)) {
	typ := reflect.TypeFor[T]()
	c := &Codec{
		typ: typ,
		encode: func(v reflect.Value) ([]byte, error) {
			return enc(v.Interface().(T))
		},
		decode: func(b []byte) (reflect.Value, error) {
			v, err := dec(b)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(&v).Elem(), nil
		},
	}

	r.mu.Lock()
	r.codecs[typ] = c
	r.mu.Unlock()
}

// Lookup returns the codec for t. Named types without a codec of their own (type Status string)
// fall back to the codec of their underlying scalar kind.
func (r *Registry) Lookup(t reflect.Type) (*Codec, bool) {
	if t == nil {
		return nil, false
	}

	r.mu.RLock()
	c, ok := r.codecs[t]
	r.mu.RUnlock()
	if ok {
		return c, true
	}

	base, ok := kindTypes[t.Kind()]
	if !ok || base == t {
		return nil, false
	}

	r.mu.RLock()
	bc, ok := r.codecs[base]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return &Codec{
		typ: t,
		encode: func(v reflect.Value) ([]byte, error) {
			return bc.encode(v.Convert(base))
		},
		decode: func(b []byte) (reflect.Value, error) {
			v, err := bc.decode(b)
			if err != nil {
				return reflect.Value{}, err
			}
			return v.Convert(t), nil
		},
	}, true
}

// Encode encodes v with the codec registered for T.
func Encode[T any](r *Registry, v T) ([]byte, error) {
	c, ok := r.Lookup(reflect.TypeFor[T]())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, reflect.TypeFor[T]())
	}
	return c.encode(reflect.ValueOf(&v).Elem())
}

// Decode decodes b with the codec registered for T.
func Decode[T any](r *Registry, b []byte) (T, error) {
	var zero T
	c, ok := r.Lookup(reflect.TypeFor[T]())
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnsupportedType, reflect.TypeFor[T]())
	}

	v, err := c.decode(b)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}
