package codec

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// kindTypes maps a scalar kind to the built-in type whose codec serves named types of that kind.
var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.String:  reflect.TypeFor[string](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
	reflect.Bool:    reflect.TypeFor[bool](),
}

func registerBuiltins(r *Registry) {
	Register(r, encodeString, decodeString)
	Register(r, encodeBytes, decodeBytes)

	// int and uint are stored as 8 bytes regardless of platform width
	Register(r, fixedEncoder[int](8), fixedDecoder[int](8))
	Register(r, fixedEncoder[int8](1), fixedDecoder[int8](1))
	Register(r, fixedEncoder[int16](2), fixedDecoder[int16](2))
	Register(r, fixedEncoder[int32](4), fixedDecoder[int32](4))
	Register(r, fixedEncoder[int64](8), fixedDecoder[int64](8))
	Register(r, fixedEncoder[uint](8), fixedDecoder[uint](8))
	Register(r, fixedEncoder[uint8](1), fixedDecoder[uint8](1))
	Register(r, fixedEncoder[uint16](2), fixedDecoder[uint16](2))
	Register(r, fixedEncoder[uint32](4), fixedDecoder[uint32](4))
	Register(r, fixedEncoder[uint64](8), fixedDecoder[uint64](8))

	Register(r, encodeFloat32, decodeFloat32)
	Register(r, encodeFloat64, decodeFloat64)
	Register(r, encodeBool, decodeBool)
	Register(r, encodeTime, decodeTime)
	Register(r, encodeDecimal, decodeDecimal)
	Register(r, encodeUUID, decodeUUID)
}

func lengthError[T any](want, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidLength, reflect.TypeFor[T](),
		want, got)
}

func encodeString(v string) ([]byte, error) {
	return []byte(v), nil
}

func decodeString(b []byte) (string, error) {
	return string(b), nil
}

func encodeBytes(v []byte) ([]byte, error) {
	return bytes.Clone(v), nil
}

func decodeBytes(b []byte) ([]byte, error) {
	if b == nil {
		return []byte{}, nil
	}
	return bytes.Clone(b), nil
}

// fixedEncoder writes an integer as a big-endian two's complement value of the given width.
func fixedEncoder[T integer](size int) func(T) ([]byte, error) {
	return func(v T) ([]byte, error) {
		b := make([]byte, size)
		u := uint64(v)
		for i := size - 1; i >= 0; i-- {
			b[i] = byte(u)
			u >>= 8
		}
		return b, nil
	}
}

func fixedDecoder[T integer](size int) func([]byte) (T, error) {
	return func(b []byte) (T, error) {
		if len(b) != size {
			return 0, lengthError[T](size, len(b))
		}
		var u uint64
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
		return T(u), nil
	}
}

func encodeFloat32(v float32) ([]byte, error) {
	return fixedEncoder[uint32](4)(math.Float32bits(v))
}

func decodeFloat32(b []byte) (float32, error) {
	if len(b) != 4 {
		return 0, lengthError[float32](4, len(b))
	}
	u, _ := fixedDecoder[uint32](4)(b)
	return math.Float32frombits(u), nil
}

func encodeFloat64(v float64) ([]byte, error) {
	return fixedEncoder[uint64](8)(math.Float64bits(v))
}

func decodeFloat64(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, lengthError[float64](8, len(b))
	}
	u, _ := fixedDecoder[uint64](8)(b)
	return math.Float64frombits(u), nil
}

func encodeBool(v bool) ([]byte, error) {
	if v {
		return []byte{0xff}, nil
	}
	return []byte{0x00}, nil
}

func decodeBool(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, lengthError[bool](1, len(b))
	}
	return b[0] != 0, nil
}

func encodeTime(v time.Time) ([]byte, error) {
	return v.MarshalBinary()
}

func decodeTime(b []byte) (time.Time, error) {
	var t time.Time
	if err := t.UnmarshalBinary(b); err != nil {
		return time.Time{}, fmt.Errorf("invalid time value: %w", err)
	}
	return t, nil
}

func encodeDecimal(v decimal.Decimal) ([]byte, error) {
	return v.MarshalBinary()
}

func decodeDecimal(b []byte) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := d.UnmarshalBinary(b); err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal value: %w", err)
	}
	return d, nil
}

func encodeUUID(v uuid.UUID) ([]byte, error) {
	return bytes.Clone(v[:]), nil
}

func decodeUUID(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.Nil, lengthError[uuid.UUID](16, len(b))
	}
	return uuid.FromBytes(b)
}
