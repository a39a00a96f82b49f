package codec

import "github.com/vmihailenco/msgpack/v5"

// RegisterMsgPack binds T to its MessagePack encoding. Use it for small composite values, an
// address or a list of tags, that belong in a single cell.
func RegisterMsgPack[T any](r *Registry) {
	Register(r,
		func(v T) ([]byte, error) {
			return msgpack.Marshal(v)
		},
		func(b []byte) (T, error) {
			var v T
			err := msgpack.Unmarshal(b, &v)
			return v, err
		},
	)
}
