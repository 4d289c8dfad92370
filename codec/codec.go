// Package codec turns tier values into bytes and back.
package codec

// Codec encodes and decodes values of V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under name: "json", "cbor" or
// "msgpack". The empty name is json.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "cbor":
		return NewCBOR[V](false)
	case "msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, &UnknownError{Name: name}
	}
}

type UnknownError struct{ Name string }

func (e *UnknownError) Error() string { return "codec: unknown codec " + `"` + e.Name + `"` }
