package encoding

import "errors"

var ErrEmptyPayload = errors.New("empty payload")

// Serializable provides a clean, simple interface for serializing and deserializing values.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// Decode builds a T from b through its Deserialize method.
func Decode[T any, PT interface {
	*T
	Serializable
}](b []byte) (T, error) {
	var out T
	if len(b) == 0 {
		return out, ErrEmptyPayload
	}
	if err := PT(&out).Deserialize(b); err != nil {
		return out, err
	}
	return out, nil
}
