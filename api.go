package shapecodec

import "reflect"

// Options tune Encoder and Decoder. The zero value is usable.
type Options struct {
	MaxDepth int    // nesting ceiling for containers, optionals and variants; 0 => 128
	Logger   Logger // failures are logged at Debug; nil => NopLogger
}

// Marshal encodes v with a fresh Encoder.
func Marshal(v any) ([]byte, error) {
	return NewEncoder(Options{}).Encode(v)
}

// MarshalAs encodes v using its static type, so V may be a registered enum interface.
func MarshalAs[V any](v V) ([]byte, error) {
	return EncodeAs(NewEncoder(Options{}), v)
}

// Unmarshal decodes b into the value pointed to by v with a fresh Decoder.
func Unmarshal(b []byte, v any) error {
	return NewDecoder(Options{}).Decode(b, v)
}

// UnmarshalSized decodes a value of the same encoded size as def from the
// front of b. Bytes past that size are ignored; a shorter b is malformed.
// It only makes sense for shapes whose size does not depend on the value.
func UnmarshalSized[V any](def V, b []byte) (V, error) {
	var out V
	probe, err := MarshalAs(def)
	if err != nil {
		return out, err
	}
	if len(b) < len(probe) {
		return out, &Error{
			Op:     OpDecode,
			Kind:   KindMalformed,
			GoType: reflect.TypeFor[V]().String(),
			Detail: "input shorter than the encoded default",
			Offset: len(b),
		}
	}
	err = Unmarshal(b[:len(probe)], &out)
	return out, err
}
