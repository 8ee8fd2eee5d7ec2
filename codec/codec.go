// Package codec adapts value encodings to a common Codec interface so stores
// and tools can swap them. Shape is the compact shapecodec format; CBOR,
// Msgpack, JSON and Protobuf are kept for comparison and interop.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
