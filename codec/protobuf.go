package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec for generated protobuf messages. Output is
// deterministic for a given binary.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *mypb.User { return &mypb.User{} }
	mo  proto.MarshalOptions
}

var _ Codec[proto.Message] = Protobuf[proto.Message]{}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor, mo: proto.MarshalOptions{Deterministic: true}}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return c.mo.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
