package codec

import (
	"sync"

	"github.com/unkn0wn-root/shapecodec"
)

// Shape is a Codec for the shapecodec format. Encoders and decoders are
// pooled, so a single Shape is safe for concurrent use.
// The zero value is NOT ready to use. Construct with NewShape.
type Shape[V any] struct {
	enc sync.Pool
	dec sync.Pool
}

var _ Codec[struct{}] = (*Shape[struct{}])(nil)

func NewShape[V any](opts shapecodec.Options) *Shape[V] {
	s := &Shape[V]{}
	s.enc.New = func() any { return shapecodec.NewEncoder(opts) }
	s.dec.New = func() any { return shapecodec.NewDecoder(opts) }
	return s
}

// Encode uses the static type V, so V may be a registered enum interface.
func (s *Shape[V]) Encode(v V) ([]byte, error) {
	e := s.enc.Get().(*shapecodec.Encoder)
	defer s.enc.Put(e)
	return shapecodec.EncodeAs(e, v)
}

func (s *Shape[V]) Decode(b []byte) (V, error) {
	d := s.dec.Get().(*shapecodec.Decoder)
	defer s.dec.Put(d)
	var v V
	err := d.Decode(b, &v)
	return v, err
}
