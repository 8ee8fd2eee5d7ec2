package codec

import (
	"fmt"

	"github.com/unkn0wn-root/shapecodec"
)

// LimitCodec wraps another codec and refuses to decode payloads longer than
// MaxDecode bytes. Encode is forwarded unchanged. MaxDecode <= 0 disables it.
// The refusal matches shapecodec.ErrMalformed.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int // bytes
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, &shapecodec.Error{
			Op:     shapecodec.OpDecode,
			Kind:   shapecodec.KindMalformed,
			Detail: fmt.Sprintf("payload too large: %d > %d", len(b), c.MaxDecode),
			Offset: c.MaxDecode,
		}
	}
	return c.Inner.Decode(b)
}
