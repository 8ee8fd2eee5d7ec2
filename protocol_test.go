package shapecodec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/unkn0wn-root/shapecodec/internal/wire"
)

// rgb packs three bytes flat, without a container.
type rgb struct{ R, G, B uint8 }

func (c rgb) MarshalShape(e *Encoder) error {
	e.U8(c.R)
	e.U8(c.G)
	e.U8(c.B)
	return nil
}

func (c *rgb) UnmarshalShape(d *Decoder) error {
	var err error
	if c.R, err = d.U8(); err != nil {
		return err
	}
	if c.G, err = d.U8(); err != nil {
		return err
	}
	c.B, err = d.U8()
	return err
}

// ring keeps its values unexported and encodes them as a sequence.
type ring struct{ vals []uint8 }

func (r *ring) MarshalShape(e *Encoder) error {
	if err := e.BeginContainer(); err != nil {
		return err
	}
	for _, v := range r.vals {
		e.U8(v)
	}
	return e.End()
}

func (r *ring) UnmarshalShape(d *Decoder) error {
	if err := d.BeginContainer(); err != nil {
		return err
	}
	r.vals = r.vals[:0]
	for {
		more, err := d.More()
		if err != nil {
			return err
		}
		if !more {
			break
		}
		v, err := d.U8()
		if err != nil {
			return err
		}
		r.vals = append(r.vals, v)
	}
	return d.End()
}

type encodeFunc func(e *Encoder) error

func (f encodeFunc) MarshalShape(e *Encoder) error { return f(e) }

type decodeFunc func(d *Decoder) error

func (f decodeFunc) UnmarshalShape(d *Decoder) error { return f(d) }

func TestMarshalerFlat(t *testing.T) {
	type palette struct {
		Fg rgb
		Bg *rgb
	}
	in := palette{Fg: rgb{1, 2, 3}, Bg: &rgb{4, 5, 6}}
	b := mustMarshal(t, in)
	want := []byte{0x07, 0, 0, 0, 1, 2, 3, 0x01, 4, 5, 6}
	if !bytes.Equal(b, want) {
		t.Fatalf("got % x want % x", b, want)
	}
	var out palette
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Fg != in.Fg || out.Bg == nil || *out.Bg != *in.Bg {
		t.Fatalf("got %+v", out)
	}
}

func TestMarshalerPointerReceiverOnValue(t *testing.T) {
	got := mustMarshal(t, ring{vals: []uint8{1, 2}})
	want := mustMarshal(t, []uint8{1, 2})
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x want % x", got, want)
	}
	var r ring
	if err := Unmarshal(got, &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(r.vals, []uint8{1, 2}) {
		t.Fatalf("got %v", r.vals)
	}
}

func TestMarshalerNestedValue(t *testing.T) {
	enc := encodeFunc(func(e *Encoder) error {
		if err := e.BeginContainer(); err != nil {
			return err
		}
		if err := e.Value(pair{A: 1, B: 2}); err != nil {
			return err
		}
		e.Some()
		e.Bool(true)
		e.None()
		return e.End()
	})
	b := mustMarshal(t, enc)
	want := []byte{
		0x0c, 0, 0, 0,
		0x05, 0, 0, 0, 0x01, 0x02, 0, 0, 0,
		0x01, 0x01,
		0x00,
	}
	if !bytes.Equal(b, want) {
		t.Fatalf("got % x want % x", b, want)
	}

	var p pair
	var flag, absent bool
	dec := decodeFunc(func(d *Decoder) error {
		if err := d.BeginContainer(); err != nil {
			return err
		}
		if _, err := d.More(); err != nil {
			return err
		}
		if err := d.Value(&p); err != nil {
			return err
		}
		if _, err := d.More(); err != nil {
			return err
		}
		present, err := d.Option()
		if err != nil || !present {
			return errors.Join(err, errors.New("expected Some"))
		}
		if flag, err = d.Bool(); err != nil {
			return err
		}
		if _, err := d.More(); err != nil {
			return err
		}
		if present, err = d.Option(); err != nil {
			return err
		}
		absent = !present
		if more, err := d.More(); err != nil || more {
			return errors.Join(err, errors.New("expected end"))
		}
		return d.End()
	})
	if err := Unmarshal(b, &dec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p != (pair{A: 1, B: 2}) || !flag || !absent {
		t.Fatalf("got p=%+v flag=%v absent=%v", p, flag, absent)
	}
}

func TestMarshalerVariantBound(t *testing.T) {
	var before, after int
	var gotErr error
	enc := encodeFunc(func(e *Encoder) error {
		e.U8(0xEE)
		before = e.Len()
		gotErr = e.BeginVariant(256)
		after = e.Len()
		return gotErr
	})
	b, err := Marshal(enc)
	if !errors.Is(err, ErrVariantRange) || !errors.Is(gotErr, ErrVariantRange) {
		t.Fatalf("expected ErrVariantRange, got %v", err)
	}
	if before != after {
		t.Fatalf("buffer mutated by rejected variant: %d -> %d", before, after)
	}
	if b != nil {
		t.Fatalf("expected nil bytes, got % x", b)
	}

	ok := encodeFunc(func(e *Encoder) error {
		if err := e.BeginVariant(255); err != nil {
			return err
		}
		return e.End()
	})
	if got := mustMarshal(t, ok); !bytes.Equal(got, []byte{0x01, 0, 0, 0, 0xFF}) {
		t.Fatalf("got % x", got)
	}
}

func TestMarshalerClosedSetLeavesBufferAlone(t *testing.T) {
	var before, after int
	enc := encodeFunc(func(e *Encoder) error {
		e.U32(1)
		before = e.Len()
		err := e.Value(int64(5))
		after = e.Len()
		return err
	})
	if _, err := Marshal(enc); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if before != after {
		t.Fatalf("buffer mutated: %d -> %d", before, after)
	}
}

func TestMarshalerUnbalanced(t *testing.T) {
	leaky := encodeFunc(func(e *Encoder) error { return e.BeginContainer() })
	if _, err := Marshal(leaky); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}

	extra := encodeFunc(func(e *Encoder) error { return e.End() })
	if _, err := Marshal(extra); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}

	open := decodeFunc(func(d *Decoder) error { return d.BeginContainer() })
	if err := Unmarshal([]byte{0x01, 0, 0, 0, 0x01}, &open); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestUnmarshalerEmptyElement(t *testing.T) {
	dec := decodeFunc(func(d *Decoder) error {
		if err := d.BeginContainer(); err != nil {
			return err
		}
		if _, err := d.More(); err != nil {
			return err
		}
		_, err := d.More()
		return err
	})
	err := Unmarshal([]byte{0x01, 0, 0, 0, 0x01}, &dec)
	if !errors.Is(err, ErrMalformed) || !errors.Is(err, wire.ErrEmptyElement) {
		t.Fatalf("expected empty element error, got %v", err)
	}
}

func TestOneSidedProtocol(t *testing.T) {
	enc := encodeFunc(func(e *Encoder) error { e.U8(1); return nil })
	b := mustMarshal(t, enc)
	if err := Unmarshal(b, &enc); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType decoding into Marshaler-only type, got %v", err)
	}

	dec := decodeFunc(func(d *Decoder) error { return nil })
	if _, err := Marshal(dec); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType encoding Unmarshaler-only type, got %v", err)
	}
}

// bucket halves its value on the wire, so 2 and 3 share an encoding.
type bucket uint8

func (b bucket) MarshalShape(e *Encoder) error { e.U8(uint8(b) / 2); return nil }

func (b *bucket) UnmarshalShape(d *Decoder) error {
	v, err := d.U8()
	*b = bucket(v * 2)
	return err
}

func TestCustomEncodedMapKeysRejected(t *testing.T) {
	type wrapped struct{ B bucket }
	cases := map[string]any{
		"custom key":           map[bucket]uint8{2: 1, 3: 2},
		"custom key in array":  map[[2]bucket]uint8{{2, 2}: 1, {3, 3}: 2},
		"custom key in struct": map[wrapped]uint8{{2}: 1, {3}: 2},
		"flat custom key":      map[rgb]uint8{{1, 2, 3}: 1},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := Marshal(v)
			if !errors.Is(err, ErrUnsupportedType) {
				t.Fatalf("expected ErrUnsupportedType, got %v (% x)", err, b)
			}
		})
	}

	var out map[bucket]uint8
	if err := Unmarshal([]byte{0x02, 0, 0, 0, 0x01, 0x01}, &out); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType on decode, got %v", err)
	}

	// as a value the same type is fine
	vals := map[uint8]bucket{1: 4}
	b := mustMarshal(t, vals)
	var back map[uint8]bucket
	if err := Unmarshal(b, &back); err != nil || back[1] != 4 {
		t.Fatalf("got %v (%v)", back, err)
	}
}
