package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/shapecodec"
	"github.com/unkn0wn-root/shapecodec/codec"
	"github.com/unkn0wn-root/shapecodec/store"
)

type (
	unitStruct  struct{}
	newType     uint32
	tupleStruct struct {
		F0 uint8
		F1 uint32
	}
	record struct {
		A uint8
		B uint32
	}
)

// unitVariant has a single unit case.
type unitVariant interface{ isUnitVariant() }

type uvA struct{}

func (uvA) isUnitVariant() {}

// newTypeVariant wraps a u32.
type newTypeVariant interface{ isNewTypeVariant() }

type ntA uint32

func (ntA) isNewTypeVariant() {}

// tupleVariant is B | A(u8, u32).
type tupleVariant interface{ isTupleVariant() }

type (
	tvB struct{}
	tvA struct {
		F0 uint8
		F1 uint32
	}
)

func (tvB) isTupleVariant() {}
func (tvA) isTupleVariant() {}

// structVariant is A{a, b} | B.
type structVariant interface{ isStructVariant() }

type (
	svA struct {
		A uint8
		B uint32
	}
	svB struct{}
)

func (svA) isStructVariant() {}
func (svB) isStructVariant() {}

func init() {
	shapecodec.RegisterEnum[unitVariant](uvA{})
	shapecodec.RegisterEnum[newTypeVariant](ntA(0))
	shapecodec.RegisterEnum[tupleVariant](tvB{}, tvA{})
	shapecodec.RegisterEnum[structVariant](svA{}, svB{})
}

type result struct {
	name    string
	encoded []byte
	sizes   []size
	err     error
}

type size struct {
	codec string
	n     int // -1 when the codec cannot encode the value
}

type scenario struct {
	name string
	run  func(ctx context.Context, h *harness) result
}

func scenarios() []scenario {
	some := uint8(0)
	return []scenario{
		rejects("text", "hello", shapecodec.ErrUnsupportedType),
		rejects("signed", int32(-1), shapecodec.ErrUnsupportedType),
		roundTrip("option", &some),
		roundTrip("unit", struct{}{}),
		roundTrip("unit_struct", unitStruct{}),
		roundTrip[unitVariant]("unit_variant", uvA{}),
		roundTrip("newtype", newType(0)),
		roundTrip[newTypeVariant]("newtype_variant", ntA(0)),
		roundTrip("seq", []uint32{0, 1, 2, 3}),
		roundTrip("tuple", [2]uint32{0, 1}),
		roundTrip("tuple_struct", tupleStruct{F0: 0, F1: 1}),
		roundTrip[tupleVariant]("tuple_variant", tvA{F0: 0, F1: 1}),
		roundTrip[tupleVariant]("tuple_variant_unit", tvB{}),
		roundTrip("map", map[uint8]uint8{0: 1}),
		roundTrip("struct", record{A: 0, B: 1}),
		roundTrip[structVariant]("struct_variant", svA{A: 0, B: 1}),
		roundTrip[structVariant]("struct_variant_unit", svB{}),
	}
}

// roundTrip encodes v with its static type, decodes it back and compares.
// With a provider configured the value also goes through a store.
func roundTrip[V any](name string, v V) scenario {
	return scenario{name: name, run: func(ctx context.Context, h *harness) result {
		res := result{name: name}
		b, err := shapecodec.EncodeAs(h.enc, v)
		if err != nil {
			res.err = fmt.Errorf("encode: %w", err)
			return res
		}
		res.encoded = b

		var back V
		if err := h.dec.Decode(b, &back); err != nil {
			res.err = fmt.Errorf("decode: %w", err)
			return res
		}
		if !reflect.DeepEqual(back, v) {
			res.err = fmt.Errorf("round trip mismatch: got %#v, want %#v", back, v)
			return res
		}
		if h.provider != nil {
			if err := storeRoundTrip(ctx, h, name, v); err != nil {
				res.err = err
				return res
			}
		}
		if h.compare {
			res.sizes = compareSizes(v)
		}
		return res
	}}
}

// rejects expects encoding v to fail with want.
func rejects[V any](name string, v V, want error) scenario {
	return scenario{name: name, run: func(_ context.Context, h *harness) result {
		res := result{name: name}
		b, err := shapecodec.EncodeAs(h.enc, v)
		switch {
		case err == nil:
			res.err = fmt.Errorf("expected %v, encoded % x", want, b)
		case !errors.Is(err, want):
			res.err = fmt.Errorf("expected %v, got %w", want, err)
		}
		return res
	}}
}

func storeRoundTrip[V any](ctx context.Context, h *harness, key string, v V) error {
	s, err := store.New(store.Options[V]{
		Namespace: "harness",
		Provider:  h.provider,
		Codec:     codec.NewShape[V](h.opts),
		Logger:    h.opts.Logger,
	})
	if err != nil {
		return err
	}
	if err := s.Put(ctx, key, v, 0); err != nil {
		return fmt.Errorf("store put: %w", err)
	}
	got, ok, err := s.Get(ctx, key)
	switch {
	case err != nil:
		return fmt.Errorf("store get: %w", err)
	case !ok:
		return fmt.Errorf("store get: entry for %q missing", key)
	case !reflect.DeepEqual(got, v):
		return fmt.Errorf("store round trip mismatch: got %#v, want %#v", got, v)
	}
	return nil
}

// compareSizes reports the encoded size under the other codecs. Only the
// encode side is used, so interface-typed values are fine.
func compareSizes[V any](v V) []size {
	others := []struct {
		name string
		c    codec.Codec[V]
	}{
		{"cbor", codec.MustCBOR[V](true)},
		{"msgpack", codec.Msgpack[V]{}},
		{"json", codec.JSON[V]{}},
	}
	out := make([]size, 0, len(others))
	for _, o := range others {
		b, err := o.c.Encode(v)
		if err != nil {
			out = append(out, size{codec: o.name, n: -1})
			continue
		}
		out = append(out, size{codec: o.name, n: len(b)})
	}
	return out
}
