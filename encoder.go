package shapecodec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/unkn0wn-root/shapecodec/internal/wire"
)

// Encoder turns values into bytes. It owns one buffer and one stack of
// pending prefix slots, both reset at the start of every Encode call.
// An Encoder is not safe for concurrent use; reuse it sequentially or pool it.
type Encoder struct {
	w     wire.Writer
	depth int
	opts  Options
}

func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts.withDefaults()}
}

// Encode returns the encoding of v. The returned slice belongs to the caller.
// On failure nothing is returned and the internal buffer is discarded.
//
// The shape comes from the dynamic type of v, so a pointer encodes as an
// optional. Use EncodeAs for interface (enum) types.
func (e *Encoder) Encode(v any) ([]byte, error) {
	return e.encodeRoot(reflect.ValueOf(v))
}

// EncodeAs encodes v using its static type V.
func EncodeAs[V any](e *Encoder, v V) ([]byte, error) {
	return e.encodeRoot(reflect.ValueOf(&v).Elem())
}

func (e *Encoder) encodeRoot(rv reflect.Value) ([]byte, error) {
	if e.opts.Logger == nil {
		e.opts = e.opts.withDefaults()
	}
	e.reset()

	err := e.value(rv)
	if err == nil && e.w.Depth() != 0 {
		err = e.fail(KindInvalidTarget, "%d container(s) left open", e.w.Depth())
	}
	if err != nil {
		e.reset()
		e.opts.Logger.Debug("shapecodec: encode failed", Fields{
			"type": typeName(rv),
			"err":  err,
		})
		return nil, err
	}
	return e.w.Detach(), nil
}

func (e *Encoder) reset() {
	e.w.Reset()
	e.depth = 0
}

// Len reports the bytes written so far in the current call.
func (e *Encoder) Len() int { return e.w.Len() }

func (e *Encoder) Bool(v bool)  { e.w.PutBool(v) }
func (e *Encoder) U8(v uint8)   { e.w.PutU8(v) }
func (e *Encoder) U32(v uint32) { e.w.PutU32(v) }

// Unit writes the single zero byte of a unit value.
func (e *Encoder) Unit() { e.w.PutU8(0) }

// None writes an absent optional.
func (e *Encoder) None() { e.w.PutU8(0) }

// Some writes the present discriminant; the payload follows.
func (e *Encoder) Some() { e.w.PutU8(1) }

// BeginContainer opens a length-prefixed container. Pair with End.
func (e *Encoder) BeginContainer() error {
	if err := e.enter(); err != nil {
		return err
	}
	e.w.Open()
	return nil
}

// BeginVariant opens a variant frame and writes its index. Indices above 255
// fail before anything is written. Pair with End.
func (e *Encoder) BeginVariant(index uint32) error {
	if index > math.MaxUint8 {
		return e.fail(KindVariantRange, "variant index %d exceeds %d", index, math.MaxUint8)
	}
	if err := e.enter(); err != nil {
		return err
	}
	e.w.Open()
	e.w.PutU8(uint8(index))
	return nil
}

// End closes the innermost container or variant and backpatches its prefix.
func (e *Encoder) End() error {
	if err := e.w.Close(); err != nil {
		kind := KindInvalidTarget
		if errors.Is(err, wire.ErrTooLarge) {
			kind = KindMalformed
		}
		ee := e.fail(kind, "")
		ee.Cause = err
		return ee
	}
	e.leave()
	return nil
}

// Value encodes v following its Go type.
func (e *Encoder) Value(v any) error {
	return e.value(reflect.ValueOf(v))
}

func (e *Encoder) value(rv reflect.Value) error {
	if !rv.IsValid() {
		return unsupported("<nil>", "untyped nil")
	}
	ti, err := typeInfoFor(rv.Type())
	if err != nil {
		return err
	}
	return e.encode(ti, rv)
}

func (e *Encoder) encode(ti *typeInfo, v reflect.Value) error {
	switch ti.kind {
	case kindBool:
		e.w.PutBool(v.Bool())
	case kindU8:
		e.w.PutU8(uint8(v.Uint()))
	case kindU32:
		e.w.PutU32(uint32(v.Uint()))
	case kindUnit:
		e.Unit()

	case kindOption:
		if v.IsNil() {
			e.None()
			return nil
		}
		e.Some()
		if err := e.enter(); err != nil {
			return err
		}
		err := e.encode(ti.elem, v.Elem())
		e.leave()
		return err

	case kindBytes:
		if err := e.BeginContainer(); err != nil {
			return err
		}
		e.w.PutBytes(v.Bytes())
		return e.End()

	case kindSeq, kindTuple:
		if err := e.BeginContainer(); err != nil {
			return err
		}
		if err := e.encodeElems(ti.elem, v); err != nil {
			return err
		}
		return e.End()

	case kindStruct:
		if err := e.BeginContainer(); err != nil {
			return err
		}
		if err := e.encodeFields(ti, v); err != nil {
			return err
		}
		return e.End()

	case kindMap:
		return e.encodeMap(ti, v)
	case kindEnum:
		return e.encodeEnum(ti, v)
	case kindCustom:
		return e.encodeCustom(ti, v)

	default:
		return unsupported(ti.goType.String(), "no shape")
	}
	return nil
}

func (e *Encoder) encodeElems(elem *typeInfo, v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := e.encode(elem, v.Index(i)); err != nil {
			return annotate(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return nil
}

func (e *Encoder) encodeFields(ti *typeInfo, v reflect.Value) error {
	for _, f := range ti.fields {
		if err := e.encode(f.info, v.Field(f.index)); err != nil {
			return annotate(err, f.name)
		}
	}
	return nil
}

type mapSpan struct{ key, val, end int }

// encodeMap writes entries in iteration order, then reorders them by their
// encoded key bytes so equal maps encode identically.
func (e *Encoder) encodeMap(ti *typeInfo, v reflect.Value) error {
	if err := e.BeginContainer(); err != nil {
		return err
	}
	start := e.w.Len()
	spans := make([]mapSpan, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		s := mapSpan{key: e.w.Len()}
		if err := e.encode(ti.key, iter.Key()); err != nil {
			return annotate(err, "{key}")
		}
		s.val = e.w.Len()
		if err := e.encode(ti.elem, iter.Value()); err != nil {
			return annotate(err, "{"+fmt.Sprint(iter.Key().Interface())+"}")
		}
		s.end = e.w.Len()
		spans = append(spans, s)
	}

	if len(spans) > 1 {
		buf := e.w.Bytes()
		region := slices.Clone(buf[start:])
		at := func(off int) int { return off - start }
		slices.SortFunc(spans, func(a, b mapSpan) int {
			return bytes.Compare(region[at(a.key):at(a.val)], region[at(b.key):at(b.val)])
		})
		n := start
		for _, s := range spans {
			n += copy(buf[n:], region[at(s.key):at(s.end)])
		}
	}
	return e.End()
}

func (e *Encoder) encodeEnum(ti *typeInfo, v reflect.Value) error {
	if v.IsNil() {
		return e.fail(KindVariantRange, "nil value for enum %s", ti.goType)
	}
	dyn := v.Elem()
	idx, ok := ti.enum.index[dyn.Type()]
	if !ok {
		return e.fail(KindVariantRange, "%s is not a registered variant of %s", dyn.Type(), ti.goType)
	}
	vi := &ti.variants[idx]
	payload := dyn
	if vi.pointer {
		if dyn.IsNil() {
			return e.fail(KindVariantRange, "nil %s variant of %s", dyn.Type(), ti.goType)
		}
		payload = dyn.Elem()
	}

	if err := e.BeginVariant(uint32(idx)); err != nil {
		return err
	}
	var err error
	switch vi.kind {
	case variantUnit:
	case variantNewtype:
		err = e.encode(vi.payload, payload)
	case variantTuple:
		err = e.encodeElems(vi.payload.elem, payload)
	case variantStruct:
		err = e.encodeFields(vi.payload, payload)
	}
	if err != nil {
		return annotate(err, "<"+vi.goType.String()+">")
	}
	return e.End()
}

func (e *Encoder) encodeCustom(ti *typeInfo, v reflect.Value) error {
	var m Marshaler
	switch ti.marshal {
	case marshalValue:
		m = v.Interface().(Marshaler)
	case marshalPointer:
		if !v.CanAddr() {
			tmp := reflect.New(v.Type()).Elem()
			tmp.Set(v)
			v = tmp
		}
		m = v.Addr().Interface().(Marshaler)
	default:
		return unsupported(ti.goType.String(), "implements Unmarshaler but not Marshaler")
	}

	open := e.w.Depth()
	if err := m.MarshalShape(e); err != nil {
		return err
	}
	if e.w.Depth() != open {
		return e.fail(KindInvalidTarget, "MarshalShape of %s left containers unbalanced", ti.goType)
	}
	return nil
}

func (e *Encoder) enter() error {
	if e.depth >= e.opts.MaxDepth {
		return e.fail(KindDepthLimit, "nesting exceeds %d", e.opts.MaxDepth)
	}
	e.depth++
	return nil
}

func (e *Encoder) leave() {
	if e.depth > 0 {
		e.depth--
	}
}

func (e *Encoder) fail(kind Kind, detail string, args ...any) *Error {
	return newError(OpEncode, kind, e.w.Len(), detail, args...)
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	return v.Type().String()
}
