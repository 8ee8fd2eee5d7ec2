package shapecodec

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/unkn0wn-root/shapecodec/internal/wire"
)

// Decoder reads values back from bytes. Every container pushes a byte budget;
// each element must consume at least one byte of it, and a container must be
// consumed exactly. A Decoder is not safe for concurrent use.
type Decoder struct {
	r     wire.Reader
	depth int
	opts  Options
}

func NewDecoder(opts Options) *Decoder {
	return &Decoder{opts: opts.withDefaults()}
}

// Decode decodes b into the value pointed to by v, whose type gives the
// expected shape. All of b must be consumed. The value is built aside and
// stored only on success; on failure *v is left untouched.
func (d *Decoder) Decode(b []byte, v any) error {
	if d.opts.Logger == nil {
		d.opts = d.opts.withDefaults()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		err := &Error{
			Op:     OpDecode,
			Kind:   KindInvalidTarget,
			GoType: typeName(rv),
			Detail: "target must be a non-nil pointer",
			Offset: -1,
		}
		d.logFailure(rv, err)
		return err
	}
	return d.decodeRoot(b, rv.Elem())
}

func (d *Decoder) decodeRoot(b []byte, target reflect.Value) error {
	d.r.Reset(b)
	d.depth = 0

	ti, err := typeInfoFor(target.Type())
	var out reflect.Value
	if err == nil {
		out = reflect.New(target.Type()).Elem()
		err = d.decode(ti, out)
	}
	if err == nil {
		if werr := d.r.Done(); werr != nil {
			err = d.wireErr(werr)
		}
	}
	d.r.Reset(nil)
	if err != nil {
		d.logFailure(target, err)
		return err
	}
	target.Set(out)
	return nil
}

func (d *Decoder) logFailure(v reflect.Value, err error) {
	d.opts.Logger.Debug("shapecodec: decode failed", Fields{
		"type": typeName(v),
		"err":  err,
	})
}

// Bool reads a boolean; bytes other than 0 and 1 are malformed.
func (d *Decoder) Bool() (bool, error) {
	b, err := d.r.U8()
	if err != nil {
		return false, d.wireErr(err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, d.fail(KindMalformed, "invalid bool byte %#02x", b)
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.r.U8()
	if err != nil {
		return 0, d.wireErr(err)
	}
	return b, nil
}

func (d *Decoder) U32() (uint32, error) {
	v, err := d.r.U32()
	if err != nil {
		return 0, d.wireErr(err)
	}
	return v, nil
}

// Unit reads the zero byte of a unit value.
func (d *Decoder) Unit() error {
	b, err := d.r.U8()
	if err != nil {
		return d.wireErr(err)
	}
	if b != 0 {
		return d.fail(KindMalformed, "invalid unit byte %#02x", b)
	}
	return nil
}

// Option reads an optional discriminant and reports whether a payload follows.
func (d *Decoder) Option() (bool, error) {
	b, err := d.r.U8()
	if err != nil {
		return false, d.wireErr(err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, d.fail(KindMalformed, "invalid option discriminant %#02x", b)
}

// BeginContainer reads a length prefix and pushes its budget. Pair with End.
func (d *Decoder) BeginContainer() error {
	if err := d.enter(); err != nil {
		return err
	}
	if err := d.r.Open(); err != nil {
		d.leave()
		return d.wireErr(err)
	}
	return nil
}

// More charges the previous element to the innermost budget and reports
// whether another element follows.
func (d *Decoder) More() (bool, error) {
	more, err := d.r.Next()
	if err != nil {
		return false, d.wireErr(err)
	}
	return more, nil
}

// BeginVariant opens a variant frame and returns its index, which must be
// below n. Pair with End.
func (d *Decoder) BeginVariant(n int) (uint8, error) {
	if n <= 0 {
		return 0, d.fail(KindInvalidTarget, "enum with no variants")
	}
	if err := d.BeginContainer(); err != nil {
		return 0, err
	}
	idx, err := d.r.U8()
	if err != nil {
		return 0, d.wireErr(err)
	}
	if int(idx) >= n {
		return 0, d.fail(KindMalformed, "variant index %d out of range (%d variants)", idx, n)
	}
	return idx, nil
}

// End requires the innermost budget to be spent and pops it.
func (d *Decoder) End() error {
	if err := d.r.Close(); err != nil {
		return d.wireErr(err)
	}
	d.leave()
	return nil
}

// Value decodes into the value pointed to by ptr, following its Go type.
func (d *Decoder) Value(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return d.fail(KindInvalidTarget, "Value needs a non-nil pointer, got %s", typeName(rv))
	}
	ti, err := typeInfoFor(rv.Elem().Type())
	if err != nil {
		return err
	}
	return d.decode(ti, rv.Elem())
}

// decode fills v, which is always addressable.
func (d *Decoder) decode(ti *typeInfo, v reflect.Value) error {
	switch ti.kind {
	case kindBool:
		b, err := d.Bool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case kindU8:
		b, err := d.U8()
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
	case kindU32:
		n, err := d.U32()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case kindUnit:
		if err := d.Unit(); err != nil {
			return err
		}
		v.SetZero()

	case kindOption:
		present, err := d.Option()
		if err != nil {
			return err
		}
		if !present {
			v.SetZero()
			return nil
		}
		if err := d.enter(); err != nil {
			return err
		}
		p := reflect.New(ti.elem.goType)
		err = d.decode(ti.elem, p.Elem())
		d.leave()
		if err != nil {
			return err
		}
		v.Set(p)

	case kindBytes:
		return d.decodeBytes(ti, v)
	case kindSeq:
		return d.decodeSeq(ti, v)

	case kindTuple:
		if err := d.BeginContainer(); err != nil {
			return err
		}
		if err := d.decodeElems(ti.elem, v, ti.length); err != nil {
			return err
		}
		return d.End()

	case kindStruct:
		if err := d.BeginContainer(); err != nil {
			return err
		}
		if err := d.decodeFields(ti, v); err != nil {
			return err
		}
		return d.End()

	case kindMap:
		return d.decodeMap(ti, v)
	case kindEnum:
		return d.decodeEnum(ti, v)
	case kindCustom:
		return d.decodeCustom(ti, v)

	default:
		return unsupported(ti.goType.String(), "no shape")
	}
	return nil
}

func (d *Decoder) decodeBytes(ti *typeInfo, v reflect.Value) error {
	if err := d.BeginContainer(); err != nil {
		return err
	}
	n := d.r.Budget()
	raw, err := d.r.Bytes(n)
	if err != nil {
		return d.wireErr(err)
	}
	s := reflect.MakeSlice(ti.goType, n, n)
	copy(s.Bytes(), raw)
	v.Set(s)
	return d.End()
}

func (d *Decoder) decodeSeq(ti *typeInfo, v reflect.Value) error {
	if err := d.BeginContainer(); err != nil {
		return err
	}
	s := reflect.MakeSlice(ti.goType, 0, 0)
	zero := reflect.Zero(ti.elem.goType)
	for i := 0; ; i++ {
		more, err := d.More()
		if err != nil {
			return err
		}
		if !more {
			break
		}
		s = reflect.Append(s, zero)
		if err := d.decode(ti.elem, s.Index(i)); err != nil {
			return annotate(err, "["+strconv.Itoa(i)+"]")
		}
	}
	v.Set(s)
	return d.End()
}

// decodeElems fills exactly n positional elements of an array value.
func (d *Decoder) decodeElems(elem *typeInfo, v reflect.Value, n int) error {
	for i := 0; i < n; i++ {
		if err := d.expect("element " + strconv.Itoa(i)); err != nil {
			return err
		}
		if err := d.decode(elem, v.Index(i)); err != nil {
			return annotate(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return nil
}

func (d *Decoder) decodeFields(ti *typeInfo, v reflect.Value) error {
	for _, f := range ti.fields {
		if err := d.expect("field " + f.name); err != nil {
			return err
		}
		if err := d.decode(f.info, v.Field(f.index)); err != nil {
			return annotate(err, f.name)
		}
	}
	return nil
}

// expect requires another element in the current budget.
func (d *Decoder) expect(what string) error {
	more, err := d.More()
	if err != nil {
		return err
	}
	if !more {
		return d.fail(KindMalformed, "container ended before %s", what)
	}
	return nil
}

func (d *Decoder) decodeMap(ti *typeInfo, v reflect.Value) error {
	if err := d.BeginContainer(); err != nil {
		return err
	}
	m := reflect.MakeMap(ti.goType)
	for {
		more, err := d.More()
		if err != nil {
			return err
		}
		if !more {
			break
		}
		k := reflect.New(ti.key.goType).Elem()
		if err := d.decode(ti.key, k); err != nil {
			return annotate(err, "{key}")
		}
		if m.MapIndex(k).IsValid() {
			return d.fail(KindMalformed, "duplicate map key %v", k.Interface())
		}
		if err := d.expect("map value"); err != nil {
			return err
		}
		val := reflect.New(ti.elem.goType).Elem()
		if err := d.decode(ti.elem, val); err != nil {
			return annotate(err, "{"+fmt.Sprint(k.Interface())+"}")
		}
		m.SetMapIndex(k, val)
	}
	v.Set(m)
	return d.End()
}

func (d *Decoder) decodeEnum(ti *typeInfo, v reflect.Value) error {
	idx, err := d.BeginVariant(len(ti.variants))
	if err != nil {
		return err
	}
	vi := &ti.variants[idx]
	p := reflect.New(vi.payload.goType)

	switch vi.kind {
	case variantUnit:
	case variantNewtype:
		if err = d.expect("variant payload"); err == nil {
			err = d.decode(vi.payload, p.Elem())
		}
	case variantTuple:
		err = d.decodeElems(vi.payload.elem, p.Elem(), vi.payload.length)
	case variantStruct:
		err = d.decodeFields(vi.payload, p.Elem())
	}
	if err != nil {
		return annotate(err, "<"+vi.goType.String()+">")
	}
	if err := d.End(); err != nil {
		return err
	}

	if vi.pointer {
		v.Set(p)
	} else {
		v.Set(p.Elem())
	}
	return nil
}

func (d *Decoder) decodeCustom(ti *typeInfo, v reflect.Value) error {
	if !ti.unmarshal {
		return unsupported(ti.goType.String(), "implements Marshaler but not Unmarshaler")
	}
	u := v.Addr().Interface().(Unmarshaler)
	open := d.r.Depth()
	if err := u.UnmarshalShape(d); err != nil {
		return err
	}
	if d.r.Depth() != open {
		return d.fail(KindInvalidTarget, "UnmarshalShape of %s left containers unbalanced", ti.goType)
	}
	return nil
}

func (d *Decoder) enter() error {
	if d.depth >= d.opts.MaxDepth {
		return d.fail(KindDepthLimit, "nesting exceeds %d", d.opts.MaxDepth)
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() {
	if d.depth > 0 {
		d.depth--
	}
}

func (d *Decoder) fail(kind Kind, detail string, args ...any) *Error {
	return newError(OpDecode, kind, d.r.Pos(), detail, args...)
}

// wireErr classifies a framing error. Unbalanced frames are protocol misuse;
// everything else means the bytes are bad.
func (d *Decoder) wireErr(err error) *Error {
	kind := KindMalformed
	if errors.Is(err, wire.ErrUnbalanced) {
		kind = KindInvalidTarget
	}
	e := d.fail(kind, "")
	e.Cause = err
	return e
}
