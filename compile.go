package shapecodec

import (
	"reflect"
	"sync"
)

type shapeKind uint8

const (
	kindBool shapeKind = iota + 1
	kindU8
	kindU32
	kindOption
	kindUnit
	kindSeq
	kindBytes // sequence of u8, copied in one go
	kindTuple
	kindStruct
	kindMap
	kindEnum
	kindCustom // Marshaler and/or Unmarshaler
)

var kindNames = [...]string{
	kindBool:   "bool",
	kindU8:     "u8",
	kindU32:    "u32",
	kindOption: "option",
	kindUnit:   "unit",
	kindSeq:    "seq",
	kindBytes:  "seq<u8>",
	kindTuple:  "tuple",
	kindStruct: "struct",
	kindMap:    "map",
	kindEnum:   "enum",
	kindCustom: "custom",
}

func (k shapeKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "invalid"
}

type variantKind uint8

const (
	variantUnit variantKind = iota + 1
	variantNewtype
	variantTuple
	variantStruct
)

type marshalMode uint8

const (
	marshalNone marshalMode = iota
	marshalValue
	marshalPointer
)

type typeInfo struct {
	kind   shapeKind
	goType reflect.Type

	elem   *typeInfo // option, seq, tuple, map value
	key    *typeInfo // map
	length int       // tuple
	fields []fieldInfo

	enum     *enumInfo
	variants []variantInfo

	marshal   marshalMode
	unmarshal bool
}

type fieldInfo struct {
	name  string
	index int
	info  *typeInfo
}

type variantInfo struct {
	kind    variantKind
	goType  reflect.Type // as registered
	pointer bool
	payload *typeInfo // dereferenced variant type
}

type compiler struct {
	mu       sync.Mutex
	cache    sync.Map // reflect.Type -> *typeInfo
	inflight map[reflect.Type]*typeInfo
}

var types = &compiler{}

// typeInfoFor returns the compiled shape of t. Results are cached per type and
// failed compilations are not, so registering an enum later fixes a type that
// referenced it.
func typeInfoFor(t reflect.Type) (*typeInfo, error) {
	return types.compile(t)
}

func (c *compiler) compile(t reflect.Type) (*typeInfo, error) {
	if t == nil {
		return nil, unsupported("<nil>", "untyped nil")
	}
	if ti, ok := c.cache.Load(t); ok {
		return ti.(*typeInfo), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ti, ok := c.cache.Load(t); ok {
		return ti.(*typeInfo), nil
	}
	c.inflight = make(map[reflect.Type]*typeInfo)
	ti, err := c.compileLocked(t)
	if err != nil {
		c.inflight = nil
		return nil, err
	}
	for k, v := range c.inflight {
		c.cache.Store(k, v)
	}
	c.inflight = nil
	return ti, nil
}

func (c *compiler) compileLocked(t reflect.Type) (*typeInfo, error) {
	if ti, ok := c.cache.Load(t); ok {
		return ti.(*typeInfo), nil
	}
	if ti, ok := c.inflight[t]; ok {
		return ti, nil
	}

	ti := &typeInfo{goType: t}
	c.inflight[t] = ti
	if err := c.fill(ti, t); err != nil {
		delete(c.inflight, t)
		return nil, err
	}
	return ti, nil
}

func (c *compiler) fill(ti *typeInfo, t reflect.Type) error {
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		switch {
		case t.Implements(marshalerType):
			ti.marshal = marshalValue
		case reflect.PointerTo(t).Implements(marshalerType):
			ti.marshal = marshalPointer
		}
		ti.unmarshal = reflect.PointerTo(t).Implements(unmarshalerType)
		if ti.marshal != marshalNone || ti.unmarshal {
			ti.kind = kindCustom
			return nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		ti.kind = kindBool
	case reflect.Uint8:
		ti.kind = kindU8
	case reflect.Uint32:
		ti.kind = kindU32

	case reflect.Pointer:
		elem, err := c.compileLocked(t.Elem())
		if err != nil {
			return err
		}
		ti.kind = kindOption
		ti.elem = elem

	case reflect.Slice:
		elem, err := c.compileLocked(t.Elem())
		if err != nil {
			return annotate(err, "[]")
		}
		ti.kind = kindSeq
		if elem.kind == kindU8 {
			ti.kind = kindBytes
		}
		ti.elem = elem

	case reflect.Array:
		elem, err := c.compileLocked(t.Elem())
		if err != nil {
			return annotate(err, "[]")
		}
		ti.kind = kindTuple
		ti.elem = elem
		ti.length = t.Len()

	case reflect.Map:
		if !isValueKey(t.Key()) {
			return unsupported(t.String(), "map keys must be bool, u8, u32 or arrays and structs of them, without Marshaler or Unmarshaler")
		}
		key, err := c.compileLocked(t.Key())
		if err != nil {
			return err
		}
		elem, err := c.compileLocked(t.Elem())
		if err != nil {
			return annotate(err, "{}")
		}
		ti.kind = kindMap
		ti.key = key
		ti.elem = elem

	case reflect.Struct:
		return c.fillStruct(ti, t)

	case reflect.Interface:
		return c.fillEnum(ti, t)

	default:
		return unsupported(t.String(), "no shape for kind "+t.Kind().String())
	}
	return nil
}

func (c *compiler) fillStruct(ti *typeInfo, t reflect.Type) error {
	fields := encodableFields(t)
	if len(fields) == 0 {
		ti.kind = kindUnit
		return nil
	}
	ti.kind = kindStruct
	ti.fields = make([]fieldInfo, 0, len(fields))
	for _, f := range fields {
		fi, err := c.compileLocked(f.Type)
		if err != nil {
			return annotate(err, f.Name)
		}
		ti.fields = append(ti.fields, fieldInfo{name: f.Name, index: f.Index[0], info: fi})
	}
	return nil
}

func (c *compiler) fillEnum(ti *typeInfo, t reflect.Type) error {
	e := lookupEnum(t)
	if e == nil {
		return unsupported(t.String(), "interface is not a registered enum")
	}
	ti.kind = kindEnum
	ti.enum = e
	ti.variants = make([]variantInfo, len(e.variants))
	for i, vt := range e.variants {
		v := variantInfo{goType: vt}
		base := vt
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
			v.pointer = true
		}
		payload, err := c.compileLocked(base)
		if err != nil {
			return annotate(err, "<"+vt.String()+">")
		}
		v.payload = payload
		switch payload.kind {
		case kindUnit:
			v.kind = variantUnit
		case kindStruct:
			v.kind = variantStruct
		case kindTuple:
			v.kind = variantTuple
		default:
			v.kind = variantNewtype
		}
		ti.variants[i] = v
	}
	return nil
}

func encodableFields(t reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("shape") == "-" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// isValueKey reports whether t compares by value, so decoded duplicates are
// detectable. Types with their own encoding are refused: distinct keys could
// share bytes and fail to decode.
func isValueKey(t reflect.Type) bool {
	if hasCustomShape(t) {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Uint8, reflect.Uint32:
		return true
	case reflect.Array:
		return isValueKey(t.Elem())
	case reflect.Struct:
		for _, f := range encodableFields(t) {
			if !isValueKey(f.Type) {
				return false
			}
		}
		return true
	}
	return false
}
