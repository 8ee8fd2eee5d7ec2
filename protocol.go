package shapecodec

import "reflect"

// Marshaler is implemented by types that announce their own shape.
// MarshalShape must leave every container it opens closed.
type Marshaler interface {
	MarshalShape(e *Encoder) error
}

// Unmarshaler is the decode side of Marshaler. It must read back exactly
// what the matching MarshalShape wrote.
type Unmarshaler interface {
	UnmarshalShape(d *Decoder) error
}

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
)

func hasCustomShape(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	pt := reflect.PointerTo(t)
	return t.Implements(marshalerType) || pt.Implements(marshalerType) || pt.Implements(unmarshalerType)
}
