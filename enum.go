package shapecodec

import (
	"fmt"
	"reflect"
	"sync"
)

type enumInfo struct {
	iface    reflect.Type
	variants []reflect.Type // as registered, possibly pointers
	index    map[reflect.Type]int
}

var enums struct {
	mu sync.RWMutex
	m  map[reflect.Type]*enumInfo
}

// RegisterEnum declares the closed set of variants of the interface type I.
// A variant's index on the wire is its position in the argument list, so the
// order must stay stable. Only the dynamic type of each argument is used.
//
// Variant payloads follow the variant's Go type (pointers are dereferenced):
//   - a struct with no encodable fields is a unit variant
//   - a struct is a struct variant, fields inline
//   - an array is a tuple variant, elements inline
//   - anything else, or a Marshaler, is a newtype variant
//
// RegisterEnum panics if I is not an interface, is already registered, or if
// the set is empty or repeats a type. Call it from init.
func RegisterEnum[I any](variants ...I) {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("shapecodec: RegisterEnum: %s is not an interface type", iface))
	}
	if len(variants) == 0 {
		panic(fmt.Sprintf("shapecodec: RegisterEnum: %s has no variants", iface))
	}

	info := &enumInfo{
		iface:    iface,
		variants: make([]reflect.Type, 0, len(variants)),
		index:    make(map[reflect.Type]int, len(variants)),
	}
	for i, v := range variants {
		vt := reflect.TypeOf(any(v))
		if vt == nil {
			panic(fmt.Sprintf("shapecodec: RegisterEnum: %s variant %d is nil", iface, i))
		}
		if _, dup := info.index[vt]; dup {
			panic(fmt.Sprintf("shapecodec: RegisterEnum: %s lists %s twice", iface, vt))
		}
		info.index[vt] = i
		info.variants = append(info.variants, vt)
	}

	enums.mu.Lock()
	defer enums.mu.Unlock()
	if enums.m == nil {
		enums.m = make(map[reflect.Type]*enumInfo)
	}
	if _, ok := enums.m[iface]; ok {
		panic(fmt.Sprintf("shapecodec: RegisterEnum: %s already registered", iface))
	}
	enums.m[iface] = info
}

func lookupEnum(t reflect.Type) *enumInfo {
	enums.mu.RLock()
	defer enums.mu.RUnlock()
	return enums.m[t]
}
