package avcodec

import (
	"fmt"
	"reflect"
	"sync"
)

type variantKind uint8

const (
	unitVariant variantKind = iota
	newtypeVariant
	tupleVariant
	structVariant
)

// Variant describes one case of an enum registered with RegisterEnum.
type Variant struct {
	name string
	kind variantKind
	typ  reflect.Type
}

func (v Variant) Name() string { return v.name }

// UnitVariant is a variant without payload. Decoding it yields the zero T
// (or a new *T when T is a pointer type).
func UnitVariant[T any](name string) Variant {
	return Variant{name, unitVariant, reflect.TypeFor[T]()}
}

// NewtypeVariant carries T itself as its single positional payload "_0".
func NewtypeVariant[T any](name string) Variant {
	return Variant{name, newtypeVariant, reflect.TypeFor[T]()}
}

// TupleVariant carries the exported fields of struct T as positional payloads "_0", "_1", ...
func TupleVariant[T any](name string) Variant {
	return Variant{name, tupleVariant, reflect.TypeFor[T]()}
}

// StructVariant carries the fields of struct T under their own names.
func StructVariant[T any](name string) Variant {
	return Variant{name, structVariant, reflect.TypeFor[T]()}
}

type enumInfo struct {
	iface    reflect.Type
	variants []*Variant
	byName   map[string]*Variant
	byType   map[reflect.Type]*Variant
}

type valueEnumInfo struct {
	typ    reflect.Type
	names  map[any]string
	values map[string]reflect.Value
}

var enumRegistry struct {
	sync.RWMutex
	enums      map[reflect.Type]*enumInfo
	valueEnums map[reflect.Type]*valueEnumInfo
}

// RegisterEnum declares interface type I as an enum whose cases are the given
// variants. Every variant type must implement I. Call it from init, before
// values of I are encoded or decoded.
func RegisterEnum[I any](variants ...Variant) {
	iface := reflect.TypeFor[I]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Errorf("RegisterEnum: %v is not an interface type", iface))
	}
	info := &enumInfo{
		iface:  iface,
		byName: make(map[string]*Variant, len(variants)),
		byType: make(map[reflect.Type]*Variant, len(variants)),
	}
	for i := range variants {
		v := &variants[i]
		if v.name == "" {
			panic(fmt.Errorf("RegisterEnum(%v): empty variant name", iface))
		}
		if !v.typ.Implements(iface) {
			panic(fmt.Errorf("RegisterEnum(%v): variant %s type %v does not implement the interface", iface, v.name, v.typ))
		}
		if v.kind == tupleVariant || v.kind == structVariant {
			if payloadStructType(v.typ).Kind() != reflect.Struct {
				panic(fmt.Errorf("RegisterEnum(%v): variant %s type %v is not a struct", iface, v.name, v.typ))
			}
		}
		if info.byName[v.name] != nil {
			panic(fmt.Errorf("RegisterEnum(%v): duplicate variant %s", iface, v.name))
		}
		if info.byType[v.typ] != nil {
			panic(fmt.Errorf("RegisterEnum(%v): type %v used by variants %s and %s", iface, v.typ, info.byType[v.typ].name, v.name))
		}
		info.variants = append(info.variants, v)
		info.byName[v.name] = v
		info.byType[v.typ] = v
	}

	enumRegistry.Lock()
	defer enumRegistry.Unlock()
	if enumRegistry.enums == nil {
		enumRegistry.enums = make(map[reflect.Type]*enumInfo)
	}
	enumRegistry.enums[iface] = info
	shapeCache.Clear()
}

// RegisterValueEnum declares a C-style enum: a comparable named type whose
// values are encoded as unit variants under the given names. Like
// RegisterEnum, call it from init.
func RegisterValueEnum[T comparable](names map[T]string) {
	typ := reflect.TypeFor[T]()
	info := &valueEnumInfo{
		typ:    typ,
		names:  make(map[any]string, len(names)),
		values: make(map[string]reflect.Value, len(names)),
	}
	for v, name := range names {
		if _, dup := info.values[name]; dup {
			panic(fmt.Errorf("RegisterValueEnum(%v): duplicate name %s", typ, name))
		}
		info.names[v] = name
		info.values[name] = reflect.ValueOf(v)
	}

	enumRegistry.Lock()
	defer enumRegistry.Unlock()
	if enumRegistry.valueEnums == nil {
		enumRegistry.valueEnums = make(map[reflect.Type]*valueEnumInfo)
	}
	enumRegistry.valueEnums[typ] = info
	shapeCache.Clear()
}

func lookupEnum(typ reflect.Type) *enumInfo {
	enumRegistry.RLock()
	defer enumRegistry.RUnlock()
	return enumRegistry.enums[typ]
}

func lookupValueEnum(typ reflect.Type) *valueEnumInfo {
	enumRegistry.RLock()
	defer enumRegistry.RUnlock()
	return enumRegistry.valueEnums[typ]
}

func payloadStructType(typ reflect.Type) reflect.Type {
	if typ.Kind() == reflect.Ptr {
		return typ.Elem()
	}
	return typ
}

// newVariantValue allocates a value of the variant type and returns it
// along with the addressable value the payload should be decoded into.
func newVariantValue(typ reflect.Type) (result, payload reflect.Value) {
	if typ.Kind() == reflect.Ptr {
		p := reflect.New(typ.Elem())
		return p, p.Elem()
	}
	p := reflect.New(typ).Elem()
	return p, p
}
