package avcodec

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	defaulterType       = reflect.TypeOf((*Defaulter)(nil)).Elem()
	tupleStructType     = reflect.TypeOf(TupleStruct{})
	charType            = reflect.TypeOf(Char(0))
	numberType          = reflect.TypeOf(Number(""))
)

// shape is the closed set of value shapes the encoder and decoder dispatch on.
type shape uint8

const (
	shapeInvalid shape = iota
	shapeUnit
	shapeBool
	shapeInt
	shapeUint
	shapeFloat
	shapeNumber
	shapeChar
	shapeString
	shapeText
	shapeBytes
	shapeOption
	shapeSeq
	shapeSet
	shapeTuple
	shapeStruct
	shapeMap
	shapeEnum
	shapeValueEnum
	shapeAny
)

var shapeNames = [...]string{
	shapeInvalid:   "invalid",
	shapeUnit:      "unit",
	shapeBool:      "bool",
	shapeInt:       "int",
	shapeUint:      "uint",
	shapeFloat:     "float",
	shapeNumber:    "number",
	shapeChar:      "char",
	shapeString:    "string",
	shapeText:      "text",
	shapeBytes:     "bytes",
	shapeOption:    "option",
	shapeSeq:       "sequence",
	shapeSet:       "set",
	shapeTuple:     "tuple",
	shapeStruct:    "struct",
	shapeMap:       "map",
	shapeEnum:      "enum",
	shapeValueEnum: "enum",
	shapeAny:       "any",
}

func (s shape) String() string {
	return shapeNames[s]
}

// isAggregate reports whether values of this shape may sit at the root of an item.
func (s shape) isAggregate() bool {
	switch s {
	case shapeTuple, shapeStruct, shapeMap, shapeEnum, shapeValueEnum:
		return true
	default:
		return false
	}
}

var shapeCache sync.Map

func shapeOf(typ reflect.Type) shape {
	if v, ok := shapeCache.Load(typ); ok {
		return v.(shape)
	}
	// registration clears the cache under the write lock, so a shape
	// computed from an older registry is never stored after that
	enumRegistry.RLock()
	defer enumRegistry.RUnlock()
	s := shapeOfWithoutCache(typ)
	shapeCache.Store(typ, s)
	return s
}

// shapeOfWithoutCache must be called with enumRegistry read-locked.
func shapeOfWithoutCache(typ reflect.Type) shape {
	switch typ {
	case charType:
		return shapeChar
	case numberType:
		return shapeNumber
	}
	if enumRegistry.valueEnums[typ] != nil {
		return shapeValueEnum
	}
	k := typ.Kind()
	if k == reflect.Interface {
		if enumRegistry.enums[typ] != nil {
			return shapeEnum
		}
		return shapeAny
	}
	if k != reflect.Ptr {
		if m, u := textMethods(typ); m && u {
			return shapeText
		} else if m || u {
			return shapeInvalid
		}
	}
	switch k {
	case reflect.Bool:
		return shapeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return shapeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return shapeUint
	case reflect.Float32, reflect.Float64:
		return shapeFloat
	case reflect.String:
		return shapeString
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			return shapeBytes
		}
		return shapeSeq
	case reflect.Map:
		if isEmptyStruct(typ.Elem()) {
			return shapeSet
		}
		return shapeMap
	case reflect.Struct:
		if typ.NumField() == 0 {
			return shapeUnit
		}
		if f := typ.Field(0); f.Anonymous && f.Type == tupleStructType {
			return shapeTuple
		}
		return shapeStruct
	case reflect.Ptr:
		return shapeOption
	default:
		return shapeInvalid
	}
}

// textMethods reports whether T or *T implements encoding.TextMarshaler and
// whether *T implements encoding.TextUnmarshaler.
func textMethods(typ reflect.Type) (marshal, unmarshal bool) {
	ptr := reflect.PointerTo(typ)
	return typ.Implements(textMarshalerType) || ptr.Implements(textMarshalerType), ptr.Implements(textUnmarshalerType)
}

// unsupportedMsg explains why typ has no shape.
func unsupportedMsg(typ reflect.Type, verb string) string {
	if typ.Kind() != reflect.Ptr && typ.Kind() != reflect.Interface {
		switch m, u := textMethods(typ); {
		case m && !u:
			return fmt.Sprintf("%v implements encoding.TextMarshaler but not encoding.TextUnmarshaler", typ)
		case u && !m:
			return fmt.Sprintf("%v implements encoding.TextUnmarshaler but not encoding.TextMarshaler", typ)
		}
	}
	return fmt.Sprintf("cannot %s %v", verb, typ.Kind())
}

// marshalText calls MarshalText on v, through a pointer when the method
// needs one. Unaddressable values are copied first.
func marshalText(v reflect.Value) ([]byte, error) {
	if tm, ok := v.Interface().(encoding.TextMarshaler); ok {
		return tm.MarshalText()
	}
	if !v.CanAddr() {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		v = p.Elem()
	}
	return v.Addr().Interface().(encoding.TextMarshaler).MarshalText()
}

func unmarshalText(v reflect.Value, b []byte) error {
	return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText(b)
}

func isEmptyStruct(typ reflect.Type) bool {
	return typ.Kind() == reflect.Struct && typ.NumField() == 0
}

type fieldInfo struct {
	name  string
	index []int
	typ   reflect.Type
	fieldTag
}

type structInfo struct {
	typ    reflect.Type
	tuple  bool
	fields []*fieldInfo
	byName map[string]*fieldInfo
	err    *Error
}

// errAt reports the type's structural problem at the given path.
func (si *structInfo) errAt(path string) error {
	e := *si.err
	e.Path = path
	return &e
}

func (si *structInfo) field(v reflect.Value, fi *fieldInfo) reflect.Value {
	if len(fi.index) == 1 {
		return v.Field(fi.index[0])
	}
	return v.FieldByIndex(fi.index)
}

type structInfoKey struct {
	typ    reflect.Type
	tagKey string
}

var structInfoCache sync.Map

func reflectStruct(typ reflect.Type, tagKey string) *structInfo {
	key := structInfoKey{typ, tagKey}
	if v, ok := structInfoCache.Load(key); ok {
		return v.(*structInfo)
	}
	info := reflectStructWithoutCache(typ, tagKey)
	actual, _ := structInfoCache.LoadOrStore(key, info)
	return actual.(*structInfo)
}

func reflectStructWithoutCache(typ reflect.Type, tagKey string) *structInfo {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	si := &structInfo{
		typ:    typ,
		tuple:  shapeOf(typ) == shapeTuple,
		byName: make(map[string]*fieldInfo),
	}
	si.collect(typ, tagKey, nil)
	return si
}

func (si *structInfo) collect(typ reflect.Type, tagKey string, index []int) {
	n := typ.NumField()
	for i := 0; i < n; i++ {
		f := typ.Field(i)
		if f.Anonymous && f.Type == tupleStructType {
			continue
		}
		tag := parseFieldTag(f.Tag.Get(tagKey))
		if tag.skip {
			continue
		}
		idx := append(slices.Clone(index), i)
		if f.Anonymous && tag.name == "" && !si.tuple && shapeOf(f.Type) == shapeStruct {
			si.collect(f.Type, tagKey, idx)
			continue
		}
		if !f.IsExported() {
			continue
		}

		fi := &fieldInfo{
			index:    idx,
			typ:      f.Type,
			fieldTag: tag,
		}
		if si.tuple {
			fi.name = positionalKey(len(si.fields))
		} else if tag.name != "" {
			fi.name = tag.name
		} else {
			fi.name = f.Name
		}

		if si.err == nil {
			if isReservedName(fi.name) {
				si.err = &Error{Kind: UnsupportedShape, Type: si.typ, Msg: fmt.Sprintf("field %s uses reserved name %q", f.Name, fi.name)}
			} else if si.byName[fi.name] != nil {
				si.err = &Error{Kind: UnsupportedShape, Type: si.typ, Msg: fmt.Sprintf("duplicate field name %q", fi.name)}
			}
		}
		si.fields = append(si.fields, fi)
		si.byName[fi.name] = fi
	}
}
