package avcodec

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

type EncoderOptions struct {
	// TagKey is the struct tag holding field options. Defaults to "ddb".
	TagKey string
	// NativeSets writes map[K]struct{} sets as SS, NS or BS instead of L
	// when the key type allows it.
	NativeSets bool
}

// Encoder turns Go values into attribute values. It is safe for concurrent use.
type Encoder struct {
	tagKey     string
	nativeSets bool
}

func NewEncoder(opt EncoderOptions) *Encoder {
	if opt.TagKey == "" {
		opt.TagKey = DefaultTagKey
	}
	return &Encoder{
		tagKey:     opt.TagKey,
		nativeSets: opt.NativeSets,
	}
}

var defaultEncoder = NewEncoder(EncoderOptions{})

// Marshal encodes v as an item. v must be a struct, tuple, map or enum, or a
// pointer to one; to encode an enum at the root, pass a pointer to the
// interface value.
func Marshal(v any) (Item, error) {
	return defaultEncoder.Marshal(v)
}

// MarshalValue encodes v as a single attribute value, for use at a nested
// position. An empty string or byte slice yields NULL.
func MarshalValue(v any) (AttributeValue, error) {
	return defaultEncoder.MarshalValue(v)
}

func (enc *Encoder) Marshal(v any) (Item, error) {
	es := encodeState{enc: enc}
	return es.encodeRoot(reflect.ValueOf(v))
}

func (enc *Encoder) MarshalValue(v any) (AttributeValue, error) {
	es := encodeState{enc: enc}
	return es.encodeSlot(reflect.ValueOf(v), "")
}

type visitKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

type encodeState struct {
	enc      *Encoder
	visiting map[visitKey]struct{}
}

func (es *encodeState) encodeRoot(v reflect.Value) (Item, error) {
	for v.IsValid() && (v.Kind() == reflect.Ptr || (v.Kind() == reflect.Interface && shapeOf(v.Type()) == shapeAny)) {
		if v.IsNil() {
			return nil, errf(MissingAggregateRoot, "", v.Type(), nil, "nil value")
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, errf(MissingAggregateRoot, "", nil, nil, "nil value")
	}
	s := shapeOf(v.Type())
	if !s.isAggregate() {
		return nil, errf(MissingAggregateRoot, "", v.Type(), nil, "got %v", s)
	}
	if s == shapeEnum && v.IsNil() {
		return nil, errf(MissingAggregateRoot, "", v.Type(), nil, "nil enum")
	}
	return es.encodeFields(v, s, "")
}

// encodeFields produces the entries of an aggregate: the item itself at the
// root, the contents of an M anywhere else.
func (es *encodeState) encodeFields(v reflect.Value, s shape, path string) (Item, error) {
	switch s {
	case shapeStruct, shapeTuple:
		si := reflectStruct(v.Type(), es.enc.tagKey)
		return es.encodeStruct(v, si, path, si.tuple)
	case shapeMap:
		return es.encodeMap(v, path)
	case shapeEnum:
		return es.encodeEnum(v, path)
	case shapeValueEnum:
		name, err := valueEnumName(v, path)
		if err != nil {
			return nil, err
		}
		return Item{enumTagKey: StringValue(name)}, nil
	default:
		panic(fmt.Errorf("%v is not an aggregate", s))
	}
}

// encodeSlot encodes a positional value, where omission would shift the
// following positions, so empty strings and bytes become NULL.
func (es *encodeState) encodeSlot(v reflect.Value, path string) (AttributeValue, error) {
	av, omit, err := es.encode(v, path)
	if err != nil {
		return AttributeValue{}, err
	}
	if omit {
		return NullValue(), nil
	}
	return av, nil
}

// encode returns the value for a single nested position. omit is set for
// empty strings and byte slices, which must not be written at all.
func (es *encodeState) encode(v reflect.Value, path string) (av AttributeValue, omit bool, err error) {
	if !v.IsValid() {
		return NullValue(), false, nil
	}
	typ := v.Type()
	switch s := shapeOf(typ); s {
	case shapeUnit:
		return NullValue(), false, nil
	case shapeBool:
		return BoolValue(v.Bool()), false, nil
	case shapeInt:
		return NumberValue(strconv.FormatInt(v.Int(), 10)), false, nil
	case shapeUint:
		return NumberValue(strconv.FormatUint(v.Uint(), 10)), false, nil
	case shapeFloat:
		str, err := formatFloat(v.Float(), typ, path)
		if err != nil {
			return av, false, err
		}
		return NumberValue(str), false, nil
	case shapeNumber:
		str := v.String()
		if str == "" {
			return av, true, nil
		}
		if _, err := strconv.ParseFloat(str, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
			return av, false, errf(UnsupportedShape, path, typ, nil, "%q is not a number", str)
		}
		return NumberValue(str), false, nil
	case shapeChar:
		return StringValue(string(rune(v.Int()))), false, nil
	case shapeString:
		str := v.String()
		if str == "" {
			return av, true, nil
		}
		return StringValue(str), false, nil
	case shapeText:
		b, err := marshalText(v)
		if err != nil {
			return av, false, errf(UnsupportedShape, path, typ, err, "MarshalText failed")
		}
		if len(b) == 0 {
			return av, true, nil
		}
		return StringValue(string(b)), false, nil
	case shapeBytes:
		b := bytesOf(v)
		if len(b) == 0 {
			return av, true, nil
		}
		return BinaryValue(b), false, nil
	case shapeOption:
		return es.encodeOption(v, path)
	case shapeSeq:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return NullValue(), false, nil
		}
		av, err := es.encodeSeq(v, path)
		return av, false, err
	case shapeSet:
		if v.IsNil() {
			return NullValue(), false, nil
		}
		return es.encodeSet(v, path, es.enc.nativeSets, false)
	case shapeTuple, shapeStruct, shapeMap, shapeEnum, shapeValueEnum:
		if (s == shapeMap || s == shapeEnum) && v.IsNil() {
			return NullValue(), false, nil
		}
		fields, err := es.encodeFields(v, s, path)
		if err != nil {
			return av, false, err
		}
		return MapValue(fields), false, nil
	case shapeAny:
		if v.IsNil() {
			return NullValue(), false, nil
		}
		return es.encode(v.Elem(), path)
	default:
		return av, false, errf(UnsupportedShape, path, typ, nil, "%s", unsupportedMsg(typ, "encode"))
	}
}

func (es *encodeState) encodeOption(v reflect.Value, path string) (AttributeValue, bool, error) {
	if v.IsNil() {
		return NullValue(), false, nil
	}
	leave, err := es.enter(v, path)
	if err != nil {
		return AttributeValue{}, false, err
	}
	defer leave()
	return es.encode(v.Elem(), path)
}

// enter marks a pointer, map or slice as being encoded and fails if it
// already is, which means the value refers back to itself.
func (es *encodeState) enter(v reflect.Value, path string) (leave func(), err error) {
	key := visitKey{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		key.len = v.Len()
	}
	if _, found := es.visiting[key]; found {
		return nil, errf(UnsupportedShape, path, v.Type(), nil, "%v cycle", v.Kind())
	}
	if es.visiting == nil {
		es.visiting = make(map[visitKey]struct{})
	}
	es.visiting[key] = struct{}{}
	return func() { delete(es.visiting, key) }, nil
}

func (es *encodeState) encodeSeq(v reflect.Value, path string) (AttributeValue, error) {
	n := v.Len()
	if v.Kind() == reflect.Slice && n > 0 {
		leave, err := es.enter(v, path)
		if err != nil {
			return AttributeValue{}, err
		}
		defer leave()
	}
	list := make([]AttributeValue, n)
	for i := 0; i < n; i++ {
		av, err := es.encodeSlot(v.Index(i), indexPath(path, i))
		if err != nil {
			return AttributeValue{}, err
		}
		list[i] = av
	}
	return ListValue(list...), nil
}

// encodeSet writes a map[K]struct{} in key order, as a native set when native
// is on and K allows it. With required, a non-native key type is an error.
func (es *encodeState) encodeSet(v reflect.Value, path string, native, required bool) (AttributeValue, bool, error) {
	keys := v.MapKeys()
	slices.SortFunc(keys, compareKeys)
	if native {
		if kind := nativeSetKind(v.Type().Key()); kind != KindInvalid {
			return es.encodeNativeSet(keys, kind, path)
		} else if required {
			return AttributeValue{}, false, errf(UnsupportedShape, path, v.Type(), nil, "elements cannot form a native set")
		}
	}
	list := make([]AttributeValue, len(keys))
	for i, k := range keys {
		av, err := es.encodeSlot(k, indexPath(path, i))
		if err != nil {
			return AttributeValue{}, false, err
		}
		list[i] = av
	}
	return ListValue(list...), false, nil
}

// encodeAsSet handles fields tagged with the set option.
func (es *encodeState) encodeAsSet(v reflect.Value, path string) (AttributeValue, bool, error) {
	typ := v.Type()
	switch shapeOf(typ) {
	case shapeSet:
		return es.encodeSet(v, path, true, true)
	case shapeSeq:
		kind := nativeSetKind(typ.Elem())
		if kind == KindInvalid {
			return AttributeValue{}, false, errf(UnsupportedShape, path, typ, nil, "elements cannot form a native set")
		}
		elems := make([]reflect.Value, v.Len())
		for i := range elems {
			elems[i] = v.Index(i)
		}
		return es.encodeNativeSet(elems, kind, path)
	case shapeOption:
		if v.IsNil() {
			return AttributeValue{}, true, nil
		}
		return es.encodeAsSet(v.Elem(), path)
	default:
		return AttributeValue{}, false, errf(UnsupportedShape, path, typ, nil, "set option on a %v", shapeOf(typ))
	}
}

// encodeNativeSet builds an SS, NS or BS. Empty sets are omitted because the
// wire format has no empty set.
func (es *encodeState) encodeNativeSet(elems []reflect.Value, kind Kind, path string) (AttributeValue, bool, error) {
	if len(elems) == 0 {
		return AttributeValue{}, true, nil
	}
	var strs []string
	var bins [][]byte
	seen := make(map[string]struct{}, len(elems))
	for i, el := range elems {
		elPath := indexPath(path, i)
		av, omit, err := es.encode(el, elPath)
		if err != nil {
			return AttributeValue{}, false, err
		}
		if omit {
			return AttributeValue{}, false, errf(UnsupportedShape, elPath, el.Type(), nil, "empty value in a set")
		}
		member := av.str
		if kind == KindBinarySet {
			member = string(av.bin)
		}
		if _, dup := seen[member]; dup {
			return AttributeValue{}, false, errf(UnsupportedShape, elPath, el.Type(), nil, "duplicate value in a set")
		}
		seen[member] = struct{}{}
		switch kind {
		case KindStringSet, KindNumberSet:
			strs = append(strs, av.str)
		case KindBinarySet:
			bins = append(bins, av.bin)
		}
	}
	switch kind {
	case KindStringSet:
		return StringSetValue(strs...), false, nil
	case KindNumberSet:
		return NumberSetValue(strs...), false, nil
	default:
		return BinarySetValue(bins...), false, nil
	}
}

func nativeSetKind(typ reflect.Type) Kind {
	switch shapeOf(typ) {
	case shapeString, shapeText, shapeChar:
		return KindStringSet
	case shapeInt, shapeUint, shapeFloat, shapeNumber:
		return KindNumberSet
	case shapeBytes:
		return KindBinarySet
	default:
		return KindInvalid
	}
}

func (es *encodeState) encodeStruct(v reflect.Value, si *structInfo, path string, positional bool) (Item, error) {
	if si.err != nil {
		return nil, si.errAt(path)
	}
	fields := make(Item, len(si.fields))
	for i, fi := range si.fields {
		fv := si.field(v, fi)
		if fi.omitEmpty && !positional && fv.IsZero() {
			continue
		}
		name := fi.name
		if positional {
			name = positionalKey(i)
		}
		fpath := keyPath(path, name)

		var av AttributeValue
		var omit bool
		var err error
		if fi.set {
			av, omit, err = es.encodeAsSet(fv, fpath)
		} else {
			av, omit, err = es.encode(fv, fpath)
		}
		if err != nil {
			return nil, err
		}
		if omit {
			if !positional {
				continue
			}
			av = NullValue()
		}
		fields[name] = av
	}
	return fields, nil
}

func (es *encodeState) encodeMap(v reflect.Value, path string) (Item, error) {
	if v.Len() > 0 {
		leave, err := es.enter(v, path)
		if err != nil {
			return nil, err
		}
		defer leave()
	}
	fields := make(Item, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := keyString(iter.Key(), path)
		if err != nil {
			return nil, err
		}
		av, omit, err := es.encode(iter.Value(), keyPath(path, k))
		if err != nil {
			return nil, err
		}
		if !omit {
			fields[k] = av
		}
	}
	return fields, nil
}

func (es *encodeState) encodeEnum(v reflect.Value, path string) (Item, error) {
	info := lookupEnum(v.Type())
	inner := v.Elem()
	variant := info.byType[inner.Type()]
	if variant == nil {
		return nil, errf(UnsupportedShape, path, inner.Type(), nil, "not a registered variant of %v", v.Type())
	}

	fields := Item{enumTagKey: StringValue(variant.name)}
	vpath := keyPath(path, enumValuesKey)
	switch variant.kind {
	case unitVariant:
		return fields, nil
	case newtypeVariant:
		av, err := es.encodeSlot(inner, keyPath(vpath, positionalKey(0)))
		if err != nil {
			return nil, err
		}
		fields[enumValuesKey] = MapValue(Item{positionalKey(0): av})
	case tupleVariant, structVariant:
		payload := inner
		if payload.Kind() == reflect.Ptr {
			if payload.IsNil() {
				return nil, errf(UnsupportedShape, path, inner.Type(), nil, "nil payload for variant %s", variant.name)
			}
			payload = payload.Elem()
		}
		si := reflectStruct(payload.Type(), es.enc.tagKey)
		values, err := es.encodeStruct(payload, si, vpath, variant.kind == tupleVariant)
		if err != nil {
			return nil, err
		}
		fields[enumValuesKey] = MapValue(values)
	}
	return fields, nil
}

func valueEnumName(v reflect.Value, path string) (string, error) {
	info := lookupValueEnum(v.Type())
	name, ok := info.names[v.Interface()]
	if !ok {
		return "", errf(UnsupportedShape, path, v.Type(), nil, "%v is not a registered value", v.Interface())
	}
	return name, nil
}

func bytesOf(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice {
		return bytes.Clone(v.Bytes())
	}
	n := v.Len()
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v.Index(i).Uint())
	}
	return b
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		if a.Bool() == b.Bool() {
			return 0
		} else if b.Bool() {
			return -1
		}
		return 1
	default:
		return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	}
}
