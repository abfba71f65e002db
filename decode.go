package avcodec

import (
	"bytes"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"
)

type DecoderOptions struct {
	// TagKey is the struct tag holding field options. Defaults to "ddb".
	TagKey string
	// UseNumber makes numbers decoded into any targets Number instead of float64.
	UseNumber bool
	// DisallowUnknownFields fails struct decoding when the stored map has
	// keys that match no field.
	DisallowUnknownFields bool
}

// Decoder turns attribute values into Go values. It is safe for concurrent use.
type Decoder struct {
	tagKey    string
	useNumber bool
	strict    bool
}

func NewDecoder(opt DecoderOptions) *Decoder {
	if opt.TagKey == "" {
		opt.TagKey = DefaultTagKey
	}
	return &Decoder{
		tagKey:    opt.TagKey,
		useNumber: opt.UseNumber,
		strict:    opt.DisallowUnknownFields,
	}
}

var defaultDecoder = NewDecoder(DecoderOptions{})

// Unmarshal decodes item into the value v points to, using the root rules:
// structs, tuples, maps and enums read the item's entries directly.
func Unmarshal(item Item, v any) error {
	return defaultDecoder.Unmarshal(item, v)
}

// UnmarshalValue decodes a single nested attribute value into the value v points to.
func UnmarshalValue(av AttributeValue, v any) error {
	return defaultDecoder.UnmarshalValue(av, v)
}

func (dec *Decoder) Unmarshal(item Item, v any) error {
	rv, err := decodeTarget(v)
	if err != nil {
		return err
	}
	return dec.decode(rootCursor(item), rv)
}

func (dec *Decoder) UnmarshalValue(av AttributeValue, v any) error {
	rv, err := decodeTarget(v)
	if err != nil {
		return err
	}
	return dec.decode(valueCursor(av), rv)
}

func decodeTarget(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return rv, errf(UnsupportedShape, "", reflect.TypeOf(v), nil, "decode target must be a non-nil pointer")
	}
	return rv.Elem(), nil
}

func (dec *Decoder) decode(c cursor, v reflect.Value) error {
	typ := v.Type()
	s := shapeOf(typ)
	if c.atRoot() && !s.isAggregate() {
		switch s {
		case shapeOption:
			if v.IsNil() {
				v.Set(reflect.New(typ.Elem()))
			}
			return dec.decode(c, v.Elem())
		case shapeAny:
			return dec.decodeAnyInto(c, v, MapValue(c.fields))
		default:
			return errf(MissingAggregateRoot, "", typ, nil, "cannot decode an item into a %v", s)
		}
	}

	switch s {
	case shapeInvalid:
		return errf(UnsupportedShape, c.path, typ, nil, "%s", unsupportedMsg(typ, "decode"))
	case shapeTuple, shapeStruct:
		si := reflectStruct(typ, dec.tagKey)
		return dec.decodeStruct(c, v, si, si.tuple)
	case shapeMap:
		return dec.decodeMap(c, v)
	case shapeEnum:
		return dec.decodeEnum(c, v)
	case shapeValueEnum:
		return dec.decodeValueEnum(c, v)
	case shapeOption:
		return dec.decodeOption(c, v)
	case shapeAny:
		av, ok := c.fetch()
		if !ok || av.IsNull() {
			v.Set(reflect.Zero(typ))
			return nil
		}
		return dec.decodeAnyInto(c, v, av)
	}

	av, ok := c.fetch()
	if !ok {
		switch s {
		case shapeString, shapeText, shapeBytes:
			v.Set(reflect.Zero(typ))
			return nil
		}
		return errf(MissingField, c.path, typ, nil, "")
	}

	switch s {
	case shapeUnit:
		if !av.IsNull() {
			return c.wrongKind(av, typ, "NULL")
		}
		v.Set(reflect.Zero(typ))
	case shapeBool:
		b, ok := av.AsBool()
		if !ok {
			return c.wrongKind(av, typ, "BOOL")
		}
		v.SetBool(b)
	case shapeInt:
		str, ok := av.AsNumber()
		if !ok {
			return c.wrongKind(av, typ, "N")
		}
		n, err := strconv.ParseInt(str, 10, typ.Bits())
		if err != nil {
			return errf(InvalidType, c.path, typ, err, "")
		}
		v.SetInt(n)
	case shapeUint:
		str, ok := av.AsNumber()
		if !ok {
			return c.wrongKind(av, typ, "N")
		}
		n, err := strconv.ParseUint(str, 10, typ.Bits())
		if err != nil {
			return errf(InvalidType, c.path, typ, err, "")
		}
		v.SetUint(n)
	case shapeFloat:
		str, ok := av.AsNumber()
		if !ok {
			return c.wrongKind(av, typ, "N")
		}
		f, err := strconv.ParseFloat(str, typ.Bits())
		if err != nil {
			return errf(InvalidType, c.path, typ, err, "")
		}
		v.SetFloat(f)
	case shapeNumber:
		str, ok := av.AsNumber()
		if !ok {
			return c.wrongKind(av, typ, "N")
		}
		v.SetString(str)
	case shapeChar:
		str, ok := av.AsString()
		if !ok {
			return c.wrongKind(av, typ, "S")
		}
		r, err := parseChar(str)
		if err != nil {
			return errf(InvalidType, c.path, typ, err, "")
		}
		v.SetInt(int64(r))
	case shapeString:
		if av.IsNull() {
			v.SetString("")
			return nil
		}
		str, ok := av.AsString()
		if !ok {
			return c.wrongKind(av, typ, "S")
		}
		v.SetString(str)
	case shapeText:
		if av.IsNull() {
			v.Set(reflect.Zero(typ))
			return nil
		}
		str, ok := av.AsString()
		if !ok {
			return c.wrongKind(av, typ, "S")
		}
		err := unmarshalText(v, []byte(str))
		if err != nil {
			return errf(InvalidType, c.path, typ, err, "UnmarshalText failed")
		}
	case shapeBytes:
		return dec.decodeBytes(c, v, av)
	case shapeSeq:
		return dec.decodeSeq(c, v, av)
	case shapeSet:
		return dec.decodeSet(c, v, av)
	default:
		return errf(UnsupportedShape, c.path, typ, nil, "%s", unsupportedMsg(typ, "decode"))
	}
	return nil
}

func (dec *Decoder) decodeOption(c cursor, v reflect.Value) error {
	av, ok := c.fetch()
	if !ok || av.IsNull() {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	elem := reflect.New(v.Type().Elem())
	if err := dec.decode(c, elem.Elem()); err != nil {
		return err
	}
	v.Set(elem)
	return nil
}

func (dec *Decoder) decodeBytes(c cursor, v reflect.Value, av AttributeValue) error {
	typ := v.Type()
	if av.IsNull() {
		v.Set(reflect.Zero(typ))
		return nil
	}
	b, ok := av.AsBinary()
	if !ok {
		return c.wrongKind(av, typ, "B")
	}
	if typ.Kind() == reflect.Slice {
		v.SetBytes(bytes.Clone(b))
		return nil
	}
	if len(b) != typ.Len() {
		return errf(InvalidType, c.path, typ, nil, "expected %d bytes, got %d", typ.Len(), len(b))
	}
	for i, x := range b {
		v.Index(i).SetUint(uint64(x))
	}
	return nil
}

func (dec *Decoder) decodeSeq(c cursor, v reflect.Value, av AttributeValue) error {
	typ := v.Type()
	if av.IsNull() && typ.Kind() == reflect.Slice {
		v.Set(reflect.Zero(typ))
		return nil
	}
	if !av.Kind().IsListLike() {
		return c.wrongKind(av, typ, "L, SS, NS or BS")
	}
	n := av.Len()
	if typ.Kind() == reflect.Array {
		if n != typ.Len() {
			return errf(InvalidType, c.path, typ, nil, "expected %d elements, got %d", typ.Len(), n)
		}
	} else {
		v.Set(reflect.MakeSlice(typ, n, n))
	}
	for i := 0; i < n; i++ {
		if err := dec.decode(c.elem(av, i), v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (dec *Decoder) decodeSet(c cursor, v reflect.Value, av AttributeValue) error {
	typ := v.Type()
	if av.IsNull() {
		v.Set(reflect.Zero(typ))
		return nil
	}
	if !av.Kind().IsListLike() {
		return c.wrongKind(av, typ, "L, SS, NS or BS")
	}
	n := av.Len()
	m := reflect.MakeMapWithSize(typ, n)
	present := reflect.Zero(typ.Elem())
	for i := 0; i < n; i++ {
		k := reflect.New(typ.Key()).Elem()
		if err := dec.decode(c.elem(av, i), k); err != nil {
			return err
		}
		m.SetMapIndex(k, present)
	}
	v.Set(m)
	return nil
}

// decodeStruct decodes structs and tuples. Structs are driven by their own
// field set: unknown stored keys are ignored, missing ones go through
// decodeMissing. Positional decoding stops at the first missing index.
func (dec *Decoder) decodeStruct(c cursor, v reflect.Value, si *structInfo, positional bool) error {
	if si.err != nil {
		return si.errAt(c.path)
	}
	fields, err := c.aggregate(v.Type())
	if err != nil {
		return err
	}

	if positional {
		for i, fi := range si.fields {
			key := positionalKey(i)
			if _, ok := fields[key]; !ok {
				break
			}
			if err := dec.decode(c.child(fields, key), si.field(v, fi)); err != nil {
				return err
			}
		}
		return nil
	}

	for _, fi := range si.fields {
		fc := c.child(fields, fi.name)
		fv := si.field(v, fi)
		if _, ok := fields[fi.name]; !ok {
			if err := dec.decodeMissing(fc, fi, fv); err != nil {
				return err
			}
			continue
		}
		if err := dec.decode(fc, fv); err != nil {
			return err
		}
	}

	if dec.strict {
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			if si.byName[k] == nil {
				return errf(UnknownField, keyPath(c.path, k), v.Type(), nil, "")
			}
		}
	}
	return nil
}

func (dec *Decoder) decodeMissing(c cursor, fi *fieldInfo, fv reflect.Value) error {
	switch {
	case fi.hasDefault:
		return dec.decode(c.withValue(defaultValue(fi.typ, fi.defaultLit)), fv)
	case reflect.PointerTo(fi.typ).Implements(defaulterType):
		fv.Set(reflect.Zero(fi.typ))
		fv.Addr().Interface().(Defaulter).SetDefault()
		return nil
	case fi.omitEmpty || fi.set:
		fv.Set(reflect.Zero(fi.typ))
		return nil
	default:
		// options, strings and bytes accept absence, everything else fails
		return dec.decode(c, fv)
	}
}

// defaultValue converts a default= literal into the attribute value the
// field's type decodes from.
func defaultValue(typ reflect.Type, lit string) AttributeValue {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch shapeOf(typ) {
	case shapeBool:
		if b, err := strconv.ParseBool(lit); err == nil {
			return BoolValue(b)
		}
		return StringValue(lit)
	case shapeInt, shapeUint, shapeFloat, shapeNumber:
		return NumberValue(lit)
	default:
		return StringValue(lit)
	}
}

func (dec *Decoder) decodeMap(c cursor, v reflect.Value) error {
	typ := v.Type()
	if av, ok := c.fetch(); ok && av.IsNull() {
		v.Set(reflect.Zero(typ))
		return nil
	}
	fields, err := c.aggregate(typ)
	if err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(typ, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kc := c.child(fields, k)
		kv, err := parseKey(k, typ.Key(), kc.path)
		if err != nil {
			return err
		}
		ev := reflect.New(typ.Elem()).Elem()
		if err := dec.decode(kc, ev); err != nil {
			return err
		}
		m.SetMapIndex(kv, ev)
	}
	v.Set(m)
	return nil
}

func (dec *Decoder) decodeEnum(c cursor, v reflect.Value) error {
	typ := v.Type()
	info := lookupEnum(typ)

	var fields Item
	if c.atRoot() {
		fields = c.fields
	} else {
		av, ok := c.fetch()
		if !ok || av.IsNull() {
			v.Set(reflect.Zero(typ))
			return nil
		}
		if name, ok := av.AsString(); ok {
			return dec.decodeShortEnum(c, v, info, name)
		}
		m, ok := av.AsMap()
		if !ok {
			return c.wrongKind(av, typ, "M or S")
		}
		fields = m
	}

	name, err := enumTag(c, fields, typ)
	if err != nil {
		return err
	}
	variant := info.byName[name]
	if variant == nil {
		return errf(InvalidType, keyPath(c.path, enumTagKey), typ, nil, "unknown variant %q", name)
	}

	result, payload := newVariantValue(variant.typ)
	vc := c.child(fields, enumValuesKey)
	switch variant.kind {
	case newtypeVariant:
		values, err := vc.aggregate(variant.typ)
		if err != nil {
			return err
		}
		if err := dec.decode(vc.child(values, positionalKey(0)), payload); err != nil {
			return err
		}
	case tupleVariant, structVariant:
		si := reflectStruct(payload.Type(), dec.tagKey)
		if err := dec.decodeStruct(vc, payload, si, variant.kind == tupleVariant); err != nil {
			return err
		}
	}
	v.Set(result)
	return nil
}

// decodeShortEnum handles a bare S naming a unit variant.
func (dec *Decoder) decodeShortEnum(c cursor, v reflect.Value, info *enumInfo, name string) error {
	variant := info.byName[name]
	if variant == nil {
		return errf(InvalidType, c.path, v.Type(), nil, "unknown variant %q", name)
	}
	if variant.kind != unitVariant {
		return errf(InvalidType, c.path, v.Type(), nil, "variant %q requires a payload", name)
	}
	result, _ := newVariantValue(variant.typ)
	v.Set(result)
	return nil
}

func (dec *Decoder) decodeValueEnum(c cursor, v reflect.Value) error {
	typ := v.Type()
	info := lookupValueEnum(typ)

	var name string
	namePath := c.path
	if c.atRoot() {
		var err error
		if name, err = enumTag(c, c.fields, typ); err != nil {
			return err
		}
		namePath = enumTagKey
	} else {
		av, ok := c.fetch()
		if !ok {
			return errf(MissingField, c.path, typ, nil, "")
		}
		switch av.Kind() {
		case KindString:
			name = av.str
		case KindMap:
			var err error
			if name, err = enumTag(c, av.m, typ); err != nil {
				return err
			}
			namePath = keyPath(c.path, enumTagKey)
		default:
			return c.wrongKind(av, typ, "M or S")
		}
	}

	ev, ok := info.values[name]
	if !ok {
		return errf(InvalidType, namePath, typ, nil, "unknown variant %q", name)
	}
	v.Set(ev)
	return nil
}

func enumTag(c cursor, fields Item, typ reflect.Type) (string, error) {
	tc := c.child(fields, enumTagKey)
	av, ok := tc.fetch()
	if !ok {
		return "", errf(MissingField, tc.path, typ, nil, "")
	}
	name, ok := av.AsString()
	if !ok {
		return "", tc.wrongKind(av, typ, "S")
	}
	return name, nil
}

func (dec *Decoder) decodeAnyInto(c cursor, v reflect.Value, av AttributeValue) error {
	x, err := dec.decodeAny(c, av)
	if err != nil {
		return err
	}
	if x == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	xv := reflect.ValueOf(x)
	if !xv.Type().AssignableTo(v.Type()) {
		return errf(UnsupportedShape, c.path, v.Type(), nil, "cannot store %T", x)
	}
	v.Set(xv)
	return nil
}

// decodeAny decodes without a target type, sniffing the populated variant
// in the order binary, boolean, list-like, map, number, null, string.
func (dec *Decoder) decodeAny(c cursor, av AttributeValue) (any, error) {
	switch k := av.Kind(); {
	case k == KindBinary:
		return bytes.Clone(av.bin), nil
	case k == KindBool:
		return av.bl, nil
	case k.IsListLike():
		n := av.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			ec := c.elem(av, i)
			el, _ := ec.fetch()
			x, err := dec.decodeAny(ec, el)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case k == KindMap:
		out := make(map[string]any, len(av.m))
		for key := range av.m {
			kc := c.child(av.m, key)
			el, _ := kc.fetch()
			x, err := dec.decodeAny(kc, el)
			if err != nil {
				return nil, err
			}
			out[key] = x
		}
		return out, nil
	case k == KindNumber:
		if dec.useNumber {
			return Number(av.str), nil
		}
		f, err := strconv.ParseFloat(av.str, 64)
		if err != nil {
			return nil, errf(InvalidType, c.path, nil, err, "")
		}
		return f, nil
	case k == KindNull:
		return nil, nil
	case k == KindString:
		return av.str, nil
	default:
		panic(emptyValuePanic(c.path))
	}
}

func parseChar(s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || (r == utf8.RuneError && size == 1) {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	return r, nil
}
