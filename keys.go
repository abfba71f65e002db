package avcodec

import (
	"math"
	"reflect"
	"strconv"
)

// keyString serializes a map key. Only scalars can be keys; []byte keys are
// UnsupportedShape and every composite kind is UnsupportedKeyType.
func keyString(k reflect.Value, path string) (string, error) {
	typ := k.Type()
	switch shapeOf(typ) {
	case shapeString:
		return k.String(), nil
	case shapeText:
		b, err := marshalText(k)
		if err != nil {
			return "", errf(UnsupportedKeyType, path, typ, err, "MarshalText failed")
		}
		return string(b), nil
	case shapeChar:
		return string(rune(k.Int())), nil
	case shapeNumber:
		return k.String(), nil
	case shapeBool:
		return strconv.FormatBool(k.Bool()), nil
	case shapeInt:
		return strconv.FormatInt(k.Int(), 10), nil
	case shapeUint:
		return strconv.FormatUint(k.Uint(), 10), nil
	case shapeFloat:
		return formatFloat(k.Float(), typ, path)
	case shapeValueEnum:
		return valueEnumName(k, path)
	case shapeBytes:
		return "", errf(UnsupportedShape, path, typ, nil, "raw bytes as a map key")
	default:
		return "", errf(UnsupportedKeyType, path, typ, nil, "can't serialize as a key as it's of type %v", typ)
	}
}

// parseKey is the inverse of keyString.
func parseKey(s string, typ reflect.Type, path string) (reflect.Value, error) {
	v := reflect.New(typ).Elem()
	switch shapeOf(typ) {
	case shapeString, shapeNumber:
		v.SetString(s)
	case shapeText:
		err := unmarshalText(v, []byte(s))
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
	case shapeChar:
		r, err := parseChar(s)
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
		v.SetInt(int64(r))
	case shapeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
		v.SetBool(b)
	case shapeInt:
		n, err := strconv.ParseInt(s, 10, typ.Bits())
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
		v.SetInt(n)
	case shapeUint:
		n, err := strconv.ParseUint(s, 10, typ.Bits())
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
		v.SetUint(n)
	case shapeFloat:
		f, err := strconv.ParseFloat(s, typ.Bits())
		if err != nil {
			return v, errf(InvalidType, path, typ, err, "key %q", s)
		}
		v.SetFloat(f)
	case shapeValueEnum:
		ev, ok := lookupValueEnum(typ).values[s]
		if !ok {
			return v, errf(InvalidType, path, typ, nil, "unknown variant %q", s)
		}
		v.Set(ev)
	case shapeBytes:
		return v, errf(UnsupportedShape, path, typ, nil, "raw bytes as a map key")
	default:
		return v, errf(UnsupportedKeyType, path, typ, nil, "can't deserialize a key of type %v", typ)
	}
	return v, nil
}

func formatFloat(f float64, typ reflect.Type, path string) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errf(UnsupportedShape, path, typ, nil, "%v is not representable as a number", f)
	}
	return strconv.FormatFloat(f, 'g', -1, typ.Bits()), nil
}
