package avcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the byte encoding of an item. All formats carry the same
// {"S": "..."} style tree as DynamoDB JSON.
type Format int

const (
	MsgPack Format = iota
	JSON
	CBOR
)

func (f Format) String() string {
	switch f {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	case CBOR:
		return "cbor"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "msgpack", "mp":
		return MsgPack, nil
	case "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return 0, fmt.Errorf("unknown item format %q", s)
	}
}

// wireValue is the serialized form of an AttributeValue: exactly one field is non-nil.
type wireValue struct {
	S    *string               `json:"S,omitempty" msgpack:"S,omitempty" cbor:"S,omitempty"`
	N    *string               `json:"N,omitempty" msgpack:"N,omitempty" cbor:"N,omitempty"`
	B    *[]byte               `json:"B,omitempty" msgpack:"B,omitempty" cbor:"B,omitempty"`
	BOOL *bool                 `json:"BOOL,omitempty" msgpack:"BOOL,omitempty" cbor:"BOOL,omitempty"`
	NULL *bool                 `json:"NULL,omitempty" msgpack:"NULL,omitempty" cbor:"NULL,omitempty"`
	L    *[]wireValue          `json:"L,omitempty" msgpack:"L,omitempty" cbor:"L,omitempty"`
	M    *map[string]wireValue `json:"M,omitempty" msgpack:"M,omitempty" cbor:"M,omitempty"`
	SS   *[]string             `json:"SS,omitempty" msgpack:"SS,omitempty" cbor:"SS,omitempty"`
	NS   *[]string             `json:"NS,omitempty" msgpack:"NS,omitempty" cbor:"NS,omitempty"`
	BS   *[][]byte             `json:"BS,omitempty" msgpack:"BS,omitempty" cbor:"BS,omitempty"`
}

type wireItem map[string]wireValue

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("avcodec: CBOR encoder initialization failed: %w", err))
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("avcodec: CBOR decoder initialization failed: %w", err))
	}
}

func toWire(av AttributeValue) wireValue {
	var w wireValue
	switch av.kind {
	case KindString:
		w.S = &av.str
	case KindNumber:
		w.N = &av.str
	case KindBinary:
		w.B = &av.bin
	case KindBool:
		w.BOOL = &av.bl
	case KindNull:
		t := true
		w.NULL = &t
	case KindList:
		list := make([]wireValue, len(av.list))
		for i, el := range av.list {
			list[i] = toWire(el)
		}
		w.L = &list
	case KindMap:
		m := make(map[string]wireValue, len(av.m))
		for k, v := range av.m {
			m[k] = toWire(v)
		}
		w.M = &m
	case KindStringSet:
		w.SS = &av.strs
	case KindNumberSet:
		w.NS = &av.strs
	case KindBinarySet:
		w.BS = &av.bins
	default:
		panic(ErrEmptyAttributeValue)
	}
	return w
}

func fromWire(w wireValue, path string) (AttributeValue, error) {
	var result AttributeValue
	n := 0
	if w.S != nil {
		result, n = StringValue(*w.S), n+1
	}
	if w.N != nil {
		result, n = NumberValue(*w.N), n+1
	}
	if w.B != nil {
		result, n = BinaryValue(*w.B), n+1
	}
	if w.BOOL != nil {
		result, n = BoolValue(*w.BOOL), n+1
	}
	if w.NULL != nil {
		if !*w.NULL {
			return result, fmt.Errorf("%s: NULL must be true", path)
		}
		result, n = NullValue(), n+1
	}
	if w.L != nil {
		list := make([]AttributeValue, len(*w.L))
		for i, el := range *w.L {
			av, err := fromWire(el, indexPath(path, i))
			if err != nil {
				return result, err
			}
			list[i] = av
		}
		result, n = ListValue(list...), n+1
	}
	if w.M != nil {
		m, err := fromWireItem(*w.M, path)
		if err != nil {
			return result, err
		}
		result, n = MapValue(m), n+1
	}
	if w.SS != nil {
		result, n = StringSetValue(*w.SS...), n+1
	}
	if w.NS != nil {
		result, n = NumberSetValue(*w.NS...), n+1
	}
	if w.BS != nil {
		result, n = BinarySetValue(*w.BS...), n+1
	}
	switch n {
	case 0:
		return result, emptyValuePanic(path)
	case 1:
		return result, nil
	default:
		return result, fmt.Errorf("%s: %d variants populated", path, n)
	}
}

func toWireItem(item Item) wireItem {
	w := make(wireItem, len(item))
	for k, v := range item {
		w[k] = toWire(v)
	}
	return w
}

func fromWireItem(w map[string]wireValue, path string) (Item, error) {
	item := make(Item, len(w))
	for k, v := range w {
		av, err := fromWire(v, keyPath(path, k))
		if err != nil {
			return nil, err
		}
		item[k] = av
	}
	return item, nil
}

// MarshalItem serializes item in the given format. Map keys are written
// in sorted order, so equal items produce equal bytes.
func MarshalItem(format Format, item Item) ([]byte, error) {
	return AppendItem(nil, format, item)
}

// AppendItem is MarshalItem that appends to buf.
func AppendItem(buf []byte, format Format, item Item) ([]byte, error) {
	if err := item.Validate(); err != nil {
		return buf, err
	}
	w := toWireItem(item)
	switch format {
	case MsgPack:
		bb := bytesBuilder{buf}
		enc := msgpack.GetEncoder()
		enc.ResetDict(&bb, nil)
		enc.SetSortMapKeys(true)
		err := enc.Encode(w)
		msgpack.PutEncoder(enc)
		if err != nil {
			return buf, fmt.Errorf("failed to encode item using MsgPack: %w", err)
		}
		return bb.Buf, nil
	case JSON:
		raw, err := json.Marshal(w)
		if err != nil {
			return buf, fmt.Errorf("failed to encode item to JSON: %w", err)
		}
		return appendRaw(buf, raw), nil
	case CBOR:
		raw, err := cborEncMode.Marshal(w)
		if err != nil {
			return buf, fmt.Errorf("failed to encode item to CBOR: %w", err)
		}
		return appendRaw(buf, raw), nil
	default:
		panic(fmt.Errorf("unsupported item format %v", format))
	}
}

// UnmarshalItem parses data written by MarshalItem. Malformed input is
// reported as *DataError.
func UnmarshalItem(format Format, data []byte) (Item, error) {
	var w map[string]wireValue
	switch format {
	case MsgPack:
		var r bytes.Reader
		r.Reset(data)
		dec := msgpack.GetDecoder()
		dec.ResetDict(&r, nil)
		err := dec.Decode(&w)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode msgpack item")
		}
	case JSON:
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode JSON item")
		}
	case CBOR:
		if err := cborDecMode.Unmarshal(data, &w); err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode CBOR item")
		}
	default:
		panic(fmt.Errorf("unsupported item format %v", format))
	}
	item, err := fromWireItem(w, "")
	if err != nil {
		return nil, dataErrf(data, 0, err, "invalid %v item", format)
	}
	return item, nil
}

// MarshalJSON writes DynamoDB JSON, e.g. {"N":"8"}.
func (av AttributeValue) MarshalJSON() ([]byte, error) {
	if !av.IsValid() {
		return nil, ErrEmptyAttributeValue
	}
	return json.Marshal(toWire(av))
}

func (av *AttributeValue) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := fromWire(w, "")
	if err != nil {
		return err
	}
	*av = v
	return nil
}

// String returns the DynamoDB JSON form, for debugging.
func (av AttributeValue) String() string {
	if !av.IsValid() {
		return "<invalid>"
	}
	raw, err := json.Marshal(toWire(av))
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(raw)
}
