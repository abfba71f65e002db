package avcodec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptyAttributeValue is reported for an AttributeValue with no populated
// variant. The decoder panics with an error wrapping it, because such a tree
// cannot be produced by this package.
var ErrEmptyAttributeValue = errors.New("attribute value has no populated variant")

// Kind identifies the populated variant of an AttributeValue.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindNull
	KindBinary
	KindList
	KindMap
	KindStringSet
	KindNumberSet
	KindBinarySet
)

var kindCodes = [...]string{
	KindString:    "S",
	KindNumber:    "N",
	KindBool:      "BOOL",
	KindNull:      "NULL",
	KindBinary:    "B",
	KindList:      "L",
	KindMap:       "M",
	KindStringSet: "SS",
	KindNumberSet: "NS",
	KindBinarySet: "BS",
}

// String returns the wire code of the kind (S, N, BOOL, ...).
func (k Kind) String() string {
	if k != KindInvalid && int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsListLike is true for L and the three set kinds, which all decode into sequences.
func (k Kind) IsListLike() bool {
	switch k {
	case KindList, KindStringSet, KindNumberSet, KindBinarySet:
		return true
	default:
		return false
	}
}

// AttributeValue is an immutable tagged union holding exactly one variant.
// The zero value holds none and is only useful as a "not found" result.
type AttributeValue struct {
	kind Kind
	str  string
	bl   bool
	bin  []byte
	list []AttributeValue
	m    map[string]AttributeValue
	strs []string
	bins [][]byte
}

// Item is a top-level document: a map of attribute names to values.
type Item map[string]AttributeValue

func StringValue(s string) AttributeValue {
	return AttributeValue{kind: KindString, str: s}
}

// NumberValue holds a decimal string. The string is not validated.
func NumberValue(decimal string) AttributeValue {
	return AttributeValue{kind: KindNumber, str: decimal}
}

func BoolValue(b bool) AttributeValue {
	return AttributeValue{kind: KindBool, bl: b}
}

func NullValue() AttributeValue {
	return AttributeValue{kind: KindNull, bl: true}
}

func BinaryValue(b []byte) AttributeValue {
	return AttributeValue{kind: KindBinary, bin: b}
}

func ListValue(items ...AttributeValue) AttributeValue {
	if items == nil {
		items = []AttributeValue{}
	}
	return AttributeValue{kind: KindList, list: items}
}

func MapValue(m map[string]AttributeValue) AttributeValue {
	if m == nil {
		m = map[string]AttributeValue{}
	}
	return AttributeValue{kind: KindMap, m: m}
}

func StringSetValue(ss ...string) AttributeValue {
	return AttributeValue{kind: KindStringSet, strs: ss}
}

func NumberSetValue(ns ...string) AttributeValue {
	return AttributeValue{kind: KindNumberSet, strs: ns}
}

func BinarySetValue(bs ...[]byte) AttributeValue {
	return AttributeValue{kind: KindBinarySet, bins: bs}
}

func (av AttributeValue) Kind() Kind    { return av.kind }
func (av AttributeValue) IsValid() bool { return av.kind != KindInvalid }
func (av AttributeValue) IsNull() bool  { return av.kind == KindNull }

func (av AttributeValue) AsString() (string, bool) {
	return av.str, av.kind == KindString
}

func (av AttributeValue) AsNumber() (string, bool) {
	return av.str, av.kind == KindNumber
}

func (av AttributeValue) AsBool() (bool, bool) {
	return av.bl, av.kind == KindBool
}

func (av AttributeValue) AsBinary() ([]byte, bool) {
	return av.bin, av.kind == KindBinary
}

func (av AttributeValue) AsList() ([]AttributeValue, bool) {
	return av.list, av.kind == KindList
}

func (av AttributeValue) AsMap() (Item, bool) {
	return av.m, av.kind == KindMap
}

func (av AttributeValue) AsStringSet() ([]string, bool) {
	return av.strs, av.kind == KindStringSet
}

func (av AttributeValue) AsNumberSet() ([]string, bool) {
	return av.strs, av.kind == KindNumberSet
}

func (av AttributeValue) AsBinarySet() ([][]byte, bool) {
	return av.bins, av.kind == KindBinarySet
}

// Len returns the number of elements of a list-like value, and 0 for anything else.
func (av AttributeValue) Len() int {
	switch av.kind {
	case KindList:
		return len(av.list)
	case KindStringSet, KindNumberSet:
		return len(av.strs)
	case KindBinarySet:
		return len(av.bins)
	default:
		return 0
	}
}

// Elem returns the i-th element of a list-like value. Set members are
// returned as scalar S, N or B values, so sets read exactly like lists.
func (av AttributeValue) Elem(i int) (AttributeValue, bool) {
	if i < 0 || i >= av.Len() {
		return AttributeValue{}, false
	}
	switch av.kind {
	case KindList:
		return av.list[i], true
	case KindStringSet:
		return StringValue(av.strs[i]), true
	case KindNumberSet:
		return NumberValue(av.strs[i]), true
	case KindBinarySet:
		return BinaryValue(av.bins[i]), true
	default:
		panic("unreachable")
	}
}

func (av AttributeValue) Equal(another AttributeValue) bool {
	if av.kind != another.kind {
		return false
	}
	switch av.kind {
	case KindInvalid, KindNull:
		return true
	case KindString, KindNumber:
		return av.str == another.str
	case KindBool:
		return av.bl == another.bl
	case KindBinary:
		return bytes.Equal(av.bin, another.bin)
	case KindList:
		if len(av.list) != len(another.list) {
			return false
		}
		for i, el := range av.list {
			if !el.Equal(another.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return Item(av.m).Equal(another.m)
	case KindStringSet, KindNumberSet:
		if len(av.strs) != len(another.strs) {
			return false
		}
		for i, s := range av.strs {
			if s != another.strs[i] {
				return false
			}
		}
		return true
	case KindBinarySet:
		if len(av.bins) != len(another.bins) {
			return false
		}
		for i, b := range av.bins {
			if !bytes.Equal(b, another.bins[i]) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Errorf("unknown kind %v", av.kind))
	}
}

func (item Item) Equal(another Item) bool {
	if len(item) != len(another) {
		return false
	}
	for k, v := range item {
		w, ok := another[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Validate checks that every node of the item has a populated variant.
func (item Item) Validate() error {
	for k, v := range item {
		if err := v.validate(k); err != nil {
			return err
		}
	}
	return nil
}

func (av AttributeValue) validate(path string) error {
	switch av.kind {
	case KindInvalid:
		return fmt.Errorf("%s: %w", path, ErrEmptyAttributeValue)
	case KindList:
		for i, el := range av.list {
			if err := el.validate(indexPath(path, i)); err != nil {
				return err
			}
		}
	case KindMap:
		for k, v := range av.m {
			if err := v.validate(keyPath(path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}

func emptyValuePanic(path string) error {
	if path == "" {
		return ErrEmptyAttributeValue
	}
	return fmt.Errorf("%s: %w", path, ErrEmptyAttributeValue)
}
