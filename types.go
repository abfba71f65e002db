package avcodec

import "strconv"

// Unit encodes as NULL. Any other struct type without fields behaves the same.
type Unit struct{}

// Char is a single character, encoded as a one-rune S value.
type Char rune

// Number is a decimal number kept in its wire form. Decoding into an any
// target produces Number instead of float64 when DecoderOptions.UseNumber is set.
type Number string

func (n Number) String() string {
	return string(n)
}

func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// TupleStruct marks a struct as a tuple when embedded as its first field.
// The remaining exported fields are written under "_0", "_1", ...
//
//	type Point struct {
//		avcodec.TupleStruct
//		X, Y int
//	}
type TupleStruct struct{}

type Tuple2[A, B any] struct {
	TupleStruct
	V0 A
	V1 B
}

type Tuple3[A, B, C any] struct {
	TupleStruct
	V0 A
	V1 B
	V2 C
}

type Tuple4[A, B, C, D any] struct {
	TupleStruct
	V0 A
	V1 B
	V2 C
	V3 D
}

// Defaulter is implemented (on the pointer receiver) by types that provide
// their own value for a struct field missing from the stored item.
type Defaulter interface {
	SetDefault()
}
