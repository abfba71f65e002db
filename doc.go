/*
Package avcodec converts between Go values and the attribute value item
format of DynamoDB-style document stores.

Marshal turns a struct, tuple, map or registered enum into an Item (a map
of attribute names to AttributeValue). Unmarshal does the reverse, driven by
the Go type of the target.

# Mapping

Booleans become BOOL. Integers and floats become N, always as base-10
strings. Strings, Char and encoding.TextMarshaler values become S; []byte
and [N]byte become B. Pointers are options: nil encodes as NULL, non-nil
encodes the pointee in place. Slices and arrays become L; map[K]struct{}
is a set and becomes L, or SS/NS/BS with the "set" tag option. Maps and
structs become M. Empty structs (including Unit) become NULL.

Empty strings and empty byte slices are omitted: no key is written for
them, and absent string or byte fields decode as empty. In positional
slots (list elements, tuple positions) they are written as NULL instead so
that indexes stay contiguous.

# Root

The top level of an item is always a map. Structs, tuples, maps and enums
encoded at the root write their entries directly into the item; the same
values nested anywhere else are wrapped in an M. Any other root value
fails with MissingAggregateRoot.

# Tuples and enums

Tuples (structs embedding TupleStruct, and Tuple2..Tuple4) are written
under positional keys "_0", "_1" and so on. Decoding stops at the first
missing position.

Enums are interfaces registered with RegisterEnum, or comparable named
types registered with RegisterValueEnum. They are written as

	{"___enum_tag": {"S": "Variant"}, "___enum_values": {"M": {...}}}

with "_0".."_N" keys in ___enum_values for positional payloads and field
names for struct payloads. Unit variants have no ___enum_values. On decode
a bare S value is accepted as the name of a unit variant; the encoder never
produces that short form.

The names ___enum_tag and ___enum_values are reserved and cannot be used as
struct field names.

# Struct tags

Fields are configured with the "ddb" tag:

	Name     string   `ddb:"name"`
	Skipped  string   `ddb:"-"`
	Resource string   `ddb:"resource,default=/"`
	Tags     []string `ddb:"tags,set,omitempty"`

A field missing from the stored item takes its default= literal, else the
result of the type's SetDefault method (see Defaulter), else the zero value
for pointers, strings, byte slices, interfaces and omitempty fields. Any
other missing field is a MissingField error.
*/
package avcodec
