package awsav

import (
	"errors"
	"testing"

	"github.com/andreyvit/avcodec"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type Pet struct {
	Owner string   `ddb:"owner"`
	Name  string   `ddb:"name"`
	Age   int      `ddb:"age"`
	Tags  []string `ddb:"tags,set,omitempty"`
	Chip  []byte   `ddb:"chip"`
	Vet   *string  `ddb:"vet"`
}

type PetKey struct {
	Owner string `ddb:"owner"`
	Name  string `ddb:"name"`
}

type PetFilter struct {
	Owner *string `ddb:"owner"`
	Age   *int    `ddb:"age"`
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T, opts ...cmp.Option) {
	if diff := cmp.Diff(e, a, opts...); diff != "" {
		t.Helper()
		t.Errorf("** got %v, wanted %v (-wanted +got):\n%s", a, e, diff)
	}
}

var sdkOpts = cmpopts.IgnoreUnexported(
	types.AttributeValueMemberS{}, types.AttributeValueMemberN{}, types.AttributeValueMemberB{},
	types.AttributeValueMemberBOOL{}, types.AttributeValueMemberNULL{}, types.AttributeValueMemberL{},
	types.AttributeValueMemberM{}, types.AttributeValueMemberSS{}, types.AttributeValueMemberNS{},
	types.AttributeValueMemberBS{},
)

func TestToSDK(t *testing.T) {
	av := avcodec.MapValue(avcodec.Item{
		"s":    avcodec.StringValue("x"),
		"n":    avcodec.NumberValue("1.5"),
		"b":    avcodec.BinaryValue([]byte{1}),
		"bool": avcodec.BoolValue(true),
		"null": avcodec.NullValue(),
		"l":    avcodec.ListValue(avcodec.StringValue("a"), avcodec.NullValue()),
		"ss":   avcodec.StringSetValue("a", "b"),
		"ns":   avcodec.NumberSetValue("1"),
		"bs":   avcodec.BinarySetValue([]byte{2}),
	})
	e := &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"s":    &types.AttributeValueMemberS{Value: "x"},
		"n":    &types.AttributeValueMemberN{Value: "1.5"},
		"b":    &types.AttributeValueMemberB{Value: []byte{1}},
		"bool": &types.AttributeValueMemberBOOL{Value: true},
		"null": &types.AttributeValueMemberNULL{Value: true},
		"l": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "a"},
			&types.AttributeValueMemberNULL{Value: true},
		}},
		"ss": &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"ns": &types.AttributeValueMemberNS{Value: []string{"1"}},
		"bs": &types.AttributeValueMemberBS{Value: [][]byte{{2}}},
	}}
	a := ToSDK(av)
	deepEqual[types.AttributeValue](t, a, e, sdkOpts)

	back := must(FromSDK(a))
	if !back.Equal(av) {
		t.Errorf("** FromSDK(ToSDK(%v)) = %v", av, back)
	}
}

func TestToSDK_InvalidPanics(t *testing.T) {
	defer func() {
		p := recover()
		err, _ := p.(error)
		if !errors.Is(err, avcodec.ErrEmptyAttributeValue) {
			t.Errorf("** ToSDK(zero) panic = %v, wanted ErrEmptyAttributeValue", p)
		}
	}()
	ToSDK(avcodec.AttributeValue{})
}

func TestFromSDK_Invalid(t *testing.T) {
	tests := []struct {
		input    types.AttributeValue
		expected string
	}{
		{&types.AttributeValueMemberNULL{Value: false}, "(root): NULL must be true"},
		{nil, "(root): nil attribute value"},
		{&types.UnknownUnionMember{Tag: "X"}, "(root): unsupported attribute value *types.UnknownUnionMember"},
		{&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"a": &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberNULL{}}},
		}}, "a[0]: NULL must be true"},
	}
	for _, tt := range tests {
		_, err := FromSDK(tt.input)
		if err == nil || err.Error() != tt.expected {
			t.Errorf("** FromSDK(%T) err = %v, wanted %q", tt.input, err, tt.expected)
		}
	}
}

func TestMarshalMap(t *testing.T) {
	vet := "Dr. Who"
	pet := Pet{Owner: "kim", Name: "Rex", Age: 3, Tags: []string{"good"}, Vet: &vet}
	m := must(MarshalMap(pet))
	deepEqual[types.AttributeValue](t, m["age"], &types.AttributeValueMemberN{Value: "3"}, sdkOpts)
	deepEqual[types.AttributeValue](t, m["tags"], &types.AttributeValueMemberSS{Value: []string{"good"}}, sdkOpts)
	if _, ok := m["chip"]; ok {
		t.Errorf("** empty bytes were written")
	}

	var decoded Pet
	ensure(UnmarshalMap(m, &decoded))
	deepEqual(t, decoded, pet)

	_, err := MarshalMap(42)
	if !errors.Is(err, avcodec.MissingAggregateRoot) {
		t.Errorf("** MarshalMap(42) err = %v, wanted MissingAggregateRoot", err)
	}
}
