// Package awsav converts between avcodec values and the AWS SDK v2
// DynamoDB attribute values, so that encoded Go values can be sent to
// DynamoDB directly.
package awsav

import (
	"fmt"

	"github.com/andreyvit/avcodec"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ToSDK converts av into the SDK representation. It panics on an invalid
// (zero) AttributeValue, same as the rest of avcodec.
func ToSDK(av avcodec.AttributeValue) types.AttributeValue {
	switch av.Kind() {
	case avcodec.KindString:
		s, _ := av.AsString()
		return &types.AttributeValueMemberS{Value: s}
	case avcodec.KindNumber:
		s, _ := av.AsNumber()
		return &types.AttributeValueMemberN{Value: s}
	case avcodec.KindBinary:
		b, _ := av.AsBinary()
		return &types.AttributeValueMemberB{Value: b}
	case avcodec.KindBool:
		b, _ := av.AsBool()
		return &types.AttributeValueMemberBOOL{Value: b}
	case avcodec.KindNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case avcodec.KindList:
		list, _ := av.AsList()
		out := make([]types.AttributeValue, len(list))
		for i, el := range list {
			out[i] = ToSDK(el)
		}
		return &types.AttributeValueMemberL{Value: out}
	case avcodec.KindMap:
		m, _ := av.AsMap()
		return &types.AttributeValueMemberM{Value: ItemToSDK(m)}
	case avcodec.KindStringSet:
		ss, _ := av.AsStringSet()
		return &types.AttributeValueMemberSS{Value: ss}
	case avcodec.KindNumberSet:
		ns, _ := av.AsNumberSet()
		return &types.AttributeValueMemberNS{Value: ns}
	case avcodec.KindBinarySet:
		bs, _ := av.AsBinarySet()
		return &types.AttributeValueMemberBS{Value: bs}
	default:
		panic(avcodec.ErrEmptyAttributeValue)
	}
}

// FromSDK converts an SDK attribute value. Unknown union members and
// NULL:false are errors.
func FromSDK(v types.AttributeValue) (avcodec.AttributeValue, error) {
	return fromSDK(v, "")
}

func fromSDK(v types.AttributeValue, path string) (avcodec.AttributeValue, error) {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return avcodec.StringValue(v.Value), nil
	case *types.AttributeValueMemberN:
		return avcodec.NumberValue(v.Value), nil
	case *types.AttributeValueMemberB:
		return avcodec.BinaryValue(v.Value), nil
	case *types.AttributeValueMemberBOOL:
		return avcodec.BoolValue(v.Value), nil
	case *types.AttributeValueMemberNULL:
		if !v.Value {
			return avcodec.AttributeValue{}, fmt.Errorf("%s: NULL must be true", displayPath(path))
		}
		return avcodec.NullValue(), nil
	case *types.AttributeValueMemberL:
		list := make([]avcodec.AttributeValue, len(v.Value))
		for i, el := range v.Value {
			av, err := fromSDK(el, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return avcodec.AttributeValue{}, err
			}
			list[i] = av
		}
		return avcodec.ListValue(list...), nil
	case *types.AttributeValueMemberM:
		m, err := itemFromSDK(v.Value, path)
		if err != nil {
			return avcodec.AttributeValue{}, err
		}
		return avcodec.MapValue(m), nil
	case *types.AttributeValueMemberSS:
		return avcodec.StringSetValue(v.Value...), nil
	case *types.AttributeValueMemberNS:
		return avcodec.NumberSetValue(v.Value...), nil
	case *types.AttributeValueMemberBS:
		return avcodec.BinarySetValue(v.Value...), nil
	case nil:
		return avcodec.AttributeValue{}, fmt.Errorf("%s: nil attribute value", displayPath(path))
	default:
		return avcodec.AttributeValue{}, fmt.Errorf("%s: unsupported attribute value %T", displayPath(path), v)
	}
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func ItemToSDK(item avcodec.Item) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = ToSDK(v)
	}
	return out
}

func ItemFromSDK(m map[string]types.AttributeValue) (avcodec.Item, error) {
	return itemFromSDK(m, "")
}

func itemFromSDK(m map[string]types.AttributeValue, path string) (avcodec.Item, error) {
	item := make(avcodec.Item, len(m))
	for k, v := range m {
		p := k
		if path != "" {
			p = path + "." + k
		}
		av, err := fromSDK(v, p)
		if err != nil {
			return nil, err
		}
		item[k] = av
	}
	return item, nil
}

// MarshalMap encodes v with avcodec and converts the result for the SDK.
func MarshalMap(v any) (map[string]types.AttributeValue, error) {
	item, err := avcodec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ItemToSDK(item), nil
}

// UnmarshalMap decodes an SDK item into v, which must be a non-nil pointer.
func UnmarshalMap(m map[string]types.AttributeValue, v any) error {
	item, err := ItemFromSDK(m)
	if err != nil {
		return err
	}
	return avcodec.Unmarshal(item, v)
}
