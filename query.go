package avcodec

import (
	"reflect"
	"strings"
)

// Query is an equality key condition built from a filter struct.
type Query struct {
	// KeyConditionExpression is "a = :a and b = :b", in field order.
	KeyConditionExpression string
	// ExpressionAttributeValues maps ":a" to the encoded field value.
	ExpressionAttributeValues Item

	names []string
}

// BuildQuery turns the set fields of a filter struct into a key condition.
// Nil pointers, nil interfaces, empty strings and zero omitempty fields are
// left out, so a filter with all-pointer fields selects on whatever is set.
func BuildQuery(filter any) (*Query, error) {
	return defaultEncoder.BuildQuery(filter)
}

func (enc *Encoder) BuildQuery(filter any) (*Query, error) {
	v := reflect.ValueOf(filter)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errf(MissingAggregateRoot, "", v.Type(), nil, "nil filter")
		}
		v = v.Elem()
	}
	if !v.IsValid() || shapeOf(v.Type()) != shapeStruct {
		return nil, errf(MissingAggregateRoot, "", reflect.TypeOf(filter), nil, "filter must be a struct")
	}
	si := reflectStruct(v.Type(), enc.tagKey)
	if si.err != nil {
		return nil, si.errAt("")
	}

	es := encodeState{enc: enc}
	q := &Query{ExpressionAttributeValues: make(Item)}
	var conds []string
	for _, fi := range si.fields {
		fv := si.field(v, fi)
		switch fv.Kind() {
		case reflect.Ptr, reflect.Interface:
			if fv.IsNil() {
				continue
			}
		}
		if fi.omitEmpty && fv.IsZero() {
			continue
		}
		var av AttributeValue
		var omit bool
		var err error
		if fi.set {
			av, omit, err = es.encodeAsSet(fv, fi.name)
		} else {
			av, omit, err = es.encode(fv, fi.name)
		}
		if err != nil {
			return nil, err
		}
		if omit {
			continue
		}
		placeholder := ":" + fi.name
		q.ExpressionAttributeValues[placeholder] = av
		q.names = append(q.names, fi.name)
		conds = append(conds, fi.name+" = "+placeholder)
	}
	q.KeyConditionExpression = strings.Join(conds, " and ")
	return q, nil
}

// Names returns the attribute names the query constrains, in field order.
func (q *Query) Names() []string {
	return q.names
}

// Matches reports whether item satisfies every equality in the query.
func (q *Query) Matches(item Item) bool {
	for _, name := range q.names {
		v, ok := item[name]
		if !ok || !v.Equal(q.ExpressionAttributeValues[":"+name]) {
			return false
		}
	}
	return true
}
