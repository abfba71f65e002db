package avcodec

import "testing"

type PetFilter struct {
	Name  *string `ddb:"name"`
	Age   *int    `ddb:"age"`
	Owner string  `ddb:"owner,omitempty"`
	Kind  Animal  `ddb:"kind"`
}

func TestBuildQuery(t *testing.T) {
	name, age := "Fido", 8
	tests := []struct {
		filter PetFilter
		expr   string
		values string
	}{
		{PetFilter{}, "", `{}`},
		{PetFilter{Name: &name}, "name = :name", `{":name": {"S": "Fido"}}`},
		{PetFilter{Name: &name, Age: &age}, "name = :name and age = :age", `{":name": {"S": "Fido"}, ":age": {"N": "8"}}`},
		{PetFilter{Age: &age, Owner: "bob"}, "age = :age and owner = :owner", `{":age": {"N": "8"}, ":owner": {"S": "bob"}}`},
		{PetFilter{Kind: Dog{}}, "kind = :kind", `{":kind": {"M": {"___enum_tag": {"S": "Dog"}}}}`},
	}
	for _, tt := range tests {
		q, err := BuildQuery(&tt.filter)
		if err != nil {
			t.Errorf("** BuildQuery(%+v) err = %v", tt.filter, err)
			continue
		}
		if q.KeyConditionExpression != tt.expr {
			t.Errorf("** BuildQuery(%+v).KeyConditionExpression = %q, wanted %q", tt.filter, q.KeyConditionExpression, tt.expr)
		}
		itemEqual(t, q.ExpressionAttributeValues, jsonItem(tt.values))
	}

	_, err := BuildQuery(42)
	isErrKind(t, err, MissingAggregateRoot)
}

func TestQuery_Matches(t *testing.T) {
	name, age := "Fido", 8
	q := must(BuildQuery(PetFilter{Name: &name, Age: &age}))
	deepEqual(t, q.Names(), []string{"name", "age"})

	tests := []struct {
		item string
		want bool
	}{
		{`{"name": {"S": "Fido"}, "age": {"N": "8"}, "extra": {"BOOL": true}}`, true},
		{`{"name": {"S": "Fido"}, "age": {"N": "9"}}`, false},
		{`{"name": {"S": "Fido"}}`, false},
		{`{"name": {"S": "Fido"}, "age": {"S": "8"}}`, false},
	}
	for _, tt := range tests {
		if got := q.Matches(jsonItem(tt.item)); got != tt.want {
			t.Errorf("** Matches(%s) = %v, wanted %v", tt.item, got, tt.want)
		}
	}

	all := must(BuildQuery(PetFilter{}))
	if !all.Matches(Item{}) {
		t.Errorf("** empty query does not match an empty item")
	}
}
