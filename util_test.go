package avcodec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

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

func deepEqual[T any](t testing.TB, a, e T) {
	if diff := cmp.Diff(e, a); diff != "" {
		t.Helper()
		t.Errorf("** got %v, wanted %v (-wanted +got):\n%s", a, e, diff)
	}
}

func itemEqual(t testing.TB, a, e Item) {
	if !a.Equal(e) {
		t.Helper()
		t.Errorf("** got %s, wanted %s", itemJSON(a), itemJSON(e))
	}
}

func isErrKind(t testing.TB, err error, kind ErrorKind) {
	if !errors.Is(err, kind) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, kind)
	}
}

// jsonItem parses DynamoDB JSON, so expectations read like the wire format.
func jsonItem(s string) Item {
	var item Item
	if err := json.Unmarshal([]byte(s), &item); err != nil {
		panic(err)
	}
	return item
}

func jsonValue(s string) AttributeValue {
	var av AttributeValue
	if err := json.Unmarshal([]byte(s), &av); err != nil {
		panic(err)
	}
	return av
}

func itemJSON(item Item) string {
	raw, err := json.Marshal(item)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(raw)
}
