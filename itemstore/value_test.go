package itemstore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andreyvit/avcodec"
)

func TestValueFlags(t *testing.T) {
	vf := makeValueFlags(avcodec.CBOR, true)
	if vf.ver() != vfVer1 {
		t.Errorf("** ver() = %v, wanted %v", vf.ver(), vfVer1)
	}
	if vf.format() != avcodec.CBOR {
		t.Errorf("** format() = %v, wanted CBOR", vf.format())
	}
	if !vf.compressed() {
		t.Errorf("** compressed() = false, wanted true")
	}
	if makeValueFlags(avcodec.MsgPack, false).compressed() {
		t.Errorf("** compressed() = true, wanted false")
	}
}

func TestValue_RoundTrip(t *testing.T) {
	item := avcodec.Item{"name": S("Rex"), "bio": S(strings.Repeat("good dog ", 100))}
	raw := must(avcodec.MarshalItem(avcodec.JSON, item))

	for _, compressed := range []bool{false, true} {
		buf := reserveValueHeader(nil)
		if compressed {
			var ok bool
			buf, ok = compress(buf, raw)
			if !ok {
				t.Fatalf("** compress did not shrink a repetitive item")
			}
		} else {
			buf = appendRaw(buf, raw)
		}
		buf = putValueHeader(buf, makeValueFlags(avcodec.JSON, compressed), 7, len(raw))

		var vle value
		ensure(vle.decode(buf))
		deepEqual(t, vle.ModCount, uint64(7))
		deepEqual(t, vle.Flags.compressed(), compressed)
		if plain := must(vle.plain(nil)); !bytes.Equal(plain, raw) {
			t.Errorf("** plain() = %q, wanted %q", plain, raw)
		}
		itemEqual(t, must(vle.item()), item)
	}
}

func TestCompress_SmallItemsStayRaw(t *testing.T) {
	_, ok := compress(nil, []byte(`{"a":{"S":"b"}}`))
	if ok {
		t.Errorf("** compress(small) = true, wanted false")
	}
}

func TestValue_DecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{1, 2}},
		{"unsupported flags", []byte{0x80, 0x02, 0, 0, 0}},
		{"wrong version", []byte{2, 0, 1, 'x'}},
		{"size mismatch", []byte{1, 0, 5, 'a', 'b'}},
	}
	for _, tt := range tests {
		var vle value
		err := vle.decode(tt.data)
		if err == nil {
			t.Errorf("** %s: decode(%x) succeeded, wanted error", tt.name, tt.data)
			continue
		}
		if _, ok := err.(*avcodec.DataError); !ok {
			t.Errorf("** %s: decode(%x) err = %T, wanted *avcodec.DataError", tt.name, tt.data, err)
		}
	}
}
