package avcodec

import (
	"bytes"
	"testing"
)

func TestBytesBuilder(t *testing.T) {
	bb := bytesBuilder{[]byte{1}}
	_, _ = bb.Write([]byte{2, 3})
	_ = bb.WriteByte(4)
	if !bytes.Equal(bb.Buf, []byte{1, 2, 3, 4}) {
		t.Fatalf("bb.Buf = %x, wanted 01020304", bb.Buf)
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := ensureCapacity([]byte{7}, 20)
	if cap(buf) != 32 || len(buf) != 1 || buf[0] != 7 {
		t.Fatalf("ensureCapacity = (len=%d, cap=%d, %x), wanted (1, 32, 07)", len(buf), cap(buf), buf)
	}
	same := ensureCapacity(buf, 10)
	if &same[0] != &buf[0] {
		t.Fatalf("ensureCapacity reallocated a buffer that was big enough")
	}
}
