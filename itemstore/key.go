package itemstore

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/andreyvit/avcodec"
)

// tuple format: el1 el2 ... elN len1 len2 ... lenN-1  n
//
// Each key element is a kind byte ('S', 'N' or 'B') followed by the raw
// string, number text or binary data.
type tuple [][]byte

func (tup tuple) String() string {
	var buf strings.Builder
	for i, el := range tup {
		if i > 0 {
			buf.WriteByte('|')
		}
		if len(el) > 0 && (el[0] == 'S' || el[0] == 'N') {
			buf.WriteByte(el[0])
			buf.WriteByte(':')
			buf.Write(el[1:])
		} else {
			buf.WriteString(hex.EncodeToString(el))
		}
	}
	return buf.String()
}

func (tup tuple) Equal(another tuple) bool {
	n := len(tup)
	if len(another) != n {
		return false
	}
	for i, b := range tup {
		if !bytes.Equal(b, another[i]) {
			return false
		}
	}
	return true
}

func decodeTuple(raw []byte) (tuple, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	c, raw, err := decodeRuvarint(raw)
	if err != nil {
		return nil, err
	}
	if c == 0 {
		return nil, nil
	}

	lens := make([]uint32, c)
	for i := int(c) - 2; i >= 0; i-- {
		if len(raw) == 0 {
			return nil, fmt.Errorf("invalid tuple: truncated lengths")
		}
		lens[i], raw, err = decodeRuvarint(raw)
		if err != nil {
			return nil, err
		}
	}

	var explicitLen uint64
	for i := uint32(0); i < c-1; i++ {
		explicitLen += uint64(lens[i])
	}
	if explicitLen > uint64(len(raw)) {
		return nil, fmt.Errorf("invalid tuple: sum of explicit lens %d is greater than total data len %d", explicitLen, len(raw))
	}

	starts := make([]uint32, c+1)
	for i := uint32(0); i < c-1; i++ {
		starts[i+1] = starts[i] + lens[i]
	}
	starts[c] = uint32(len(raw))

	tup := make(tuple, c)
	for i := uint32(0); i < c; i++ {
		tup[i] = raw[starts[i]:starts[i+1]]
	}
	return tup, nil
}

func (tup tuple) encode(buf []byte) []byte {
	var tb tupleEncoder
	for _, el := range tup {
		tb.begin(buf)
		buf = appendRaw(buf, el)
	}
	return tb.finalize(buf)
}

type tupleEncoder struct {
	startOffPlus1 int
	lens          []int
}

func (tb *tupleEncoder) count() int {
	return len(tb.lens) + 1
}

func (tb *tupleEncoder) begin(buf []byte) {
	off := tb.startOffPlus1
	if off < 0 {
		panic("tupleEncoder finalized")
	} else if off != 0 {
		tb.lens = append(tb.lens, len(buf)+1-off)
	}
	tb.startOffPlus1 = len(buf) + 1
}

func (tb *tupleEncoder) finalize(buf []byte) []byte {
	for _, v := range tb.lens {
		buf = appendRuvarint(buf, uint32(v))
	}
	return appendRuvarint(buf, uint32(tb.count()))
}

// Reverse Uvarint is just byte-reversed Uvarint, for right-to-left reading
func appendRuvarint(buf []byte, v uint32) []byte {
	var vb [binary.MaxVarintLen32]byte
	vn := binary.PutUvarint(vb[:], uint64(v))
	off, buf := grow(buf, vn)
	for i, b := range vb[:vn] {
		buf[off+vn-i-1] = b
	}
	return buf
}

func decodeRuvarint(buf []byte) (uint32, []byte, error) {
	var vb [binary.MaxVarintLen32]byte
	n := len(buf)
	if n == 0 {
		return 0, nil, fmt.Errorf("invalid tuple: empty ruvarint")
	}
	c := min(n, binary.MaxVarintLen32)
	for i := 0; i < c; i++ {
		vb[i] = buf[n-i-1]
	}
	v, vn := binary.Uvarint(vb[:c])
	if vn <= 0 {
		return 0, nil, fmt.Errorf("invalid ruvarint in %x", buf)
	}
	return uint32(v), buf[:n-vn], nil
}

// appendKeyElement writes a key attribute as a tuple element. Only non-empty
// S, N and B values can be keys.
func appendKeyElement(buf []byte, av avcodec.AttributeValue) ([]byte, bool) {
	if s, ok := av.AsString(); ok && s != "" {
		buf = append(buf, 'S')
		return append(buf, s...), true
	}
	if s, ok := av.AsNumber(); ok {
		buf = append(buf, 'N')
		return append(buf, s...), true
	}
	if b, ok := av.AsBinary(); ok && len(b) > 0 {
		buf = append(buf, 'B')
		return append(buf, b...), true
	}
	return buf, false
}

func decodeKeyElement(el []byte) (avcodec.AttributeValue, error) {
	if len(el) == 0 {
		return avcodec.AttributeValue{}, fmt.Errorf("empty key element")
	}
	switch el[0] {
	case 'S':
		return avcodec.StringValue(string(el[1:])), nil
	case 'N':
		return avcodec.NumberValue(string(el[1:])), nil
	case 'B':
		return avcodec.BinaryValue(bytes.Clone(el[1:])), nil
	default:
		return avcodec.AttributeValue{}, fmt.Errorf("invalid key element kind 0x%02x", el[0])
	}
}
