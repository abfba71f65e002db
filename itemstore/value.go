package itemstore

import (
	"encoding/binary"
	"fmt"

	"github.com/andreyvit/avcodec"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfCompressionBit0
	vfFormatBit0
	vfFormatBit1

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfZstd          = vfCompressionBit0
	vfFormatMask    = (vfFormatBit0 | vfFormatBit1)
	vfFormatShift   = 5
	vfSupportedMask = (vfVer1 | vfZstd | vfFormatMask)

	minValueSize       = 4
	maxValueHeaderSize = binary.MaxVarintLen64 * 3
	maxRawSize         = 400 * 1024 // DynamoDB item size limit
)

func makeValueFlags(format avcodec.Format, compressed bool) valueFlags {
	vf := vfVer1 | (valueFlags(format)<<vfFormatShift)&vfFormatMask
	if compressed {
		vf |= vfZstd
	}
	return vf
}

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func (vf valueFlags) format() avcodec.Format {
	return avcodec.Format((vf & vfFormatMask) >> vfFormatShift)
}

func (vf valueFlags) compressed() bool {
	return vf&vfZstd != 0
}

// value is a stored item: a uvarint header (flags, mod count, uncompressed
// size) followed by the possibly compressed item bytes.
type value struct {
	Flags    valueFlags
	ModCount uint64
	RawSize  uint64
	Data     []byte
}

func (vle value) ItemMeta() ItemMeta {
	return ItemMeta{
		ModCount:   vle.ModCount,
		Format:     vle.Flags.format(),
		Compressed: vle.Flags.compressed(),
		Size:       len(vle.Data),
	}
}

func reserveValueHeader(buf []byte) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	buf = ensureCapacity(buf, maxValueHeaderSize)
	return buf[:maxValueHeaderSize]
}

func putValueHeader(buf []byte, flags valueFlags, modCount uint64, rawSize int) []byte {
	if (flags &^ vfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}

	var off = 0
	n := binary.PutUvarint(buf[off:], uint64(flags))
	off += n
	n = binary.PutUvarint(buf[off:], modCount)
	off += n
	n = binary.PutUvarint(buf[off:], uint64(rawSize))
	off += n
	headerSize := off
	if headerSize > maxValueHeaderSize {
		panic("internal error")
	}
	if headerSize < maxValueHeaderSize {
		// move the header closer to data
		start := maxValueHeaderSize - headerSize
		copy(buf[start:maxValueHeaderSize], buf[:headerSize])
		return buf[start:]
	}
	return buf
}

func (vle *value) decode(data []byte) error {
	orig := data
	if len(data) < minValueSize {
		return dataErrf(orig, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad flags")
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags, data = valueFlags(v), data[n:]
	if vle.Flags.ver() != vfVer1 {
		return dataErrf(orig, 0, nil, "invalid value: unsupported version %d", vle.Flags.ver())
	}
	if vle.Flags.format() > avcodec.CBOR {
		return dataErrf(orig, 0, nil, "invalid value: unknown format %d", vle.Flags.format())
	}

	v, n = binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad mod count")
	}
	vle.ModCount, data = v, data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 || v > maxRawSize {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad raw size")
	}
	vle.RawSize, data = v, data[n:]

	if !vle.Flags.compressed() && uint64(len(data)) != vle.RawSize {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: got %d bytes of data, expected %d bytes", len(data), vle.RawSize)
	}
	vle.Data = data
	return nil
}

// item decompresses and parses the stored item.
func (vle *value) item() (avcodec.Item, error) {
	raw, err := vle.plain(nil)
	if err != nil {
		return nil, err
	}
	return avcodec.UnmarshalItem(vle.Flags.format(), raw)
}

// plain returns uncompressed item bytes, decompressing into buf if needed.
func (vle *value) plain(buf []byte) ([]byte, error) {
	if !vle.Flags.compressed() {
		return vle.Data, nil
	}
	raw, err := decompress(buf, vle.Data, int(vle.RawSize))
	if err != nil {
		return nil, dataErrf(vle.Data, 0, err, "invalid value: decompression failed")
	}
	if uint64(len(raw)) != vle.RawSize {
		return nil, dataErrf(vle.Data, 0, nil, "invalid value: decompressed to %d bytes, expected %d bytes", len(raw), vle.RawSize)
	}
	return raw, nil
}
