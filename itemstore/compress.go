package itemstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Items shorter than this are stored uncompressed.
const minCompressSize = 128

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Errorf("itemstore: zstd encoder initialization failed: %w", err))
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(maxRawSize*2))
	if err != nil {
		panic(fmt.Errorf("itemstore: zstd decoder initialization failed: %w", err))
	}
}

// compress appends the compressed form of raw to buf. It returns false
// when compression doesn't make raw smaller.
func compress(buf, raw []byte) ([]byte, bool) {
	if len(raw) < minCompressSize {
		return buf, false
	}
	off := len(buf)
	buf = zstdEncoder.EncodeAll(raw, buf)
	if len(buf)-off >= len(raw) {
		return buf[:off], false
	}
	return buf, true
}

func decompress(buf, data []byte, rawSize int) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, ensureCapacity(buf[:0], rawSize))
}
