package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Encoded values start with a one-byte tag naming the compression used.
const (
	tagPlain byte = 0
	tagZstd  byte = 1
)

// minCompressSize is the smallest body worth handing to zstd.
const minCompressSize = 512

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

// Codec converts snapshots to backend values and back.
type Codec struct {
	// Compress enables zstd for values that shrink when compressed.
	Compress bool
}

// Encode serializes a snapshot.
func (c Codec) Encode(s *Snapshot) ([]byte, error) {
	raw, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if c.Compress && len(raw) >= minCompressSize {
		compressed := zstdEncoder.EncodeAll(raw, make([]byte, 1, len(raw)/2+1))
		compressed[0] = tagZstd
		// Already-compressed media (JPEG, PNG, WebP) rarely shrinks.
		if len(compressed) < len(raw)+1 {
			return compressed, nil
		}
	}

	out := make([]byte, 0, len(raw)+1)
	out = append(out, tagPlain)
	return append(out, raw...), nil
}

// Decode parses a value produced by Encode. Values written with or without
// compression are both accepted regardless of c.Compress.
func (c Codec) Decode(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrCorruptEntry)
	}

	payload := data[1:]
	switch data[0] {
	case tagPlain:
	case tagZstd:
		var err error
		payload, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptEntry, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrCorruptEntry, data[0])
	}

	var s Snapshot
	if err := decMode.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &s, nil
}
