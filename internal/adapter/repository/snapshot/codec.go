package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var magic = []byte("BPS1")

// ErrCorrupt is returned when stored bytes are not a snapshot.
var ErrCorrupt = errors.New("snapshot: corrupt or unknown format")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Encode compresses a serialized database image for storage.
func Encode(raw []byte) []byte {
	out := make([]byte, 0, len(raw)/2+len(magic))
	out = append(out, magic...)
	return encoder.EncodeAll(raw, out)
}

// Decode reverses Encode.
func Decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, ErrCorrupt
	}
	raw, err := decoder.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}
