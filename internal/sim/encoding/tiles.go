package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrLength = errors.New("encoding: decoded tile count mismatch")

// EncodeTiles run-length encodes row-major tile codes as base64 over
// uvarint (code, run) pairs.
func EncodeTiles(codes []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(codes); {
		code := codes[i]
		j := i + 1
		for j < len(codes) && codes[j] == code {
			j++
		}
		n := binary.PutUvarint(tmp[:], uint64(code))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(j-i))
		buf.Write(tmp[:n])
		i = j
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeTiles reverses EncodeTiles. want is the expected tile count
// (width*height); a stream that expands to anything else is rejected.
func DecodeTiles(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		code, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("encoding: bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("encoding: bad varint at %d", i)
		}
		i += n
		if code > 0xFFFF {
			return nil, fmt.Errorf("encoding: tile code too large: %d", code)
		}
		if run == 0 || uint64(len(out))+run > uint64(want) {
			return nil, ErrLength
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(code))
		}
	}
	if len(out) != want {
		return nil, ErrLength
	}
	return out, nil
}
