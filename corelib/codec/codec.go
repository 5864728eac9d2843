// Package codec implements the fixed-width and varint encoders for
// domain scalars: a total, lossless mapping between them and byte
// strings, ordered so that lexicographic byte order equals domain order.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/starkcore/node/corelib/common"
)

// Decode error kinds. Producers never emit ErrTrailingBytes on
// well-formed input, so encode followed by decode always round-trips.
var (
	ErrTruncatedInput = errors.New("codec: truncated input")
	ErrTrailingBytes = errors.New("codec: trailing bytes")
	ErrOutOfRange = common.ErrOutOfRange
	ErrUnknownVariant = errors.New("codec: unknown variant tag")
)

// PutBlockNumber writes n as 8 bytes big-endian, the key width that makes
// cursor order equal numeric order.
func PutBlockNumber(n common.BlockNumber) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b
}

// BlockNumber decodes an 8-byte big-endian block number.
func BlockNumber(b []byte) (common.BlockNumber, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("codec: block number: %w", ErrTruncatedInput)
	}
	return common.BlockNumber(binary.BigEndian.Uint64(b)), nil
}

// PutUvarint appends the varint encoding of v to dst and returns the
// extended slice. Used for length prefixes on variable-length values.
func PutUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Uvarint reads a varint-encoded length prefix, returning the value, the
// number of bytes consumed, and an error if the input is truncated.
func Uvarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, ErrTruncatedInput
	}
	return v, n, nil
}

// PutZigzag appends the zig-zag + varint encoding of a signed integer.
func PutZigzag(dst []byte, v int64) []byte {
	u := uint64((v << 1) ^ (v >> 63))
	return PutUvarint(dst, u)
}

// Zigzag decodes a zig-zag + varint encoded signed integer.
func Zigzag(b []byte) (int64, int, error) {
	u, n, err := Uvarint(b)
	if err != nil {
		return 0, 0, err
	}
	v := int64(u>>1) ^ -int64(u&1)
	return v, n, nil
}

// PutBytesFramed appends a length-prefixed (varint length, then raw bytes)
// encoding of v to dst. This is the framing every variable-length value
// uses, so decoders can tolerate unknown trailing fields.
func PutBytesFramed(dst []byte, v []byte) []byte {
	dst = PutUvarint(dst, uint64(len(v)))
	return append(dst, v...)
}

// BytesFramed reads one length-prefixed byte string starting at b,
// returning the payload and the total bytes consumed (length prefix plus
// payload).
func BytesFramed(b []byte) (payload []byte, consumed int, err error) {
	length, n, err := Uvarint(b)
	if err != nil {
		return nil, 0, err
	}
	end := n + int(length)
	if end > len(b) {
		return nil, 0, ErrTruncatedInput
	}
	return b[n:end], end, nil
}

// PutFelt appends the canonical 32-byte big-endian encoding of a field
// element.
func PutFelt(dst []byte, f common.FieldElement) []byte {
	b := f.Bytes()
	return append(dst, b[:]...)
}

// Felt decodes a 32-byte big-endian field element, rejecting out-of-range
// values.
func Felt(b []byte) (common.FieldElement, error) {
	if len(b) < common.FeltBytes {
		return common.FieldElement{}, fmt.Errorf("codec: felt: %w", ErrTruncatedInput)
	}
	return common.FeltFromBytes(b[:common.FeltBytes])
}

// RequireExhausted returns ErrTrailingBytes if b has unconsumed bytes
// after decoding a fixed-shape value. Call sites that intend to tolerate
// unknown trailing fields on forward-compatible values skip this check
// and instead stop consuming at the known field count.
func RequireExhausted(b []byte) error {
	if len(b) != 0 {
		return ErrTrailingBytes
	}
	return nil
}
