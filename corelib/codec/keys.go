package codec

import (
	"encoding/binary"

	"github.com/starkcore/node/corelib/common"
)

// Composite keys are the concatenation of fixed-width, big-endian field
// encodings, so lexicographic byte order equals the intended domain
// order. Varints never appear inside keys: their byte order does not
// track numeric order. The rightmost component of each key is the one
// range scans iterate over.

// PutTxOffset writes a transaction offset as 4 bytes big-endian.
func PutTxOffset(idx common.TxOffsetInBlock) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(idx))
	return b
}

// KeyTxLocation builds the (BlockNumber, TxOffsetInBlock) key used by
// bodies/outputs: ranges scan by tx offset within a fixed block.
func KeyTxLocation(block common.BlockNumber, idx common.TxOffsetInBlock) []byte {
	b := PutBlockNumber(block)
	i := PutTxOffset(idx)
	key := make([]byte, 0, 12)
	key = append(key, b[:]...)
	key = append(key, i[:]...)
	return key
}

// TxLocation decodes a 12-byte KeyTxLocation encoding.
func TxLocation(b []byte) (common.BlockLocation, error) {
	if len(b) != 12 {
		return common.BlockLocation{}, ErrTruncatedInput
	}
	n, err := BlockNumber(b[:8])
	if err != nil {
		return common.BlockLocation{}, err
	}
	return common.BlockLocation{
		Block: n,
		Index: common.TxOffsetInBlock(binary.BigEndian.Uint32(b[8:12])),
	}, nil
}

// KeyAddrStorageBlock builds the (Address, StorageKey, BlockNumber) key
// used by the storage table: ranges scan by block for a fixed
// (address, key) pair, so callers can seek_le to the latest write at or
// before a target block.
func KeyAddrStorageBlock(addr common.Address, sk common.StorageKey, block common.BlockNumber) []byte {
	a := addr.Bytes()
	s := sk.Bytes()
	n := PutBlockNumber(block)
	key := make([]byte, 0, len(a)+len(s)+len(n))
	key = append(key, a[:]...)
	key = append(key, s[:]...)
	key = append(key, n[:]...)
	return key
}

// KeyAddrBlock builds the (Address, BlockNumber) key used by the nonces
// and replaced_at tables: ranges scan by block for a fixed address.
func KeyAddrBlock(addr common.Address, block common.BlockNumber) []byte {
	a := addr.Bytes()
	n := PutBlockNumber(block)
	key := make([]byte, 0, len(a)+len(n))
	key = append(key, a[:]...)
	key = append(key, n[:]...)
	return key
}

// KeyAddrPrefix returns the fixed-width address prefix shared by every key
// built by KeyAddrStorageBlock/KeyAddrBlock for addr, for use as a cursor
// seek bound.
func KeyAddrPrefix(addr common.Address) []byte {
	a := addr.Bytes()
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// KeyEventIndex builds the (Address, EventIndex) key used by the events
// presence index: ranges scan an address's events in
// (block, tx offset, event offset) order, matching EventIndex.Less.
func KeyEventIndex(addr common.Address, idx common.EventIndex) []byte {
	a := addr.Bytes()
	key := make([]byte, 0, len(a)+eventIndexBytes)
	key = append(key, a[:]...)
	return append(key, EncodeContinuationToken(idx)...)
}

// eventIndexBytes is the fixed width of an encoded EventIndex: 8-byte
// block number, 4-byte tx offset, 4-byte event offset, all big-endian.
const eventIndexBytes = 16

// EncodeContinuationToken encodes an EventIndex as the fixed-width byte
// form used for the (Address, EventIndex) key's EventIndex suffix.
// Callers base64url-encode this for the wire-facing opaque token.
func EncodeContinuationToken(idx common.EventIndex) []byte {
	out := make([]byte, eventIndexBytes)
	binary.BigEndian.PutUint64(out[:8], uint64(idx.Block))
	binary.BigEndian.PutUint32(out[8:12], uint32(idx.TxIndex))
	binary.BigEndian.PutUint32(out[12:16], uint32(idx.EvIndex))
	return out
}

// DecodeContinuationToken is the inverse of EncodeContinuationToken.
func DecodeContinuationToken(b []byte) (common.EventIndex, error) {
	if len(b) != eventIndexBytes {
		return common.EventIndex{}, ErrTruncatedInput
	}
	return common.EventIndex{
		Block:   common.BlockNumber(binary.BigEndian.Uint64(b[:8])),
		TxIndex: common.TxOffsetInBlock(binary.BigEndian.Uint32(b[8:12])),
		EvIndex: common.EventOffsetInOutput(binary.BigEndian.Uint32(b[12:16])),
	}, nil
}
