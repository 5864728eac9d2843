package common

import "github.com/holiman/uint256"

// BlockNumber is a 64-bit, totally ordered block height.
type BlockNumber uint64

// Marker is the exclusive upper bound of an append stream: the next block
// number to be appended. See GLOSSARY "Block marker".
type Marker = BlockNumber

// GasPrice is a 128-bit unsigned wei/fri price.
type GasPrice struct{ inner uint256.Int }

// GasPriceFromUint64 builds a GasPrice from a small value.
func GasPriceFromUint64(v uint64) GasPrice {
	var g GasPrice
	g.inner.SetUint64(v)
	return g
}

// Fee is a 128-bit unsigned actual-fee amount.
type Fee struct{ inner uint256.Int }

// FeeFromUint64 builds a Fee from a small value.
func FeeFromUint64(v uint64) Fee {
	var f Fee
	f.inner.SetUint64(v)
	return f
}

// Bytes16 returns the big-endian 128-bit encoding used on the wire and in
// table values.
func (g GasPrice) Bytes16() [16]byte {
	b32 := g.inner.Bytes32()
	var b16 [16]byte
	copy(b16[:], b32[16:])
	return b16
}

// GasPriceFromBytes16 decodes a big-endian 128-bit value.
func GasPriceFromBytes16(b []byte) GasPrice {
	var g GasPrice
	g.inner.SetBytes(b)
	return g
}

// Bytes16 returns the big-endian 128-bit encoding.
func (f Fee) Bytes16() [16]byte {
	b32 := f.inner.Bytes32()
	var b16 [16]byte
	copy(b16[:], b32[16:])
	return b16
}

// FeeFromBytes16 decodes a big-endian 128-bit value.
func FeeFromBytes16(b []byte) Fee {
	var f Fee
	f.inner.SetBytes(b)
	return f
}

// L1DAMode selects how state diffs are published to the base layer.
type L1DAMode uint8

const (
	L1DACalldata L1DAMode = iota
	L1DABlob
)

// GasPricePair bundles the wei and fri denominated prices for one resource.
type GasPricePair struct {
	Wei GasPrice
	Fri GasPrice
}

// TxOffsetInBlock is the zero-based index of a transaction within a block.
type TxOffsetInBlock uint32

// EventOffsetInOutput is the zero-based index of an event within one
// transaction's emitted event list.
type EventOffsetInOutput uint32

// EventIndex locates one event uniquely. Ordering is (BlockNumber,
// TxOffsetInBlock, EventOffsetInOutput), matching definition.
type EventIndex struct {
	Block BlockNumber
	TxIndex TxOffsetInBlock
	EvIndex EventOffsetInOutput
}

// Less implements the total order continuation tokens rely on.
func (e EventIndex) Less(o EventIndex) bool {
	if e.Block != o.Block {
		return e.Block < o.Block
	}
	if e.TxIndex != o.TxIndex {
		return e.TxIndex < o.TxIndex
	}
	return e.EvIndex < o.EvIndex
}

// BlockLocation is (BlockNumber, TxOffsetInBlock), the key shape shared by
// the bodies/outputs/tx_hash_to_location tables.
type BlockLocation struct {
	Block BlockNumber
	Index TxOffsetInBlock
}
