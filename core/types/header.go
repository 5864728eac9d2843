// Package types holds the chain entities: headers, transactions,
// outputs, state diffs, and contract classes.
package types

import (
	"github.com/starkcore/node/corelib/common"
)

// BlockHeader is one block's header. Headers form a hash chain:
// Header[n].ParentHash == Header[n-1].BlockHash for n >= 1;
// Header[0].ParentHash is the published genesis sentinel (GenesisParentHash).
type BlockHeader struct {
	BlockHash common.Hash
	ParentHash common.Hash
	BlockNumber common.BlockNumber
	Timestamp uint64
	SequencerAddress common.Address
	StateRoot common.FieldElement
	TransactionCommitment common.FieldElement
	EventCommitment common.FieldElement
	NTransactions uint32
	NEvents uint32
	L1GasPrice common.GasPricePair
	L1DataGasPrice common.GasPricePair
	L1DAMode common.L1DAMode
	ProtocolVersion string
	// StateDiffLength is nil when the upstream response omitted it
	// (pre-0.11.0 blocks); present otherwise.
	StateDiffLength *uint32
}

// GenesisParentHash is the sentinel parent hash for block 0, published by
// the network (all zero felt).
var GenesisParentHash = common.Hash(common.FeltZero)
