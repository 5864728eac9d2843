package types

import "github.com/starkcore/node/corelib/common"

// ExecutionStatus tags a TransactionOutput's outcome.
type ExecutionStatus uint8

const (
	Succeeded ExecutionStatus = iota
	Reverted
)

// Event is one emitted event, ordered within its transaction's output.
type Event struct {
	FromAddress common.Address
	Keys []common.FieldElement
	Data []common.FieldElement
}

// L2ToL1Message is one outgoing message to the base layer, ordered within
// its transaction's output.
type L2ToL1Message struct {
	ToAddress [20]byte // L1 address
	Payload []common.FieldElement
}

// BuiltinCounters tallies Cairo builtin usage for one transaction's trace.
type BuiltinCounters struct {
	Pedersen uint64
	RangeCheck uint64
	Bitwise uint64
	EcOp uint64
	Poseidon uint64
	Keccak uint64
	SegmentArena uint64
}

// ExecutionResources is the resource-consumption portion of a
// TransactionOutput.
type ExecutionResources struct {
	Steps uint64
	MemoryHoles uint64
	Builtins BuiltinCounters
	L1GasUsed uint64
	L1DataGasUsed uint64
}

// TransactionOutput parallels Transaction: the result of executing it.
type TransactionOutput struct {
	Status ExecutionStatus
	RevertReason string // non-empty only when Status == Reverted
	ActualFee common.Fee
	Events []Event
	Messages []L2ToL1Message
	Resources ExecutionResources
}
