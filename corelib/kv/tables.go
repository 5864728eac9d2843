// Copyright 2021 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package kv

// SchemaVersion identifies the on-disk table layout. Bump the patch
// component on backward-compatible additions such as new trailing value
// fields, the minor component on new tables, the major component on any
// change that invalidates existing files.
var SchemaVersion = struct{ Major, Minor, Patch uint32 }{Major: 1, Minor: 0, Patch: 0}

// Table names. Keys/values are encoded with package codec; each
// constant's comment records the key/value layout and the access
// pattern it serves.
const (
	// Markers: MarkerKind byte -> BlockNumber (8 bytes BE). One row per
	// stream.
	Markers = "Markers"

	// Headers: BlockNumber -> BlockHeader.
	Headers = "Headers"

	// HashToNumber: Hash (32 bytes) -> BlockNumber. Lets append_header
	// detect HashCollision and lets readers resolve a block by hash.
	HashToNumber = "HashToNumber"

	// Bodies: (BlockNumber, TxOffsetInBlock) -> Transaction.
	Bodies = "Bodies"

	// TxHashToLocation: TransactionHash (32 bytes) -> BlockLocation.
	TxHashToLocation = "TxHashToLocation"

	// Outputs: (BlockNumber, TxOffsetInBlock) -> TransactionOutput.
	Outputs = "Outputs"

	// Events: (Address, EventIndex) -> presence marker (zero-length
	// value). Ordered scans over one address yield its events in
	// (block, tx offset, event offset) order.
	Events = "Events"

	// StateDiffs: BlockNumber -> the full encoded StateDiff. Its entries
	// are also fanned out into DeployedAt/ReplacedAt/ClassHistory/Nonces/
	// Storage below for point-in-time lookups.
	StateDiffs = "StateDiffs"

	// DeployedAt: Address -> (BlockNumber, ClassHash), the block and
	// class a contract was first deployed with.
	DeployedAt = "DeployedAt"

	// ReplacedAt: (Address, BlockNumber) -> ClassHash. Secondary index of
	// replaced_classes entries, keyed so class_hash_at can seek_le
	// instead of scanning state diffs.
	ReplacedAt = "ReplacedAt"

	// ClassHistory: ClassHash -> BlockNumber, the block a class was
	// declared (or deprecated-declared) at.
	ClassHistory = "ClassHistory"

	// Nonces: (Address, BlockNumber) -> Nonce.
	Nonces = "Nonces"

	// Storage: (Address, StorageKey, BlockNumber) -> FieldElement.
	Storage = "Storage"

	// Classes: ClassHash -> ContractClass body.
	Classes = "Classes"

	// Casm: ClassHash -> CasmClass body.
	Casm = "Casm"
)

// AllTables lists every table an Env must create on open.
var AllTables = []string{
	Markers, Headers, HashToNumber, Bodies, TxHashToLocation, Outputs,
	Events, StateDiffs, DeployedAt, ReplacedAt, ClassHistory, Nonces,
	Storage, Classes, Casm,
}

// MarkerKind enumerates the five append streams, each with its own
// monotonic marker.
type MarkerKind byte

const (
	MarkerHeader MarkerKind = iota
	MarkerBody
	MarkerState
	MarkerCasm
	MarkerBase
)

func (m MarkerKind) String() string {
	switch m {
	case MarkerHeader:
		return "header"
	case MarkerBody:
		return "body"
	case MarkerState:
		return "state"
	case MarkerCasm:
		return "casm"
	case MarkerBase:
		return "base"
	default:
		return "unknown"
	}
}
