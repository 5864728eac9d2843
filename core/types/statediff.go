package types

import "github.com/starkcore/node/corelib/common"

// StateDiff is the set of mutations applied by one block.
// Iteration order for the ordered storage_updates maps is callers'
// responsibility when it matters (commitment computation); the store
// itself treats them as sets keyed by (address, key).
type StateDiff struct {
	DeployedContracts map[common.Address]common.ClassHash
	StorageUpdates map[common.Address]map[common.StorageKey]common.FieldElement
	DeclaredClasses map[common.ClassHash]common.CompiledClassHash
	DeprecatedDeclaredClasses map[common.ClassHash]struct{}
	Nonces map[common.Address]common.Nonce
	ReplacedClasses map[common.Address]common.ClassHash
}

// NewStateDiff returns a StateDiff with every map initialized, ready to
// accumulate into (used by the pending overlay, which merges diffs
// in-place block by block).
func NewStateDiff() *StateDiff {
	return &StateDiff{
		DeployedContracts: make(map[common.Address]common.ClassHash),
		StorageUpdates: make(map[common.Address]map[common.StorageKey]common.FieldElement),
		DeclaredClasses: make(map[common.ClassHash]common.CompiledClassHash),
		DeprecatedDeclaredClasses: make(map[common.ClassHash]struct{}),
		Nonces: make(map[common.Address]common.Nonce),
		ReplacedClasses: make(map[common.Address]common.ClassHash),
	}
}

// Merge folds other into d in block order (other is assumed to be a later
// block's diff): later writes to the same key win, matching the semantics
// a cumulative pending overlay needs.
func (d *StateDiff) Merge(other *StateDiff) {
	for k, v := range other.DeployedContracts {
		d.DeployedContracts[k] = v
	}
	for addr, upd := range other.StorageUpdates {
		if d.StorageUpdates[addr] == nil {
			d.StorageUpdates[addr] = make(map[common.StorageKey]common.FieldElement, len(upd))
		}
		for k, v := range upd {
			d.StorageUpdates[addr][k] = v
		}
	}
	for k, v := range other.DeclaredClasses {
		d.DeclaredClasses[k] = v
	}
	for k := range other.DeprecatedDeclaredClasses {
		d.DeprecatedDeclaredClasses[k] = struct{}{}
	}
	for k, v := range other.Nonces {
		d.Nonces[k] = v
	}
	for k, v := range other.ReplacedClasses {
		d.ReplacedClasses[k] = v
	}
}
