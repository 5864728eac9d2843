package store

import (
	"encoding/binary"

	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
)

// markerKey is the one-byte key every Markers row is stored under.
func markerKey(k kv.MarkerKind) []byte { return []byte{byte(k)} }

// getMarker reads one stream's marker, defaulting to 0.
func getMarker(tx kv.Tx, k kv.MarkerKind) (common.BlockNumber, error) {
	v, err := tx.Get(kv.Markers, markerKey(k))
	if err == kv.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, kv.ErrCorrupt
	}
	return common.BlockNumber(binary.BigEndian.Uint64(v)), nil
}

// setMarker writes one stream's marker within an in-flight write
// transaction. Callers are responsible for only ever moving a marker
// forward except during revert_to.
func setMarker(tx kv.RwTx, k kv.MarkerKind, n common.BlockNumber) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(n))
	return tx.Upsert(kv.Markers, markerKey(k), v[:])
}

// Markers is a read-only snapshot of every stream marker, returned by
// BlockStore.Markers for callers that need a consistent view of all five
// at once, such as the sync controller's scheduling decisions.
type Markers struct {
	Header common.BlockNumber
	Body common.BlockNumber
	State common.BlockNumber
	Casm common.BlockNumber
	Base common.BlockNumber
}
