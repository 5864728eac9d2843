package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/corelib/common"
)

func TestContinuationTokenRoundTrip(t *testing.T) {
	idx := common.EventIndex{Block: 7, TxIndex: 3, EvIndex: 1}
	enc := EncodeContinuationToken(idx)
	got, err := DecodeContinuationToken(enc)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
}

func TestEventIndexOrdering(t *testing.T) {
	a := common.EventIndex{Block: 1, TxIndex: 0, EvIndex: 0}
	b := common.EventIndex{Block: 1, TxIndex: 0, EvIndex: 1}
	c := common.EventIndex{Block: 2, TxIndex: 0, EvIndex: 0}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestKeyEventIndexOrderMatchesEventIndexLess(t *testing.T) {
	addr := common.Address(common.FeltFromUint64(1))
	a := KeyEventIndex(addr, common.EventIndex{Block: 1, TxIndex: 0, EvIndex: 0})
	b := KeyEventIndex(addr, common.EventIndex{Block: 1, TxIndex: 1, EvIndex: 0})
	assert.Less(t, string(a), string(b))
}

func TestKeyOrderSurvivesMultiByteOffsets(t *testing.T) {
	// Offsets wide enough to need more than one byte must still sort
	// numerically under plain byte comparison.
	lo := KeyTxLocation(3, 200)
	hi := KeyTxLocation(3, 300)
	assert.Less(t, string(lo), string(hi))

	addr := common.Address(common.FeltFromUint64(1))
	a := KeyEventIndex(addr, common.EventIndex{Block: 1, TxIndex: 200, EvIndex: 0})
	b := KeyEventIndex(addr, common.EventIndex{Block: 1, TxIndex: 300, EvIndex: 0})
	assert.Less(t, string(a), string(b))
}

func TestTxLocationRoundTrip(t *testing.T) {
	key := KeyTxLocation(9, 4)
	loc, err := TxLocation(key)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(9), loc.Block)
	assert.Equal(t, common.TxOffsetInBlock(4), loc.Index)
}
