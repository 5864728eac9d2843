package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/corelib/common"
)

func TestBlockNumberRoundTrip(t *testing.T) {
	b := PutBlockNumber(42)
	n, err := BlockNumber(b[:])
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(42), n)
}

func TestBlockNumberOrderingMatchesBytes(t *testing.T) {
	a := PutBlockNumber(1)
	b := PutBlockNumber(2)
	assert.Less(t, string(a[:]), string(b[:]))
}

func TestUvarintRoundTrip(t *testing.T) {
	dst := PutUvarint(nil, 300)
	v, n, err := Uvarint(dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
	assert.Equal(t, len(dst), n)
}

func TestZigzagRoundTripNegative(t *testing.T) {
	dst := PutZigzag(nil, -7)
	v, _, err := Zigzag(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), v)
}

func TestBytesFramedRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	dst := PutBytesFramed(nil, payload)
	got, consumed, err := BytesFramed(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, len(dst), consumed)
}

func TestBytesFramedTruncated(t *testing.T) {
	dst := PutBytesFramed(nil, []byte("hello"))
	_, _, err := BytesFramed(dst[:len(dst)-2])
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestFeltRoundTrip(t *testing.T) {
	f := common.FeltFromUint64(99)
	dst := PutFelt(nil, f)
	got, err := Felt(dst)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Cmp(got))
}

func TestRequireExhausted(t *testing.T) {
	assert.NoError(t, RequireExhausted(nil))
	assert.ErrorIs(t, RequireExhausted([]byte{1}), ErrTrailingBytes)
}
