package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeltRoundTrip(t *testing.T) {
	f := FeltFromUint64(12345)
	b := f.Bytes()
	got, err := FeltFromBytes(b[:])
	require.NoError(t, err)
	assert.Equal(t, 0, f.Cmp(got))
}

func TestFeltRejectsOutOfRange(t *testing.T) {
	var b [FeltBytes]byte
	for i := range b {
		b[i] = 0xff
	}
	_, err := FeltFromBytes(b[:])
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFeltOrdering(t *testing.T) {
	a := FeltFromUint64(1)
	b := FeltFromUint64(2)
	assert.Negative(t, a.Cmp(b))
	assert.Positive(t, b.Cmp(a))
}

func TestFeltZeroIsZero(t *testing.T) {
	assert.True(t, FeltZero.IsZero())
	assert.True(t, FieldElement(NonceZero).IsZero())
}
