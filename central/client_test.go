package central

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/corelib/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig(srv.URL)
	cfg.MaxRetries = 0
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return c, srv
}

func TestHeadMarkerReturnsBlockNumberPlusOne(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "latest", r.URL.Query().Get("blockNumber"))
		w.Write([]byte(`{"block_hash": "0x1", "block_number": 41}`))
	})

	n, err := c.HeadMarker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(42), n)
}

func TestHeadMarkerTreatsBlockNotFoundAsZero(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": "StarknetErrorCode.BLOCK_NOT_FOUND", "message": "no blocks yet"}`))
	})

	n, err := c.HeadMarker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(0), n)
}

func TestGetSurfacesStarknetErrorEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": "StarknetErrorCode.UNDECLARED_CLASS", "message": "nope"}`))
	})

	_, err := c.HeadMarker(context.Background())
	var se *StarknetError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "StarknetErrorCode.UNDECLARED_CLASS", se.Code)
}

func TestBaseLayerConfirmedDecodesBlockNumber(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"block_number": 7}`))
	})

	n, err := c.BaseLayerConfirmed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(7), n)
}
