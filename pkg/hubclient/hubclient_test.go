package hubclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

func newServer(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path+"?"+r.URL.RawQuery]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", &logger.EmptyLogger{})
}

func TestFetchIntents(t *testing.T) {
	ctx := context.Background()

	t.Run("intents key", func(t *testing.T) {
		c := newServer(t, map[string]string{
			"/api/v1/intents?status=open": `{"intents":[{"intent_id":"0xab","direction":"inflow","offered_amount":1000,"connected_chain_id":2}],"total_count":1}`,
		})
		intents, err := c.FetchIntents(ctx)
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, uint64(1000), intents[0].OfferedAmount)
		require.NotNil(t, intents[0].ConnectedChainID)
		assert.Equal(t, uint64(2), *intents[0].ConnectedChainID)
	})

	t.Run("data key", func(t *testing.T) {
		c := newServer(t, map[string]string{
			"/api/v1/intents?status=open": `{"data":[{"intent_id":"0xab"}]}`,
		})
		intents, err := c.FetchIntents(ctx)
		require.NoError(t, err)
		assert.Len(t, intents, 1)
	})

	t.Run("empty page", func(t *testing.T) {
		c := newServer(t, map[string]string{"/api/v1/intents?status=open": `{"total_count":0}`})
		intents, err := c.FetchIntents(ctx)
		require.NoError(t, err)
		assert.Empty(t, intents)
	})

	t.Run("server error", func(t *testing.T) {
		c := newServer(t, nil)
		_, err := c.FetchIntents(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestFetchChainFeeds(t *testing.T) {
	c := newServer(t, map[string]string{
		"/api/v1/escrows?chain_id=7":      `{"escrows":[{"escrow_id":"0xe1","intent_id":"0xab","chain_id":7,"chain_type":"mvm","offered_amount":5}]}`,
		"/api/v1/requirements?chain_id=7": `{"intent_ids":["0xab","0xcd"]}`,
		"/api/v1/fulfillments?chain_id=7": `{"fulfillments":[{"tx_hash":"0x1","success":true,"intent_id":"0xab","amount":9,"timestamp":1700000100}]}`,
	})
	ctx := context.Background()

	escrows, err := c.FetchEscrows(ctx, 7)
	require.NoError(t, err)
	require.Len(t, escrows, 1)
	assert.Equal(t, chains.MoveVm, escrows[0].ChainKind)

	ids, err := c.FetchReadyIntentIDs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xab", "0xcd"}, ids)

	fulfillments, err := c.FetchFulfillments(ctx, 7)
	require.NoError(t, err)
	require.Len(t, fulfillments, 1)
	assert.Equal(t, uint64(9), fulfillments[0].Amount)
	assert.Equal(t, uint64(1700000100), fulfillments[0].Timestamp)

	_, err = c.FetchEscrows(ctx, 8)
	assert.Error(t, err)
}

func TestMalformedResponse(t *testing.T) {
	c := newServer(t, map[string]string{"/api/v1/escrows?chain_id=1": `{"escrows":`})
	_, err := c.FetchEscrows(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}
