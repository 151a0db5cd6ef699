package mvmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

const (
	registryAddr = "0x0000000000000000000000000000000000000000000000000000000000000abc"
	solverAddr   = "0x00000000000000000000000000000000000000000000000000000000000000f1"
	evmAddr      = "0x1234567890123456789012345678901234567890"
)

func registryResponse(typeAddr string, solvers ...map[string]interface{}) []interface{} {
	return []interface{}{
		map[string]interface{}{"type": "0x1::account::Account", "data": map[string]interface{}{}},
		map[string]interface{}{
			"type": typeAddr + "::solver_registry::SolverRegistry",
			"data": map[string]interface{}{
				"solvers": map[string]interface{}{"data": solvers},
			},
		},
	}
}

func solverFixture(key string, evm interface{}) map[string]interface{} {
	evmVec := []interface{}{}
	if evm != nil {
		evmVec = append(evmVec, evm)
	}
	return map[string]interface{}{
		"key": key,
		"value": map[string]interface{}{
			"public_key":               "0xaabb",
			"connected_chain_mvm_addr": map[string]interface{}{"vec": []interface{}{"0x22"}},
			"connected_chain_evm_addr": map[string]interface{}{"vec": evmVec},
			"connected_chain_svm_addr": map[string]interface{}{"vec": []interface{}{}},
			"registered_at":            "1700000000",
		},
	}
}

func serveJSON(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			require.NoError(t, json.NewEncoder(w).Encode(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSolverInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("matches registry type with stripped leading zeros", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, registryResponse("0xabc", solverFixture("0xf1", evmAddr)))
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		info, err := client.SolverInfo(ctx, solverAddr)
		require.NoError(t, err)
		require.NotNil(t, info)
		require.NotNil(t, info.ConnectedChainEvmAddr)
		assert.Equal(t, evmAddr, *info.ConnectedChainEvmAddr)
		assert.Equal(t, "0x22", *info.ConnectedChainMvmAddr)
		assert.Nil(t, info.ConnectedChainSvmAddr)
		assert.Equal(t, "0xaabb", info.PublicKey)
		assert.Equal(t, uint64(1700000000), info.RegisteredAt)
	})

	t.Run("evm address as byte array", func(t *testing.T) {
		bytesAddr := []int{0x12, 0x34, 0x56, 0x78, 0x90, 0x12, 0x34, 0x56, 0x78, 0x90, 0x12, 0x34, 0x56, 0x78, 0x90, 0x12, 0x34, 0x56, 0x78, 0x90}
		srv := serveJSON(t, http.StatusOK, registryResponse(registryAddr, solverFixture(solverAddr, bytesAddr)))
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		info, err := client.SolverInfo(ctx, solverAddr)
		require.NoError(t, err)
		require.NotNil(t, info.ConnectedChainEvmAddr)
		assert.Equal(t, evmAddr, *info.ConnectedChainEvmAddr)
	})

	t.Run("solver not registered", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, registryResponse(registryAddr, solverFixture("0xf2", evmAddr)))
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		info, err := client.SolverInfo(ctx, solverAddr)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("registry resource missing", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, []interface{}{})
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		info, err := client.SolverInfo(ctx, solverAddr)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("http error", func(t *testing.T) {
		srv := serveJSON(t, http.StatusInternalServerError, nil)
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		info, err := client.SolverInfo(ctx, solverAddr)
		require.Error(t, err)
		assert.Nil(t, info)
		assert.Contains(t, err.Error(), "registry")
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, map[string]string{"error": "nope"})
		client := New(srv.URL, registryAddr, &logger.EmptyLogger{})

		_, err := client.SolverInfo(ctx, solverAddr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry")
	})
}
