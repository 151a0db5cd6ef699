package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MVM_APPROVER_PRIVATE_KEY", "0x0101010101010101010101010101010101010101010101010101010101010101")
	t.Setenv("SOLVER_REGISTRY_ADDR", "0x123")
	t.Setenv("INDEXER_ENDPOINT", "http://localhost:9000")
	t.Setenv("CONNECTED_CHAINS", "base, solana")
	t.Setenv("BASE_CHAIN_ID", "8453")
	t.Setenv("BASE_RPC_URL", "https://mainnet.base.org")
	t.Setenv("BASE_ESCROW_ADDRESS", "0x999fce149FD078DCFaa2C681e060e00F528552f4")
	t.Setenv("SOLANA_CHAIN_ID", "901")
	t.Setenv("SOLANA_KIND", "svm")
}

func TestLoadConfig(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REGISTRY_CACHE_TTL", "30s")
	t.Setenv("LOCAL_ESCROW_CHAIN_ID", "901")
	t.Setenv("LOCAL_ESCROW_API_KEY", "escrow-key")
	t.Setenv("LOCAL_ESCROW_RELEASE_MODE", "claim")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultHubChainID), cfg.HubChainID)
	assert.Equal(t, DefaultHubRPCURL, cfg.HubRPCURL)
	assert.Equal(t, time.Duration(DefaultPollingInterval)*time.Second, cfg.PollingInterval)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.RegistryCacheTTL)
	assert.Equal(t, logger.DebugLevel, cfg.LoggerConfig.Level)
	assert.Equal(t, "json", cfg.LoggerConfig.Format)
	assert.True(t, cfg.CircuitBreaker.Enabled)

	require.Len(t, cfg.Chains, 2)
	assert.Equal(t, chains.Evm, cfg.Chains[8453].Kind)
	assert.Equal(t, "base", cfg.Chains[8453].Name)
	assert.Equal(t, chains.SolanaVm, cfg.Chains[901].Kind)

	assert.True(t, cfg.LocalEscrow.Enabled())
	assert.Equal(t, uint64(901), cfg.LocalEscrow.ChainID)
	assert.Equal(t, escrow.ReleaseOnClaim, cfg.LocalEscrow.ReleaseMode)
	assert.Equal(t, "escrow-key", cfg.LocalEscrow.APIKey)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{"no approver key", map[string]string{"MVM_APPROVER_PRIVATE_KEY": ""}, "APPROVER_PRIVATE_KEY"},
		{"no registry", map[string]string{"SOLVER_REGISTRY_ADDR": ""}, "SOLVER_REGISTRY_ADDR"},
		{"registry without prefix", map[string]string{"SOLVER_REGISTRY_ADDR": "123"}, "0x"},
		{"no indexer", map[string]string{"INDEXER_ENDPOINT": ""}, "INDEXER_ENDPOINT"},
		{"no chains", map[string]string{"CONNECTED_CHAINS": ""}, "CONNECTED_CHAINS"},
		{"missing chain id", map[string]string{"BASE_CHAIN_ID": ""}, "BASE_CHAIN_ID"},
		{"bad kind", map[string]string{"SOLANA_KIND": "cosmos"}, "SOLANA_KIND"},
		{"evm without escrow", map[string]string{"BASE_ESCROW_ADDRESS": ""}, "BASE_ESCROW_ADDRESS"},
		{"evm bad escrow", map[string]string{"BASE_ESCROW_ADDRESS": "0x12"}, "BASE_ESCROW_ADDRESS"},
		{"hub id reused", map[string]string{"HUB_CHAIN_ID": "901"}, "hub chain ID"},
		{"unknown local escrow", map[string]string{"LOCAL_ESCROW_CHAIN_ID": "5", "LOCAL_ESCROW_API_KEY": "k"}, "LOCAL_ESCROW_CHAIN_ID"},
		{"local escrow without key", map[string]string{"LOCAL_ESCROW_CHAIN_ID": "901"}, "LOCAL_ESCROW_API_KEY"},
		{"bad release mode", map[string]string{"LOCAL_ESCROW_CHAIN_ID": "901", "LOCAL_ESCROW_RELEASE_MODE": "later"}, "LOCAL_ESCROW_RELEASE_MODE"},
		{"bad polling interval", map[string]string{"POLLING_INTERVAL": "0"}, "POLLING_INTERVAL"},
		{"bad breaker flag", map[string]string{"CIRCUIT_BREAKER_ENABLED": "yes"}, "CIRCUIT_BREAKER_ENABLED"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
