package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/circuitbreaker"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

// Config holds the configuration for the verifier service
type Config struct {
	HubRPCURL          string
	HubChainID         uint64
	SolverRegistryAddr string
	IndexerEndpoint    string
	Chains             map[uint64]ChainConfig
	MvmApproverKey     string
	EvmApproverKey     string
	PollingInterval    time.Duration
	WorkerCount        int
	MaxRetries         int
	APIPort            string
	MetricsAPIKey      string
	CircuitBreaker     circuitbreaker.Config
	RegistryCacheTTL   time.Duration
	ApprovalStoreDSN   string
	LocalEscrow        LocalEscrowConfig
	LoggerConfig       LoggerConfig
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
	Format   string
}

// ChainConfig holds the configuration for a connected chain
type ChainConfig struct {
	Name          string
	ChainID       uint64
	Kind          chains.Kind
	RPCURL        string
	EscrowAddress string
}

// LocalEscrowConfig selects a connected chain whose escrow program is hosted
// by this process and receives GMP messages through the in-process relay
type LocalEscrowConfig struct {
	ChainID     uint64
	DBPath      string
	ReleaseMode escrow.ReleaseMode
	// APIKey guards the escrow instruction endpoints
	APIKey string
}

// Enabled reports whether a local escrow host is configured
func (l LocalEscrowConfig) Enabled() bool {
	return l.ChainID != 0
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	hubRPCURL, err := GetEnvHubRPCURL()
	if err != nil {
		return nil, err
	}

	hubChainID, err := GetEnvHubChainID()
	if err != nil {
		return nil, err
	}

	registryAddr, err := GetEnvSolverRegistryAddr()
	if err != nil {
		return nil, err
	}

	indexerEndpoint, err := GetEnvIndexerEndpoint()
	if err != nil {
		return nil, err
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	apiPort, err := GetEnvAPIPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return nil, err
	}

	cacheTTL, err := GetEnvRegistryCacheTTL()
	if err != nil {
		return nil, err
	}

	localEscrow, err := GetEnvLocalEscrow()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	logFormat, err := GetEnvLogFormat()
	if err != nil {
		return nil, err
	}

	chainConfigList, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}
	chainConfigs := make(map[uint64]ChainConfig)
	for _, chainConfig := range chainConfigList {
		chainConfigs[chainConfig.ChainID] = chainConfig
	}

	cfg := &Config{
		HubRPCURL:          hubRPCURL,
		HubChainID:         hubChainID,
		SolverRegistryAddr: registryAddr,
		IndexerEndpoint:    indexerEndpoint,
		Chains:             chainConfigs,
		MvmApproverKey:     os.Getenv("MVM_APPROVER_PRIVATE_KEY"),
		EvmApproverKey:     os.Getenv("EVM_APPROVER_PRIVATE_KEY"),
		PollingInterval:    pollingInterval,
		WorkerCount:        workerCount,
		MaxRetries:         maxRetries,
		APIPort:            apiPort,
		MetricsAPIKey:      os.Getenv("METRICS_API_KEY"),
		CircuitBreaker: circuitbreaker.Config{
			Enabled:       cbEnabled,
			Threshold:     cbThreshold,
			FailureWindow: cbWindow,
			ResetTimeout:  cbReset,
		},
		RegistryCacheTTL: cacheTTL,
		ApprovalStoreDSN: os.Getenv("APPROVAL_STORE_DSN"),
		LocalEscrow:      localEscrow,
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
			Format:   logFormat,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.MvmApproverKey == "" && cfg.EvmApproverKey == "" {
		return fmt.Errorf("MVM_APPROVER_PRIVATE_KEY or EVM_APPROVER_PRIVATE_KEY environment variable is required")
	}
	if cfg.SolverRegistryAddr == "" {
		return fmt.Errorf("SOLVER_REGISTRY_ADDR environment variable is required")
	}
	if cfg.IndexerEndpoint == "" {
		return fmt.Errorf("INDEXER_ENDPOINT environment variable is required")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one connected chain is required in CONNECTED_CHAINS")
	}
	for chainID, chainConfig := range cfg.Chains {
		if chainID == cfg.HubChainID {
			return fmt.Errorf("chain %s uses the hub chain ID %d", chainConfig.Name, chainID)
		}
		if chainConfig.Kind != chains.Evm {
			continue
		}
		if chainConfig.RPCURL == "" {
			return fmt.Errorf("%s_RPC_URL for chain %d is required", chainConfig.Name, chainID)
		}
		if chainConfig.EscrowAddress == "" {
			return fmt.Errorf("%s_ESCROW_ADDRESS for chain %d is required", chainConfig.Name, chainID)
		}
	}
	if cfg.LocalEscrow.Enabled() {
		if _, ok := cfg.Chains[cfg.LocalEscrow.ChainID]; !ok {
			return fmt.Errorf("LOCAL_ESCROW_CHAIN_ID %d is not a connected chain", cfg.LocalEscrow.ChainID)
		}
		if cfg.LocalEscrow.APIKey == "" {
			return fmt.Errorf("LOCAL_ESCROW_API_KEY is required when LOCAL_ESCROW_CHAIN_ID is set")
		}
	}
	return nil
}
