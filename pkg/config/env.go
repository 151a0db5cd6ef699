package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
)

const (
	// DefaultHubRPCURL is the Move-VM REST endpoint of the hub chain
	DefaultHubRPCURL = "http://127.0.0.1:8080"

	// DefaultHubChainID is the chain ID of the hub chain
	DefaultHubChainID = 1

	// DefaultPollingInterval defines the default polling interval in seconds
	DefaultPollingInterval = 5

	// DefaultWorkerCount defines the default number of validation workers
	DefaultWorkerCount = 5

	// DefaultAPIPort defines the default port for the API server
	DefaultAPIPort = "3333"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15

	// DefaultMaxRetries defines the maximum number of retries for failed validations
	DefaultMaxRetries = 10

	// DefaultRegistryCacheTTL is how long a resolved solver address is reused
	DefaultRegistryCacheTTL = 60 * time.Second

	// DefaultLogFormat is the coloured console format
	DefaultLogFormat = "text"
)

// GetEnvHubRPCURL returns the hub chain REST endpoint from environment variables
func GetEnvHubRPCURL() (string, error) {
	return getEnvURL("HUB_RPC_URL", DefaultHubRPCURL)
}

// GetEnvHubChainID returns the hub chain ID from environment variables
func GetEnvHubChainID() (uint64, error) {
	return getEnvChainID("HUB_CHAIN_ID", DefaultHubChainID)
}

// GetEnvSolverRegistryAddr returns the solver registry account on the hub chain
func GetEnvSolverRegistryAddr() (string, error) {
	addr := os.Getenv("SOLVER_REGISTRY_ADDR")
	if addr == "" {
		return "", nil
	}
	if !strings.HasPrefix(addr, "0x") {
		return "", fmt.Errorf("invalid SOLVER_REGISTRY_ADDR value: %s, must start with 0x", addr)
	}
	if _, err := normalize.Bytes(addr, 32); err != nil {
		return "", fmt.Errorf("invalid SOLVER_REGISTRY_ADDR value: %s: %v", addr, err)
	}
	return addr, nil
}

// GetEnvIndexerEndpoint returns the indexer API endpoint from environment variables
func GetEnvIndexerEndpoint() (string, error) {
	return getEnvURL("INDEXER_ENDPOINT", "")
}

// GetEnvPollingInterval returns the polling interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvAPIPort returns the API server port from environment variables
func GetEnvAPIPort() (string, error) {
	port := os.Getenv("API_PORT")
	if port == "" {
		return DefaultAPIPort, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid API_PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	return getEnvBool("CIRCUIT_BREAKER_ENABLED", DefaultCircuitBreakerEnabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow*time.Second)
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset*time.Second)
}

// GetEnvMaxRetries returns the maximum number of retries from environment variables
func GetEnvMaxRetries() (int, error) {
	maxRetries := os.Getenv("MAX_RETRIES")
	if maxRetries == "" {
		return DefaultMaxRetries, nil
	}

	maxRetriesInt, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", maxRetries)
	}
	if maxRetriesInt < 0 {
		return 0, fmt.Errorf("MAX_RETRIES must be greater than or equal to 0")
	}
	return maxRetriesInt, nil
}

// GetEnvRegistryCacheTTL returns how long resolved solver addresses are cached
func GetEnvRegistryCacheTTL() (time.Duration, error) {
	return getEnvDuration("REGISTRY_CACHE_TTL", DefaultRegistryCacheTTL)
}

// GetEnvLocalEscrow returns the chain whose escrow program runs in-process,
// the leveldb path backing it and its release mode. An empty path keeps the
// ledger in memory.
func GetEnvLocalEscrow() (LocalEscrowConfig, error) {
	var local LocalEscrowConfig
	if os.Getenv("LOCAL_ESCROW_CHAIN_ID") == "" {
		return local, nil
	}
	chainID, err := getEnvChainID("LOCAL_ESCROW_CHAIN_ID", 0)
	if err != nil {
		return local, err
	}
	local.ChainID = chainID
	local.DBPath = os.Getenv("LOCAL_ESCROW_DB_PATH")
	local.APIKey = os.Getenv("LOCAL_ESCROW_API_KEY")

	mode, err := escrow.ParseReleaseMode(os.Getenv("LOCAL_ESCROW_RELEASE_MODE"))
	if err != nil {
		return local, fmt.Errorf("invalid LOCAL_ESCROW_RELEASE_MODE value: %v", err)
	}
	local.ReleaseMode = mode
	return local, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %v", err)
	}
	return level, nil
}

// GetEnvLogColoring returns whether console output is coloured
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", true)
}

// GetEnvLogFormat returns "text" or "json"
func GetEnvLogFormat() (string, error) {
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	switch format {
	case "":
		return DefaultLogFormat, nil
	case "text", "json":
		return format, nil
	}
	return "", fmt.Errorf("invalid LOG_FORMAT value: %s, must be 'text' or 'json'", format)
}

// GetEnvChainConfigs reads the chains listed in CONNECTED_CHAINS. Each name
// is configured with <NAME>_CHAIN_ID, <NAME>_KIND, <NAME>_RPC_URL and
// <NAME>_ESCROW_ADDRESS.
func GetEnvChainConfigs() ([]ChainConfig, error) {
	list := os.Getenv("CONNECTED_CHAINS")
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var out []ChainConfig
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		chainID, err := getEnvChainID(name+"_CHAIN_ID", 0)
		if err != nil {
			return nil, err
		}
		if chainID == 0 {
			return nil, fmt.Errorf("%s_CHAIN_ID is required", name)
		}

		kindValue := os.Getenv(name + "_KIND")
		if kindValue == "" {
			kindValue = chains.Evm.String()
		}
		kind, err := chains.ParseKind(kindValue)
		if err != nil {
			return nil, fmt.Errorf("invalid %s_KIND value: %v", name, err)
		}

		rpcURL, err := getEnvURL(name+"_RPC_URL", "")
		if err != nil {
			return nil, err
		}

		escrowAddress := os.Getenv(name + "_ESCROW_ADDRESS")
		if kind == chains.Evm && escrowAddress != "" && !common.IsHexAddress(escrowAddress) {
			return nil, fmt.Errorf("invalid %s_ESCROW_ADDRESS value: %s, must be a valid Ethereum address", name, escrowAddress)
		}

		out = append(out, ChainConfig{
			Name:          strings.ToLower(name),
			ChainID:       chainID,
			Kind:          kind,
			RPCURL:        rpcURL,
			EscrowAddress: escrowAddress,
		})
	}
	return out, nil
}

func getEnvURL(key, fallback string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	if _, err := url.ParseRequestURI(value); err != nil {
		return "", fmt.Errorf("invalid %s value: %s, must be a valid URL", key, value)
	}
	return value, nil
}

func getEnvChainID(key string, fallback uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an unsigned integer", key, value)
	}
	return id, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	switch value {
	case "":
		return fallback, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	return parsed, nil
}
