// Package mvmclient reads the solver registry from a Move-VM hub chain over
// its REST API.
package mvmclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/normalize"
	"github.com/speedrun-hq/gmp-verifier/pkg/registry"
)

const registryResourceSuffix = "::solver_registry::SolverRegistry"

// Client queries a Move-VM REST endpoint
type Client struct {
	baseURL      string
	registryAddr string
	httpClient   *http.Client
	logger       logger.Logger
}

var _ registry.Registry = (*Client)(nil)

// New creates a client for the registry deployed at registryAddr
func New(baseURL, registryAddr string, logger logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		registryAddr: registryAddr,
		httpClient:   createHTTPClient(),
		logger:       logger,
	}
}

// createHTTPClient creates an HTTP client with appropriate timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

type resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type registryData struct {
	Solvers struct {
		Data []solverEntry `json:"data"`
	} `json:"solvers"`
}

type solverEntry struct {
	Key   string      `json:"key"`
	Value solverValue `json:"value"`
}

type solverValue struct {
	PublicKey             json.RawMessage `json:"public_key"`
	ConnectedChainMvmAddr optionVec       `json:"connected_chain_mvm_addr"`
	ConnectedChainEvmAddr optionVec       `json:"connected_chain_evm_addr"`
	ConnectedChainSvmAddr optionVec       `json:"connected_chain_svm_addr"`
	RegisteredAt          json.RawMessage `json:"registered_at"`
}

// optionVec is how the REST API renders a Move Option: {"vec": []} or {"vec": [x]}
type optionVec struct {
	Vec []json.RawMessage `json:"vec"`
}

// value returns the option's address as 0x hex, or nil when empty. Addresses
// are rendered either as hex strings or as byte arrays.
func (o optionVec) value() (*string, error) {
	if len(o.Vec) == 0 {
		return nil, nil
	}
	s, err := bytesOrHex(o.Vec[0])
	if err != nil {
		return nil, err
	}
	if s == "" || s == "0x" {
		return nil, nil
	}
	return &s, nil
}

func bytesOrHex(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if !strings.HasPrefix(s, "0x") {
			s = "0x" + s
		}
		return strings.ToLower(s), nil
	}

	var nums []uint16
	if err := json.Unmarshal(raw, &nums); err != nil {
		return "", fmt.Errorf("expected hex string or byte array, got %s", string(raw))
	}
	b := make([]byte, len(nums))
	for i, n := range nums {
		if n > 0xff {
			return "", fmt.Errorf("byte value %d out of range", n)
		}
		b[i] = byte(n)
	}
	return "0x" + hex.EncodeToString(b), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// SolverInfo looks up a solver in the SolverRegistry resource. It returns
// nil when the resource or the solver entry is absent.
func (c *Client) SolverInfo(ctx context.Context, solverHubAddr string) (*registry.SolverInfo, error) {
	body, err := c.get(ctx, fmt.Sprintf("/v1/accounts/%s/resources", c.registryAddr))
	if err != nil {
		return nil, fmt.Errorf("failed to query registry resources: %w", err)
	}

	var resources []resource
	if err := json.Unmarshal(body, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode registry resources: %w", err)
	}

	var data *registryData
	for _, r := range resources {
		if !c.isRegistryType(r.Type) {
			continue
		}
		data = &registryData{}
		if err := json.Unmarshal(r.Data, data); err != nil {
			return nil, fmt.Errorf("failed to decode registry data: %w", err)
		}
		break
	}
	if data == nil {
		c.logger.Debug("SolverRegistry resource not found at %s", c.registryAddr)
		return nil, nil
	}

	for _, entry := range data.Solvers.Data {
		if !normalize.Equal(entry.Key, solverHubAddr, 32) {
			continue
		}
		return decodeSolver(entry.Value)
	}
	return nil, nil
}

// isRegistryType matches the resource type, comparing the address part
// normalized since Move strips leading zeros inside type names
func (c *Client) isRegistryType(t string) bool {
	if !strings.HasSuffix(t, registryResourceSuffix) {
		return false
	}
	return normalize.Equal(strings.TrimSuffix(t, registryResourceSuffix), c.registryAddr, 32)
}

func decodeSolver(v solverValue) (*registry.SolverInfo, error) {
	info := &registry.SolverInfo{}
	var err error

	if len(v.PublicKey) > 0 && string(v.PublicKey) != "null" {
		if info.PublicKey, err = bytesOrHex(v.PublicKey); err != nil {
			return nil, fmt.Errorf("malformed public_key: %w", err)
		}
	}
	if info.ConnectedChainMvmAddr, err = v.ConnectedChainMvmAddr.value(); err != nil {
		return nil, fmt.Errorf("malformed connected_chain_mvm_addr: %w", err)
	}
	if info.ConnectedChainEvmAddr, err = v.ConnectedChainEvmAddr.value(); err != nil {
		return nil, fmt.Errorf("malformed connected_chain_evm_addr: %w", err)
	}
	if info.ConnectedChainSvmAddr, err = v.ConnectedChainSvmAddr.value(); err != nil {
		return nil, fmt.Errorf("malformed connected_chain_svm_addr: %w", err)
	}
	if len(v.RegisteredAt) > 0 {
		raw := strings.Trim(string(v.RegisteredAt), `"`)
		if raw != "null" && raw != "" {
			if info.RegisteredAt, err = strconv.ParseUint(raw, 10, 64); err != nil {
				return nil, fmt.Errorf("malformed registered_at: %w", err)
			}
		}
	}
	return info, nil
}
