// Package hubclient reads the hub intent feed and the non-EVM chain events
// published by the indexer.
package hubclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// IntentsResponse is the paginated intent listing. Older indexers use "data"
// instead of "intents".
type IntentsResponse struct {
	Intents    []models.Intent `json:"intents,omitempty"`
	Data       []models.Intent `json:"data,omitempty"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

type escrowsResponse struct {
	Escrows []models.Escrow `json:"escrows"`
}

type readinessResponse struct {
	IntentIDs []string `json:"intent_ids"`
}

type fulfillmentsResponse struct {
	Fulfillments []models.FulfillmentTransactionParams `json:"fulfillments"`
}

// Client represents an indexer API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new indexer API client
func New(endpoint string, logger logger.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: createHTTPClient(),
		logger:     logger,
	}
}

// FetchIntents gets the open intents of the hub chain
func (c *Client) FetchIntents(ctx context.Context) ([]models.Intent, error) {
	var resp IntentsResponse
	if err := c.get(ctx, "/api/v1/intents?status=open", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch intents: %w", err)
	}

	if len(resp.Intents) > 0 {
		return resp.Intents, nil
	}
	if len(resp.Data) > 0 {
		return resp.Data, nil
	}
	c.logger.Debug("No open intents found (page %d/%d, total count: %d)", resp.Page, resp.TotalPages, resp.TotalCount)
	return []models.Intent{}, nil
}

// FetchEscrows gets the escrows created on a connected chain
func (c *Client) FetchEscrows(ctx context.Context, chainID uint64) ([]models.Escrow, error) {
	var resp escrowsResponse
	if err := c.get(ctx, "/api/v1/escrows?"+chainQuery(chainID), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch escrows for chain %d: %w", chainID, err)
	}
	return resp.Escrows, nil
}

// FetchReadyIntentIDs gets the intents whose requirements reached a connected chain
func (c *Client) FetchReadyIntentIDs(ctx context.Context, chainID uint64) ([]string, error) {
	var resp readinessResponse
	if err := c.get(ctx, "/api/v1/requirements?"+chainQuery(chainID), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ready intents for chain %d: %w", chainID, err)
	}
	return resp.IntentIDs, nil
}

// FetchFulfillments gets the fulfillment transactions seen on a chain: outflow
// fulfillments on a connected chain, inflow fulfillments on the hub
func (c *Client) FetchFulfillments(ctx context.Context, chainID uint64) ([]models.FulfillmentTransactionParams, error) {
	var resp fulfillmentsResponse
	if err := c.get(ctx, "/api/v1/fulfillments?"+chainQuery(chainID), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch fulfillments for chain %d: %w", chainID, err)
	}
	return resp.Fulfillments, nil
}

func chainQuery(chainID uint64) string {
	return url.Values{"chain_id": []string{strconv.FormatUint(chainID, 10)}}.Encode()
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %v, body: %s", err, string(bodyBytes))
	}
	return nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
