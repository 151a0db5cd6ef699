// Package api serves the verifier's health, event, approval and metrics
// endpoints, and the instructions of a hosted escrow program
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
)

// ErrUnknownChain is returned by a Verifier for a chain it does not serve
var ErrUnknownChain = errors.New("unknown chain")

// Verifier is the service behind the API
type Verifier interface {
	// Ready returns an error while any chain client is not connected
	Ready() error
	Status(ctx context.Context) map[string]interface{}
	ResetCircuit(chainID uint64) error
	ValidateOutflowFulfillment(ctx context.Context, intentID string, chainID uint64, txHash string) (models.ValidationResult, *models.Approval, error)
}

// Approvals reads signed approvals
type Approvals interface {
	Approval(ctx context.Context, intentID string) (*models.Approval, error)
	Approvals(ctx context.Context) ([]models.Approval, error)
	PublicKeys() map[chains.Kind]string
}

// Server represents the verifier HTTP server
type Server struct {
	port          string
	verifier      Verifier
	approvals     Approvals
	cache         *tracker.EventCache
	stream        *ApprovalStream
	metricsAPIKey string
	escrowHost    EscrowHost
	escrowAPIKey  string
	logger        logger.Logger
	httpServer    *http.Server
}

// NewServer creates a new API server
func NewServer(port string, verifier Verifier, approvals Approvals, cache *tracker.EventCache, stream *ApprovalStream, metricsAPIKey string, logger logger.Logger) *Server {
	s := &Server{
		port:          port,
		verifier:      verifier,
		approvals:     approvals,
		cache:         cache,
		stream:        stream,
		metricsAPIKey: metricsAPIKey,
		logger:        logger,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// authMiddleware is a middleware that checks for a valid bearer API key
func (s *Server) authMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != apiKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := s.verifier.Ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.verifier.Status(r.Context()))
	})

	mux.HandleFunc("POST /circuit/reset", s.handleCircuitReset)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /approvals", s.handleApprovals)
	mux.HandleFunc("GET /approvals/{intent_id}", s.handleApproval)
	mux.HandleFunc("GET /public-key", s.handlePublicKey)
	mux.HandleFunc("POST /validate-outflow-fulfillment", s.handleValidateOutflow)
	if s.stream != nil {
		mux.Handle("GET /ws/approvals", s.stream)
	}
	if s.escrowHost != nil {
		s.registerEscrowRoutes(mux)
	}

	// Expose Prometheus metrics with API key authentication
	mux.Handle("GET /metrics", s.authMiddleware(s.metricsAPIKey, promhttp.Handler()))
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting API server on port %s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	s.writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	chainIDStr := r.URL.Query().Get("chain")
	if chainIDStr == "" {
		s.writeError(w, http.StatusBadRequest, "Missing chain parameter")
		return
	}

	chainID, err := strconv.ParseUint(chainIDStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid chain ID")
		return
	}

	if err := s.verifier.ResetCircuit(chainID); err != nil {
		s.writeError(w, http.StatusNotFound, "No circuit breaker for chain %d", chainID)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Circuit breaker for chain %d reset", chainID)})
}

type eventsResponse struct {
	Intents []models.Intent `json:"intents"`
	Escrows []models.Escrow `json:"escrows"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, eventsResponse{
		Intents: s.cache.Intents(),
		Escrows: s.cache.Escrows(),
	})
}

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := s.approvals.Approvals(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list approvals: %v", err)
		return
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": approvals})
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("intent_id")
	approval, err := s.approvals.Approval(r.Context(), intentID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if approval == nil {
		s.writeError(w, http.StatusNotFound, "no approval for intent %s", intentID)
		return
	}
	s.writeJSON(w, http.StatusOK, approval)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	keys := make(map[string]string)
	for kind, key := range s.approvals.PublicKeys() {
		keys[kind.String()] = key
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"public_keys": keys})
}

type validateOutflowRequest struct {
	IntentID string `json:"intent_id"`
	ChainID  uint64 `json:"chain_id"`
	TxHash   string `json:"tx_hash"`
}

type validateOutflowResponse struct {
	Validation models.ValidationResult `json:"validation"`
	Approval   *models.Approval        `json:"approval,omitempty"`
}

func (s *Server) handleValidateOutflow(w http.ResponseWriter, r *http.Request) {
	var req validateOutflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.IntentID == "" || req.TxHash == "" || req.ChainID == 0 {
		s.writeError(w, http.StatusBadRequest, "intent_id, chain_id and tx_hash are required")
		return
	}

	result, approval, err := s.verifier.ValidateOutflowFulfillment(r.Context(), req.IntentID, req.ChainID, req.TxHash)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrUnknownChain) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, "%v", err)
		return
	}
	s.writeJSON(w, http.StatusOK, validateOutflowResponse{Validation: result, Approval: approval})
}
