package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/gmp"
)

// EscrowHost runs instructions against the escrow program hosted by this process
type EscrowHost interface {
	ChainID() uint64
	CreateEscrow(ctx context.Context, params escrow.CreateEscrowParams) (*gmp.EscrowConfirmation, error)
	Claim(ctx context.Context, intentID escrow.IntentID, signature []byte) error
	ClaimWithProof(ctx context.Context, intentID escrow.IntentID) error
	Cancel(ctx context.Context, intentID escrow.IntentID, caller escrow.Address) error
	Mint(ctx context.Context, token, account escrow.Address, amount uint64) error
	Escrow(ctx context.Context, intentID escrow.IntentID) (*escrow.Escrow, error)
}

// SetEscrowHost exposes the hosted escrow program under /escrow, guarded by
// a bearer API key
func (s *Server) SetEscrowHost(host EscrowHost, apiKey string) {
	s.escrowHost = host
	s.escrowAPIKey = apiKey
	s.httpServer.Handler = s.Handler()
}

func (s *Server) registerEscrowRoutes(mux *http.ServeMux) {
	auth := func(h http.HandlerFunc) http.Handler { return s.authMiddleware(s.escrowAPIKey, h) }

	mux.Handle("POST /escrow/mint", auth(s.handleEscrowMint))
	mux.Handle("POST /escrow/create", auth(s.handleEscrowCreate))
	mux.Handle("GET /escrow/{intent_id}", auth(s.handleEscrowGet))
	mux.Handle("POST /escrow/{intent_id}/claim", auth(s.handleEscrowClaim))
	mux.Handle("POST /escrow/{intent_id}/claim-with-proof", auth(s.handleEscrowClaimWithProof))
	mux.Handle("POST /escrow/{intent_id}/cancel", auth(s.handleEscrowCancel))
}

type mintRequest struct {
	Token   escrow.Address `json:"token"`
	Account escrow.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

type createEscrowRequest struct {
	IntentID       escrow.IntentID `json:"intent_id"`
	Amount         uint64          `json:"amount"`
	Requester      escrow.Address  `json:"requester"`
	Token          escrow.Address  `json:"token"`
	ReservedSolver escrow.Address  `json:"reserved_solver"`
	ExpiryDuration int64           `json:"expiry_duration,omitempty"`
}

type confirmationResponse struct {
	IntentID       string `json:"intent_id"`
	EscrowID       string `json:"escrow_id"`
	AmountEscrowed uint64 `json:"amount_escrowed"`
	TokenAddr      string `json:"token_addr"`
	CreatorAddr    string `json:"creator_addr"`
}

type createEscrowResponse struct {
	ChainID      uint64                `json:"chain_id"`
	EscrowID     string                `json:"escrow_id"`
	Confirmation *confirmationResponse `json:"confirmation,omitempty"`
}

type claimRequest struct {
	Signature string `json:"signature"`
}

type cancelRequest struct {
	Caller escrow.Address `json:"caller"`
}

type escrowErrorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code"`
}

func (s *Server) handleEscrowMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.escrowHost.Mint(r.Context(), req.Token, req.Account, req.Amount); err != nil {
		s.writeEscrowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "minted"})
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IntentID == (escrow.IntentID{}) {
		s.writeError(w, http.StatusBadRequest, "intent_id is required")
		return
	}
	confirmation, err := s.escrowHost.CreateEscrow(r.Context(), escrow.CreateEscrowParams{
		IntentID:       req.IntentID,
		Amount:         req.Amount,
		Requester:      req.Requester,
		Token:          req.Token,
		ReservedSolver: req.ReservedSolver,
		ExpiryDuration: req.ExpiryDuration,
	})
	if err != nil {
		s.writeEscrowError(w, err)
		return
	}

	resp := createEscrowResponse{
		ChainID:  s.escrowHost.ChainID(),
		EscrowID: escrow.VaultAddress(req.IntentID).String(),
	}
	if confirmation != nil {
		resp.Confirmation = &confirmationResponse{
			IntentID:       hexutil.Encode(confirmation.IntentID[:]),
			EscrowID:       hexutil.Encode(confirmation.EscrowID[:]),
			AmountEscrowed: confirmation.AmountEscrowed,
			TokenAddr:      hexutil.Encode(confirmation.TokenAddr[:]),
			CreatorAddr:    hexutil.Encode(confirmation.CreatorAddr[:]),
		}
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIntentID(w, r)
	if !ok {
		return
	}
	e, err := s.escrowHost.Escrow(r.Context(), id)
	if err != nil {
		s.writeEscrowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEscrowClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIntentID(w, r)
	if !ok {
		return
	}
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid signature: %v", err)
		return
	}
	if err := s.escrowHost.Claim(r.Context(), id, sig); err != nil {
		s.writeEscrowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "claimed"})
}

func (s *Server) handleEscrowClaimWithProof(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIntentID(w, r)
	if !ok {
		return
	}
	if err := s.escrowHost.ClaimWithProof(r.Context(), id); err != nil {
		s.writeEscrowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "claimed"})
}

func (s *Server) handleEscrowCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIntentID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.escrowHost.Cancel(r.Context(), id, req.Caller); err != nil {
		s.writeEscrowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "cancelled"})
}

func (s *Server) pathIntentID(w http.ResponseWriter, r *http.Request) (escrow.IntentID, bool) {
	id, err := escrow.ParseIntentID(r.PathValue("intent_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid intent id: %v", err)
		return id, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

// writeEscrowError maps program guard violations to 409 and a missing
// escrow to 404
func (s *Server) writeEscrowError(w http.ResponseWriter, err error) {
	var guard escrow.Error
	switch {
	case errors.Is(err, escrow.ErrEscrowDoesNotExist):
		s.writeJSON(w, http.StatusNotFound, escrowErrorResponse{Error: err.Error(), Code: escrow.ErrEscrowDoesNotExist.Code()})
	case errors.As(err, &guard):
		s.writeJSON(w, http.StatusConflict, escrowErrorResponse{Error: guard.Error(), Code: guard.Code()})
	case errors.Is(err, escrow.ErrInsufficientFunds):
		s.writeError(w, http.StatusConflict, "%v", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "%v", err)
	}
}
