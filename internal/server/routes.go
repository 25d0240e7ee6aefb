package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/shopspring/decimal"
)

const (
	defaultSettlementLimit = 20
	maxSettlementLimit     = 200
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/wallet", s.handleWallet)
	mux.HandleFunc("POST /api/wallet/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/identity", s.handleRename)
	mux.HandleFunc("GET /api/draft", s.handleGetDraft)
	mux.HandleFunc("PUT /api/draft", s.handlePutDraft)
	mux.HandleFunc("POST /api/draft/submit", s.handleSubmitDraft)
	mux.HandleFunc("POST /api/transactions", s.handleSend)
	mux.HandleFunc("POST /api/mine", s.handleMine)
	mux.HandleFunc("GET /api/settlements", s.handleSettlements)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeCreated(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrMiningInFlight):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrTransport), errors.Is(err, gateway.ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	id := s.daemon.WalletID()
	if len(id) > 8 {
		id = id[:8]
	}
	writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"version":   "0.1.0",
		"wallet_id": id,
		"backend":   s.daemon.BackendURL(),
		"uptime_ms": s.daemon.Uptime().Milliseconds(),
	})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.daemon.Engine().Store().Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	e := s.daemon.Engine()
	if err := e.Refresh(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, e.Store().Snapshot())
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	e := s.daemon.Engine()
	if err := e.RenameIdentity(r.Context(), ledger.Identity(req.Username)); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, e.Store().Snapshot())
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.daemon.Engine().Draft())
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var d reconcile.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	s.daemon.Engine().SetDraft(d)
	writeJSON(w, d)
}

func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	ack, err := s.daemon.Engine().SubmitDraft(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeCreated(w, ack)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string           `json:"recipient"`
		Amount    *decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	if req.Amount == nil {
		writeError(w, 400, "amount is required")
		return
	}
	ack, err := s.daemon.Engine().SendTransaction(r.Context(), ledger.Identity(req.Recipient), *req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeCreated(w, ack)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	e := s.daemon.Engine()
	settlement, err := e.StartMining(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"settlement": settlement,
		"wallet":     e.Store().Snapshot(),
	})
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	limit := defaultSettlementLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, 400, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSettlementLimit)
	}
	recs, err := s.daemon.RecentSettlements(limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if recs == nil {
		writeJSON(w, []interface{}{})
		return
	}
	writeJSON(w, recs)
}
