package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
	"github.com/unikron/intent-relay/queue"
	"github.com/unikron/intent-relay/quote"
)

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quote.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	route, err := s.quoter.GetQuote(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, route)
}

type createIntentRequest struct {
	Route *types.Route      `json:"route"`
	Trade *intent.TradeMeta `json:"trade"`
}

type sessionRecovery struct {
	SessionID string `json:"sessionId"`
}

type createIntentResponse struct {
	Intent          *types.TradeIntent `json:"intent"`
	IntentHash      string             `json:"intentHash"`
	Status          types.IntentStatus `json:"status"`
	ExpiresIn       int64              `json:"expiresIn"`
	SessionRecovery *sessionRecovery   `json:"sessionRecovery,omitempty"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Route == nil || req.Trade == nil {
		s.writeError(w, commonerrors.NewValidation("route and trade are required"))
		return
	}

	record, err := s.engine.CreateIntent(r.Context(), req.Route, req.Trade)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var recovery *sessionRecovery
	if s.sessions != nil {
		sessionID, err := s.sessions.Put(r.Context(), &types.SessionSnapshot{
			Intent: &record.Intent,
			Hash:   record.Hash,
			Route:  req.Route,
		})
		if err != nil {
			// Recovery is best effort; the intent itself is already durable.
			s.logger.WithField("error", err).Warn("Failed to save recovery session")
		} else {
			recovery = &sessionRecovery{SessionID: sessionID}
		}
	}

	s.writeJSON(w, http.StatusCreated, createIntentResponse{
		Intent:          &record.Intent,
		IntentHash:      record.Hash,
		Status:          record.Status,
		ExpiresIn:       record.Intent.TimeRemaining(time.Now()),
		SessionRecovery: recovery,
	})
}

type commitRequest struct {
	IntentHash  string `json:"intentHash"`
	Nonce       uint64 `json:"nonce"`
	Expiry      int64  `json:"expiry"`
	EnableRelay bool   `json:"enableRelay,omitempty"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
}

type commitResponse struct {
	Tx            string             `json:"tx"`
	IntentAccount string             `json:"intentAccount"`
	Bump          uint8              `json:"bump"`
	Status        types.IntentStatus `json:"status"`
	RelayQueued   bool               `json:"relayQueued,omitempty"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if !intent.ValidHash(req.IntentHash) {
		s.writeError(w, commonerrors.NewValidation("intentHash must be a 64-character hex string"))
		return
	}

	// The caller restates nonce and expiry so a stale or mixed-up hash is
	// caught before anything hits the chain.
	record, err := s.engine.Status(r.Context(), req.IntentHash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Nonce != record.Intent.Nonce {
		s.writeError(w, commonerrors.NewValidation("nonce does not match the stored intent"))
		return
	}
	if req.Expiry != record.Intent.Expiry {
		s.writeError(w, commonerrors.NewValidation("expiry does not match the stored intent"))
		return
	}

	outcome, err := s.engine.Commit(r.Context(), req.IntentHash)
	if err != nil {
		s.writeError(w, err)
		return
	}

	relayQueued := false
	if req.EnableRelay && s.jobs != nil {
		payload := map[string]string{"intentHash": req.IntentHash}
		if req.WebhookURL != "" {
			payload["webhookUrl"] = req.WebhookURL
		}
		if _, err := s.jobs.Enqueue(queue.JobRevealCheck, req.IntentHash,
			payload, queue.JobOptions{Delay: s.revealDelay}); err != nil {
			s.logger.WithField("error", err).Warn("Failed to enqueue reveal check")
		} else {
			relayQueued = true
		}
	}

	s.writeJSON(w, http.StatusOK, commitResponse{
		Tx:            outcome.Signature,
		IntentAccount: outcome.IntentAccount,
		Bump:          outcome.Bump,
		Status:        types.StatusCommitted,
		RelayQueued:   relayQueued,
	})
}

type revealRequest struct {
	Intent       *types.TradeIntent `json:"intent"`
	ExpectedHash string             `json:"expectedHash"`
	Signature    string             `json:"signature"`
	WebhookURL   string             `json:"webhookUrl,omitempty"`
}

type revealExecution struct {
	AmountOut   uint64 `json:"amountOut"`
	ProtocolFee uint64 `json:"protocolFee"`
	RelayerFee  uint64 `json:"relayerFee"`
}

type revealResponse struct {
	Success     bool            `json:"success"`
	Transaction string          `json:"transaction"`
	Execution   revealExecution `json:"execution"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req revealRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Intent == nil {
		s.writeError(w, commonerrors.NewValidation("intent is required"))
		return
	}
	if !intent.ValidHash(req.ExpectedHash) {
		s.writeError(w, commonerrors.NewValidation("expectedHash must be a 64-character hex string"))
		return
	}

	// The disclosed terms must hash to the identifier the caller committed.
	if computed := intent.HashIntent(req.Intent); computed != req.ExpectedHash {
		s.writeError(w, &commonerrors.IntegrityError{Expected: req.ExpectedHash, Computed: computed})
		return
	}

	result, err := s.engine.Reveal(r.Context(), req.ExpectedHash, req.Signature)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.jobs != nil {
		// The reveal happened, so any pending reveal check is moot.
		s.jobs.Cancel(req.ExpectedHash)

		if _, err := s.jobs.Enqueue(queue.JobNotify, req.ExpectedHash, map[string]interface{}{
			"intentHash": req.ExpectedHash,
			"event":      "revealed",
			"tx":         result.Transaction,
			"webhookUrl": req.WebhookURL,
		}, queue.JobOptions{}); err != nil {
			s.logger.WithField("error", err).Warn("Failed to enqueue notification")
		}
	}

	s.writeJSON(w, http.StatusOK, revealResponse{
		Success:     result.Success,
		Transaction: result.Transaction,
		Execution: revealExecution{
			AmountOut:   result.AmountOut,
			ProtocolFee: result.ProtocolFee,
			RelayerFee:  result.RelayerFee,
		},
	})
}

type statusResponse struct {
	IntentHash string                `json:"intentHash"`
	Status     types.IntentStatus    `json:"status"`
	Intent     types.TradeIntent     `json:"intent"`
	CreatedAt  time.Time             `json:"createdAt"`
	ExpiresIn  int64                 `json:"expiresIn"`
	IsExpired  bool                  `json:"isExpired"`
	Commit     *types.CommitRecord   `json:"commit,omitempty"`
	Reveal     *types.RevealRecord   `json:"reveal,omitempty"`
	Fees       *types.FeeSplitRecord `json:"fees,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["intentHash"]
	if !intent.ValidHash(hash) {
		s.writeError(w, commonerrors.NewValidation("intentHash must be a 64-character hex string"))
		return
	}

	record, err := s.engine.Status(r.Context(), hash)
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now()
	s.writeJSON(w, http.StatusOK, statusResponse{
		IntentHash: record.Hash,
		Status:     record.Status,
		Intent:     record.Intent,
		CreatedAt:  record.CreatedAt,
		ExpiresIn:  record.Intent.TimeRemaining(now),
		IsExpired:  record.Intent.Expired(now),
		Commit:     record.Commit,
		Reveal:     record.Reveal,
		Fees:       record.Fees,
	})
}

type recoverResponse struct {
	Recovered bool                   `json:"recovered"`
	Data      *types.SessionSnapshot `json:"data"`
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeError(w, commonerrors.NewNotFound("session", mux.Vars(r)["sessionId"]))
		return
	}

	snapshot, err := s.sessions.Get(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recoverResponse{Recovered: true, Data: snapshot})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if s.db != nil {
		if err := s.db.Healthy(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	s.writeJSON(w, status, body)
}

type feeMintRequest struct {
	TokenMint string `json:"tokenMint"`
}

func (s *Server) handleInitializeFees(w http.ResponseWriter, r *http.Request) {
	var req feeMintRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.TokenMint == "" {
		s.writeError(w, commonerrors.NewValidation("tokenMint is required"))
		return
	}

	sig, accounts, err := s.engine.InitializeFees(r.Context(), req.TokenMint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signature": sig,
		"accounts":  accounts,
	})
}

type settleFeesRequest struct {
	TokenMint string `json:"tokenMint"`
	FeeAmount uint64 `json:"feeAmount"`
}

func (s *Server) handleSettleFees(w http.ResponseWriter, r *http.Request) {
	var req settleFeesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.TokenMint == "" {
		s.writeError(w, commonerrors.NewValidation("tokenMint is required"))
		return
	}
	if req.FeeAmount == 0 {
		s.writeError(w, commonerrors.NewValidation("feeAmount must be positive"))
		return
	}

	sig, err := s.engine.SettleFees(r.Context(), req.TokenMint, req.FeeAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"signature": sig})
}

func (s *Server) handleFeeAccounts(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.FeeAccounts(r.Context(), mux.Vars(r)["tokenMint"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.writeJSON(w, http.StatusOK, queue.Stats{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.jobs.Stats())
}
