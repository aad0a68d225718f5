// Package server exposes the relay over HTTP: session management, donation
// submission, and read-only stats.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"umanity/internal/chain"
	"umanity/internal/config"
	"umanity/internal/contract"
	"umanity/internal/donate"
	"umanity/internal/hmacauth"
	"umanity/internal/idempotency"
	"umanity/internal/orchestrator"
	"umanity/internal/stats"
	"umanity/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Server struct {
	cfg         *config.AppConfig
	sessions    *wallet.SessionProvider
	donations   *donate.Service
	recon       *stats.Reconciler
	reader      chain.Reader
	store       idempotency.Store
	hmac        *hmacauth.Verifier
	httpServer  *http.Server
	metrics     *metricsRegistry
	log         *zap.Logger
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.AppConfig, sessions *wallet.SessionProvider, donations *donate.Service, recon *stats.Reconciler, reader chain.Reader, store idempotency.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		sessions:  sessions,
		donations: donations,
		recon:     recon,
		reader:    reader,
		store:     store,
		metrics:   newMetricsRegistry(),
		log:       log,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Service.HMACSecret,
			MaxSkew: cfg.Service.HMACClockSkew,
		},
	}

	if checker, ok := reader.(chain.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	donations.OnSettled = func(status donate.Status) {
		s.metrics.incSettlement(string(status))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/session", s.handleSession)
	mux.Handle("/api/v1/donations/random", s.hmac.Middleware(http.HandlerFunc(s.handleDonateRandom)))
	mux.Handle("/api/v1/donations/pool", s.hmac.Middleware(http.HandlerFunc(s.handleDonatePool)))
	mux.Handle("/api/v1/applications", s.hmac.Middleware(http.HandlerFunc(s.handleApply)))
	mux.HandleFunc("/api/v1/donations/", s.handleDonationStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/pools", s.handlePools)
	mux.HandleFunc("/api/v1/recipients", s.handleRecipients)
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.Handle("/api/v1/metrics", s.metrics.handler())

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           s.requestMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info("API listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type sessionResponse struct {
	Primary      string `json:"primary"`
	Secondary    string `json:"secondary,omitempty"`
	HasSecondary bool   `json:"hasSecondary"`
	Signer       string `json:"signer"`
}

type donateRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount,omitempty"`
	Pool   *uint8 `json:"pool,omitempty"`
}

type applyRequest struct {
	Name     string `json:"name"`
	Story    string `json:"story"`
	ProofURL string `json:"proofUrl"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func sessionJSON(sess *wallet.Session) sessionResponse {
	resp := sessionResponse{
		Primary:      sess.Primary.Hex(),
		HasSecondary: sess.HasSecondary,
		Signer:       sess.Signer().Hex(),
	}
	if sess.HasSecondary {
		resp.Secondary = sess.Secondary.Hex()
	}
	return resp
}

// handleSession multiplexes the session resource: POST connects (may
// prompt), GET resumes silently, DELETE forgets.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		sess, err := s.sessions.Connect(r.Context())
		if err != nil {
			s.metrics.incSession("failed")
			s.writeError(w, err)
			return
		}
		s.metrics.incSession("connected")
		writeJSON(w, http.StatusOK, sessionJSON(sess))

	case http.MethodGet:
		sess, ok := s.sessions.Session()
		if !ok {
			var err error
			sess, err = s.sessions.Resume(r.Context())
			if err != nil {
				s.writeError(w, err)
				return
			}
		}
		if sess == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no active session", Code: "no_session"})
			return
		}
		writeJSON(w, http.StatusOK, sessionJSON(sess))

	case http.MethodDelete:
		s.sessions.Disconnect()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDonateRandom(w http.ResponseWriter, r *http.Request) {
	s.handleSubmission(w, r, "random", func(ctx context.Context, signer common.Address, req donateRequest) (orchestrator.SubmissionResult, error) {
		switch req.Asset {
		case "", "native":
			// nil selects the configured one-tap value.
			return s.donations.DonateRandomNative(ctx, signer, nil)
		case "token":
			amount, err := donate.ParseAmount(req.Amount, s.cfg.Chain.TokenDecimals)
			if err != nil {
				return orchestrator.SubmissionResult{}, err
			}
			return s.donations.DonateRandomToken(ctx, signer, amount)
		default:
			return orchestrator.SubmissionResult{}, &badRequestError{msg: "asset must be native or token"}
		}
	})
}

func (s *Server) handleDonatePool(w http.ResponseWriter, r *http.Request) {
	s.handleSubmission(w, r, "pool", func(ctx context.Context, signer common.Address, req donateRequest) (orchestrator.SubmissionResult, error) {
		if req.Pool == nil {
			return orchestrator.SubmissionResult{}, &badRequestError{msg: "pool is required"}
		}
		amount, err := donate.ParseAmount(req.Amount, s.cfg.Chain.TokenDecimals)
		if err != nil {
			return orchestrator.SubmissionResult{}, err
		}
		return s.donations.DonateToPool(ctx, signer, *req.Pool, amount)
	})
}

// handleSubmission is the shared shape of donation POSTs: idempotency
// check, session check, flow-specific submit, replay store.
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request, flow string, submit func(context.Context, common.Address, donateRequest) (orchestrator.SubmissionResult, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	key, done := s.checkIdempotency(w, r)
	if done {
		return
	}

	sess, ok := s.sessions.Session()
	if !ok {
		s.metrics.incDonation(flow, "no_session")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "connect a wallet session first", Code: "no_session"})
		return
	}

	var req donateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json payload", Code: "bad_request"})
		return
	}

	result, err := submit(ctx, sess.Signer(), req)
	if err != nil {
		s.metrics.incDonation(flow, "refused")
		s.writeError(w, err)
		return
	}

	resp := submitResponse{ID: result.ID, Kind: result.Kind.String(), Status: string(donate.StatusPending)}
	body := s.remember(ctx, key, http.StatusAccepted, resp)
	s.metrics.incDonation(flow, "accepted")
	writeRaw(w, http.StatusAccepted, body)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	key, done := s.checkIdempotency(w, r)
	if done {
		return
	}

	sess, ok := s.sessions.Session()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "connect a wallet session first", Code: "no_session"})
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json payload", Code: "bad_request"})
		return
	}

	result, err := s.donations.ApplyAsRecipient(ctx, sess.Signer(), req.Name, req.Story, req.ProofURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := submitResponse{ID: result.ID, Kind: result.Kind.String(), Status: string(donate.StatusPending)}
	body := s.remember(ctx, key, http.StatusAccepted, resp)
	writeRaw(w, http.StatusAccepted, body)
}

func (s *Server) handleDonationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/donations/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown submission", Code: "not_found"})
		return
	}

	out, ok := s.donations.Outcome(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown submission", Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var donor *common.Address
	if raw := r.URL.Query().Get("donor"); raw != "" {
		if !common.IsHexAddress(raw) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "donor must be a hex address", Code: "bad_request"})
			return
		}
		addr := common.HexToAddress(raw)
		donor = &addr
	} else if sess, ok := s.sessions.Session(); ok {
		addr := sess.Signer()
		donor = &addr
	}

	snapshot, err := s.recon.Refresh(r.Context(), donor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pools, err := s.recon.Pools(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pools": pools})
}

func (s *Server) handleRecipients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	recipients, err := s.reader.Recipients(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]string, len(recipients))
	for i, a := range recipients {
		out[i] = a.Hex()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recipients": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	healthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{Connected: true}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			healthy = false
		} else {
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	}

	_, hasSession := s.sessions.Session()

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, struct {
		Status  string      `json:"status"`
		RPC     interface{} `json:"rpc"`
		Session bool        `json:"session"`
	}{Status: status, RPC: rpcInfo, Session: hasSession})
}

// checkIdempotency serves a cached replay when the key was seen before.
// It reports done=true when the response has already been written.
func (s *Server) checkIdempotency(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-Idempotency-Key header", Code: "bad_request"})
		return "", true
	}
	if existing, _ := s.store.Lookup(r.Context(), key); existing != nil {
		s.metrics.incReplay()
		writeRaw(w, existing.Status, existing.Body)
		return key, true
	}
	return key, false
}

func (s *Server) remember(ctx context.Context, key string, status int, resp interface{}) []byte {
	body, _ := json.Marshal(resp)
	err := s.store.Remember(ctx, key, idempotency.Replay{
		Status:    status,
		Body:      body,
		StoredAt:  time.Now(),
		ExpiresAt: time.Now().Add(s.cfg.Service.IdempotencyWindow),
	})
	if err != nil {
		s.log.Warn("idempotency store write failed", zap.Error(err))
	}
	return body
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// writeError maps domain errors onto the HTTP surface.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var badReq *badRequestError
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "wallet request was rejected", Code: "user_rejected"})
	case errors.Is(err, wallet.ErrNoAccounts):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "wallet exposed no accounts", Code: "no_accounts"})
	case errors.Is(err, orchestrator.ErrInsufficientFunds):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "insufficient_funds"})
	case errors.Is(err, orchestrator.ErrBatchUnsupported):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "wallet cannot execute atomic batches", Code: "batch_unsupported"})
	case errors.Is(err, contract.ErrEncoding), errors.As(err, &badReq):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
	default:
		s.log.Error("upstream failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream failure", Code: "network"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// requestMiddleware tags every request with an id and logs its outcome.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set("X-Request-Id", reqID)
		}
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.log.Info("request",
			zap.String("id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
