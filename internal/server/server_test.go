package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"umanity/internal/chain"
	"umanity/internal/config"
	"umanity/internal/donate"
	"umanity/internal/idempotency"
	"umanity/internal/orchestrator"
	"umanity/internal/stats"
	"umanity/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var donor = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fixture struct {
	srv      *Server
	provider *wallet.FakeProvider
	reader   *chain.FakeReader
	handler  http.Handler
}

func newFixture(t *testing.T, hmacSecret string) *fixture {
	t.Helper()

	cfg := &config.AppConfig{
		Deployment: config.DeploymentConfig{ChainID: 84532},
		Service: config.ServiceConfig{
			HTTPPort:          0,
			HMACSecret:        hmacSecret,
			HMACClockSkew:     time.Minute,
			IdempotencyWindow: time.Minute,
		},
		Chain: config.ChainConfig{TokenDecimals: 6},
	}

	provider := wallet.NewFakeProvider(donor.Hex())
	reader := chain.NewFakeReader()
	reader.Balances[donor] = big.NewInt(10_000_000)
	reader.Native[donor] = big.NewInt(2_000_000_000_000_000)

	sessions := wallet.NewSessionProvider(provider)
	orch := orchestrator.New(provider, cfg.Deployment.ChainID, nil)
	tracker := orchestrator.NewTracker(provider, orchestrator.ConfirmPolicy{
		Mode:        orchestrator.ConfirmFixedDelay,
		SingleDelay: time.Millisecond,
		BatchDelay:  time.Millisecond,
	}, nil)
	recon := stats.NewReconciler(reader, 6, nil)

	svc, err := donate.NewService(donate.Config{
		ChainID:         cfg.Deployment.ChainID,
		DonationAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		TokenAddress:    common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TokenDecimals:   6,
		SettleBudget:    time.Second,
	}, reader, orch, tracker, recon, nil)
	require.NoError(t, err)

	srv := NewServer(cfg, sessions, svc, recon, reader, idempotency.NewMemoryStore(), nil)
	return &fixture{srv: srv, provider: provider, reader: reader, handler: srv.httpServer.Handler}
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		blob, _ := json.Marshal(body)
		reader = bytes.NewReader(blob)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func idemKey(key string) map[string]string {
	return map[string]string{"X-Idempotency-Key": key}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodPost, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, donor.Hex(), sess.Primary)
	assert.Equal(t, donor.Hex(), sess.Signer)
	assert.False(t, sess.HasSecondary)

	rec = f.do(http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/session", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionNotFoundWithoutAccounts(t *testing.T) {
	f := newFixture(t, "")
	f.provider.Accounts = nil

	rec := f.do(http.MethodGet, "/api/v1/session", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionConnectRejected(t *testing.T) {
	f := newFixture(t, "")
	f.provider.RejectNext = true

	rec := f.do(http.MethodPost, "/api/v1/session", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user_rejected", resp.Code)
}

func TestDonateRandomNativeAccepted(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("k1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestDonateReplayServedFromCache(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	body := map[string]string{"asset": "token", "amount": "2.50"}
	first := f.do(http.MethodPost, "/api/v1/donations/random", body, idemKey("replay-1"))
	require.Equal(t, http.StatusAccepted, first.Code)

	sends := f.provider.RequestCount("wallet_sendCalls")

	second := f.do(http.MethodPost, "/api/v1/donations/random", body, idemKey("replay-1"))
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

	// Replay must not touch the wallet again.
	assert.Equal(t, sends, f.provider.RequestCount("wallet_sendCalls"))
}

func TestDonateWithoutSession(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("k2"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDonateWithoutIdempotencyKey(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDonateInsufficientFunds(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)
	f.reader.Balances[donor] = big.NewInt(0)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "token", "amount": "1"}, idemKey("k3"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_funds", resp.Code)
}

func TestDonateUserRejected(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	// First donation memoizes the capability probe so the rejection flag
	// lands on the submission itself.
	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("warm"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.provider.RejectNext = true
	rec = f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("rejected"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDonateBadAmount(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "token", "amount": "abc"}, idemKey("k4"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDonateToPool(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	pool := uint8(1)
	rec := f.do(http.MethodPost, "/api/v1/donations/pool", map[string]interface{}{"pool": pool, "amount": "5"}, idemKey("k5"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/donations/pool", map[string]string{"amount": "5"}, idemKey("k6"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplication(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/applications", map[string]string{
		"name":     "Ada",
		"story":    "Needs a laptop",
		"proofUrl": "https://example.org/proof",
	}, idemKey("a1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/applications", map[string]string{"name": "Ada"}, idemKey("a2"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDonationStatusEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("s1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = f.do(http.MethodGet, "/api/v1/donations/"+resp.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/donations/0xunknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.reader.Donors[donor] = chain.DonorStats{
		TotalDonated:  big.NewInt(3_000_000),
		DonationCount: big.NewInt(3),
		Rank:          big.NewInt(7),
	}

	rec := f.do(http.MethodGet, "/api/v1/stats?donor="+donor.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "3.00", snap.Donor.TotalDonated)
	assert.Equal(t, "#7", snap.Donor.Rank)

	rec = f.do(http.MethodGet, "/api/v1/stats?donor=nonsense", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPoolsEndpoint(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/api/v1/pools", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Education")
}

func TestRecipientsEndpoint(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/api/v1/recipients", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0x40ceeEdE9fA9ee09e594aFFb63CFc4994aF5B14e")
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHMACRequiredWhenConfigured(t *testing.T) {
	f := newFixture(t, "top-secret")
	f.connect(t)

	rec := f.do(http.MethodPost, "/api/v1/donations/random", map[string]string{"asset": "native"}, idemKey("h1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/api/v1/health", nil, map[string]string{"X-Request-Id": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))

	rec = f.do(http.MethodGet, "/api/v1/health", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
