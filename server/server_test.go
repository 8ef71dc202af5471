package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
	"github.com/unikron/intent-relay/queue"
	"github.com/unikron/intent-relay/quote"
	"github.com/unikron/intent-relay/session"
	"github.com/unikron/intent-relay/solana"
)

var testHash = strings.Repeat("ab", 32)

// fakeEngine returns scripted results per operation.
type fakeEngine struct {
	createRecord *types.IntentRecord
	createErr    error
	commitErr    error
	revealResult *types.RevealResult
	revealErr    error
	statusRecord *types.IntentRecord
	statusErr    error
	settleErr    error
}

func (f *fakeEngine) CreateIntent(_ context.Context, route *types.Route, meta *intent.TradeMeta) (*types.IntentRecord, error) {
	return f.createRecord, f.createErr
}

func (f *fakeEngine) Commit(_ context.Context, hash string) (*solana.CommitOutcome, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return &solana.CommitOutcome{Signature: "commit-sig", IntentAccount: "pda", Bump: 254}, nil
}

func (f *fakeEngine) Reveal(_ context.Context, hash, sig string) (*types.RevealResult, error) {
	return f.revealResult, f.revealErr
}

func (f *fakeEngine) Status(_ context.Context, hash string) (*types.IntentRecord, error) {
	return f.statusRecord, f.statusErr
}

func (f *fakeEngine) FeeAccounts(_ context.Context, mint string) (*solana.FeeAccountState, error) {
	return &solana.FeeAccountState{
		Accounts:    &solana.FeeAccounts{},
		Bumps:       &solana.FeeBumps{},
		Initialized: true,
	}, nil
}

func (f *fakeEngine) InitializeFees(_ context.Context, mint string) (string, *solana.FeeAccounts, error) {
	return "init-sig", &solana.FeeAccounts{}, nil
}

func (f *fakeEngine) SettleFees(_ context.Context, mint string, feeAmount uint64) (string, error) {
	if f.settleErr != nil {
		return "", f.settleErr
	}
	return "settle-sig", nil
}

type fakeQuoter struct {
	route *types.Route
	err   error
}

func (f *fakeQuoter) GetQuote(_ context.Context, req *quote.Request) (*types.Route, error) {
	return f.route, f.err
}

type fakePinger struct{ err error }

func (f *fakePinger) Healthy(context.Context) error { return f.err }

func testRecord() *types.IntentRecord {
	return &types.IntentRecord{
		ID:     1,
		Hash:   testHash,
		Status: types.StatusDraft,
		Intent: types.TradeIntent{
			User:     "11111111111111111111111111111111",
			TokenIn:  "So11111111111111111111111111111111111111112",
			TokenOut: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			AmountIn: 100_000_000,
			MinOut:   90_000_000,
			Expiry:   time.Now().Add(time.Hour).Unix(),
			Nonce:    1,
		},
		CreatedAt: time.Now(),
	}
}

func newTestServer(engine IntentEngine, quoter Quoter, opts Options) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(engine, quoter, logger, opts)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHandleQuote(t *testing.T) {
	quoter := &fakeQuoter{route: &types.Route{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		InAmount:   "100000000",
		OutAmount:  "95000000",
		SwapMode:   "ExactIn",
	}}
	s := newTestServer(&fakeEngine{}, quoter, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/quote", quote.Request{
		InputMint:  "So11111111111111111111111111111111111111112",
		OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:     100_000_000,
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var route types.Route
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &route))
	assert.Equal(t, "95000000", route.OutAmount)
}

func TestHandleQuote_UpstreamDown(t *testing.T) {
	quoter := &fakeQuoter{err: commonerrors.NewUpstream("jupiter", assert.AnError)}
	s := newTestServer(&fakeEngine{}, quoter, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/quote", quote.Request{
		InputMint: "a", OutputMint: "b", Amount: 1,
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHandleCreateIntent(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	sessions := session.NewMemoryStore(time.Hour, logger)

	engine := &fakeEngine{createRecord: testRecord()}
	s := newTestServer(engine, &fakeQuoter{}, Options{Sessions: sessions})

	resp := doJSON(t, s, http.MethodPost, "/swap/intent", map[string]interface{}{
		"route": map[string]interface{}{
			"inputMint":  "So11111111111111111111111111111111111111112",
			"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"inAmount":   "100000000",
			"outAmount":  "95000000",
			"swapMode":   "ExactIn",
			"routePlan":  []interface{}{},
		},
		"trade": map[string]interface{}{
			"user":     "11111111111111111111111111111111",
			"tokenIn":  "So11111111111111111111111111111111111111112",
			"tokenOut": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"amountIn": 100000000,
			"minOut":   90000000,
			"expiry":   time.Now().Add(time.Hour).Unix(),
			"nonce":    1,
			"relayer":  "11111111111111111111111111111111",
		},
	})

	require.Equal(t, http.StatusCreated, resp.Code)
	var body createIntentResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, testHash, body.IntentHash)
	assert.Equal(t, types.StatusDraft, body.Status)
	require.NotNil(t, body.Intent)
	assert.Equal(t, uint64(100_000_000), body.Intent.AmountIn)
	require.NotNil(t, body.SessionRecovery)
	assert.NotEmpty(t, body.SessionRecovery.SessionID)
	assert.Positive(t, body.ExpiresIn)

	// The session can be recovered straight away.
	resp = doJSON(t, s, http.MethodGet, "/swap/recover/"+body.SessionRecovery.SessionID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var recovered recoverResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &recovered))
	assert.True(t, recovered.Recovered)
	require.NotNil(t, recovered.Data)
	assert.Equal(t, testHash, recovered.Data.Hash)
}

func TestHandleCreateIntent_MissingParts(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/intent", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleCreateIntent_UnknownFieldRejected(t *testing.T) {
	s := newTestServer(&fakeEngine{createRecord: testRecord()}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/intent", map[string]interface{}{
		"route": map[string]interface{}{}, "trade": map[string]interface{}{},
		"unexpected": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleCommit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	jobs := queue.New(logger, queue.Options{})
	jobs.Register(queue.JobRevealCheck, func(context.Context, *queue.Job) error { return nil })

	record := testRecord()
	s := newTestServer(&fakeEngine{statusRecord: record}, &fakeQuoter{}, Options{Jobs: jobs})

	resp := doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{
		IntentHash:  testHash,
		Nonce:       record.Intent.Nonce,
		Expiry:      record.Intent.Expiry,
		EnableRelay: true,
		WebhookURL:  "https://example.com/hooks/swap",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body commitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "commit-sig", body.Tx)
	assert.Equal(t, types.StatusCommitted, body.Status)
	assert.True(t, body.RelayQueued)

	// A delayed reveal check was scheduled.
	assert.Equal(t, 1, jobs.Stats().Delayed)
}

func TestHandleCommit_RelayDisabledSkipsQueue(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	jobs := queue.New(logger, queue.Options{})
	jobs.Register(queue.JobRevealCheck, func(context.Context, *queue.Job) error { return nil })

	record := testRecord()
	s := newTestServer(&fakeEngine{statusRecord: record}, &fakeQuoter{}, Options{Jobs: jobs})

	resp := doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{
		IntentHash: testHash,
		Nonce:      record.Intent.Nonce,
		Expiry:     record.Intent.Expiry,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body commitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.RelayQueued)
	assert.Zero(t, jobs.Stats().Delayed)
}

func TestHandleCommit_NonceMismatch(t *testing.T) {
	record := testRecord()
	s := newTestServer(&fakeEngine{statusRecord: record}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{
		IntentHash: testHash,
		Nonce:      record.Intent.Nonce + 1,
		Expiry:     record.Intent.Expiry,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{
		IntentHash: testHash,
		Nonce:      record.Intent.Nonce,
		Expiry:     record.Intent.Expiry + 60,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleCommit_BadHash(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{IntentHash: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleCommit_Conflict(t *testing.T) {
	record := testRecord()
	engine := &fakeEngine{
		statusRecord: record,
		commitErr:    commonerrors.NewConflict("ALREADY_COMMITTED", "intent is already committed", "tx123"),
	}
	s := newTestServer(engine, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/commit/simple", commitRequest{
		IntentHash: testHash,
		Nonce:      record.Intent.Nonce,
		Expiry:     record.Intent.Expiry,
	})
	require.Equal(t, http.StatusConflict, resp.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ALREADY_COMMITTED", body.Code)
	assert.Equal(t, "tx123", body.Reference)
	assert.NotEmpty(t, body.Timestamp)
}

// testRevealRequest discloses testRecord's terms under their real hash.
func testRevealRequest() revealRequest {
	ti := testRecord().Intent
	return revealRequest{
		Intent:       &ti,
		ExpectedHash: intent.HashIntent(&ti),
		Signature:    strings.Repeat("cd", 64),
	}
}

func TestHandleReveal(t *testing.T) {
	engine := &fakeEngine{revealResult: &types.RevealResult{
		Transaction: "reveal-sig",
		Success:     true,
		AmountOut:   96_000_000,
		ProtocolFee: 100_000,
		RelayerFee:  5_000,
	}}
	s := newTestServer(engine, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/reveal", testRevealRequest())
	require.Equal(t, http.StatusOK, resp.Code)

	var body revealResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "reveal-sig", body.Transaction)
	assert.Equal(t, uint64(96_000_000), body.Execution.AmountOut)
	assert.Equal(t, uint64(100_000), body.Execution.ProtocolFee)
	assert.Equal(t, uint64(5_000), body.Execution.RelayerFee)
}

func TestHandleReveal_HashMismatch(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	req := testRevealRequest()
	req.ExpectedHash = testHash

	resp := doJSON(t, s, http.MethodPost, "/swap/reveal", req)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "HASH_MISMATCH", body.Code)
}

func TestHandleReveal_MissingIntent(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/swap/reveal", revealRequest{
		ExpectedHash: testHash,
		Signature:    strings.Repeat("cd", 64),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleReveal_StateErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not committed", commonerrors.NewState("NOT_COMMITTED", "not committed"), http.StatusBadRequest},
		{"expired", commonerrors.NewIntentExpired(1), http.StatusBadRequest},
		{"hash mismatch", &commonerrors.IntegrityError{Expected: "a", Computed: "b"}, http.StatusBadRequest},
		{"unknown", commonerrors.NewNotFound("intent", testHash), http.StatusNotFound},
		{"execution", commonerrors.NewExecution("reveal", assert.AnError), http.StatusInternalServerError},
		{"rpc down", commonerrors.NewUpstream("solana", assert.AnError), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeEngine{revealErr: tc.err}, &fakeQuoter{}, Options{})
			resp := doJSON(t, s, http.MethodPost, "/swap/reveal", testRevealRequest())
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestHandleStatus(t *testing.T) {
	record := testRecord()
	record.Status = types.StatusRevealed
	record.Reveal = &types.RevealRecord{Tx: "reveal-sig", Successful: true, AmountOut: 96_000_000}
	record.Fees = &types.FeeSplitRecord{Liquidity: 50_000, Protocol: 30_000, Bounty: 20_000}

	s := newTestServer(&fakeEngine{statusRecord: record}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodGet, "/swap/status/"+testHash, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, types.StatusRevealed, body.Status)
	require.NotNil(t, body.Reveal)
	assert.Equal(t, uint64(96_000_000), body.Reveal.AmountOut)
	require.NotNil(t, body.Fees)
	assert.Equal(t, uint64(20_000), body.Fees.Bounty)
	assert.False(t, body.IsExpired)
}

func TestHandleStatus_ExpiredFlag(t *testing.T) {
	record := testRecord()
	record.Intent.Expiry = time.Now().Add(-time.Minute).Unix()

	s := newTestServer(&fakeEngine{statusRecord: record}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodGet, "/swap/status/"+testHash, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.IsExpired)
	assert.Zero(t, body.ExpiresIn)
}

func TestHandleStatus_Unknown(t *testing.T) {
	engine := &fakeEngine{statusErr: commonerrors.NewNotFound("intent", testHash)}
	s := newTestServer(engine, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodGet, "/swap/status/"+testHash, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleRecover_Unknown(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{
		Sessions: session.NewMemoryStore(time.Hour, logger),
	})

	resp := doJSON(t, s, http.MethodGet, "/swap/recover/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWriteError_SessionExpired(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	recorder := httptest.NewRecorder()
	s.writeError(recorder, pkgerrors.Wrap(commonerrors.ErrSessionExpired, "session abc"))
	require.Equal(t, http.StatusNotFound, recorder.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "SESSION_EXPIRED", body.Code)
	assert.NotEmpty(t, body.Timestamp)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{DB: &fakePinger{}})
	resp := doJSON(t, s, http.MethodGet, "/swap/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	s = newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{DB: &fakePinger{err: assert.AnError}})
	resp = doJSON(t, s, http.MethodGet, "/swap/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHandleFees(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodPost, "/fee/initialize-accounts",
		feeMintRequest{TokenMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, s, http.MethodPost, "/fee/settle",
		settleFeesRequest{TokenMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", FeeAmount: 1000})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, s, http.MethodGet, "/fee/accounts/EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, s, http.MethodPost, "/fee/settle", settleFeesRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, s, http.MethodPost, "/fee/settle",
		settleFeesRequest{TokenMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleQueueStats_NoQueue(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodGet, "/queue/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var stats queue.Stats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Zero(t, stats.Waiting)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(&fakeEngine{}, &fakeQuoter{}, Options{})

	resp := doJSON(t, s, http.MethodGet, "/swap/health", nil)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/swap/health", nil)
	req.Header.Set("X-Request-Id", "client-id")
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, "client-id", recorder.Header().Get("X-Request-Id"))
}
