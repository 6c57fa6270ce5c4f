package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"govchain/core"
	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/core/types"
	"govchain/native/governance"
	"govchain/storage"
)

const testSecret = "rpc-test-secret"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestNode(t *testing.T, clock *testClock) *core.Node {
	t.Helper()
	supply := new(uint256.Int).Mul(uint256.NewInt(500_000), uint256.NewInt(1_000_000_000_000_000_000))
	node, err := core.NewNode(storage.NewMemDB(), core.Config{
		ChainID:      1,
		Governor:     common.HexToAddress("0x0000000000000000000000000000000000000901"),
		Timelock:     common.HexToAddress("0x0000000000000000000000000000000000000902"),
		Token:        common.HexToAddress("0x0000000000000000000000000000000000000903"),
		Params:       common.HexToAddress("0x0000000000000000000000000000000000000904"),
		GovernorName: "Governor",
		TokenName:    "Gov",
		Governance:   governance.DefaultParams(),
		Minter:       common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		Allocations:  []core.Allocation{{Address: alice, Amount: supply, SelfDelegate: true}},
	}, core.WithClock(clock.Now))
	require.NoError(t, err)
	return node
}

func newTestServer(t *testing.T, cfg Config) (*Server, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
	return NewServer(newTestNode(t, clock), cfg, nil), clock
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "govchain",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func do(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestAccountEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/v1/accounts/"+alice.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, alice.Hex(), resp.Delegate)
	require.Equal(t, resp.Balance, resp.Votes)
	require.True(t, strings.HasPrefix(resp.Bech32, "gov1"))

	rec = do(t, srv, http.MethodGet, "/v1/accounts/nope", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthBindsCallerToTokenSubject(t *testing.T) {
	srv, _ := newTestServer(t, Config{RequireAuth: true, JWTSecret: testSecret, JWTIssuer: "govchain"})
	body := map[string]string{"delegatee": bob.Hex()}

	rec := do(t, srv, http.MethodPost, "/v1/delegate", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/delegate", body, map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	mismatch := map[string]string{"caller": bob.Hex(), "delegatee": bob.Hex()}
	rec = do(t, srv, http.MethodPost, "/v1/delegate", mismatch, map[string]string{"Authorization": bearer(t, alice.Hex())})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/delegate", body, map[string]string{"Authorization": bearer(t, alice.Hex())})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/accounts/"+alice.Hex(), nil, nil)
	var resp accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, bob.Hex(), resp.Delegate)
	require.Equal(t, "0", resp.Votes)
}

func TestProposalEndpoints(t *testing.T) {
	srv, clock := newTestServer(t, Config{})
	clock.now = clock.now.Add(time.Second)

	propose := map[string]interface{}{
		"caller":      bob.Hex(),
		"targets":     []string{"0x0000000000000000000000000000000000000904"},
		"values":      []string{"0"},
		"signatures":  []string{"setFeeTo(address)"},
		"calldatas":   []string{"0x" + strings.Repeat("00", 12) + strings.TrimPrefix(strings.ToLower(bob.Hex()), "0x")},
		"description": "route fees to bob",
	}
	rec := do(t, srv, http.MethodPost, "/v1/proposals", propose, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	propose["caller"] = alice.Hex()
	propose["values"] = []string{}
	rec = do(t, srv, http.MethodPost, "/v1/proposals", propose, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	propose["values"] = []string{"0"}
	rec = do(t, srv, http.MethodPost, "/v1/proposals", propose, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/proposals/1/state", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pending"`)

	rec = do(t, srv, http.MethodPost, "/v1/proposals/1/queue", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	clock.now = clock.now.Add(time.Second)
	rec = do(t, srv, http.MethodPost, "/v1/proposals/1/votes", map[string]interface{}{"caller": alice.Hex(), "support": true}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, srv, http.MethodPost, "/v1/proposals/1/votes", map[string]interface{}{"caller": alice.Hex(), "support": true}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/proposals/1/receipts/"+alice.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt receiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.True(t, receipt.HasVoted)

	rec = do(t, srv, http.MethodGet, "/v1/proposals/9", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/proposals/1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var proposal proposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposal))
	require.Equal(t, "active", proposal.State)
	require.Len(t, proposal.Actions, 1)
}

func TestTimelockEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/v1/timelock", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info timelockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "0x0000000000000000000000000000000000000901", strings.ToLower(info.Admin))

	call := map[string]interface{}{
		"caller":    alice.Hex(),
		"target":    "0x0000000000000000000000000000000000000904",
		"signature": "setFeeTo(address)",
		"eta":       uint64(1_800_000_000),
	}
	rec = do(t, srv, http.MethodPost, "/v1/timelock/queue", call, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/timelock/queued/0x1234", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/v1/timelock/queued/"+common.Hash{0x01}.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queued":false`)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1})
	rec := do(t, srv, http.MethodGet, "/v1/token/supply", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/v1/token/supply", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, srv, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", coreerrors.ErrAuthorization), http.StatusForbidden},
		{fmt.Errorf("x: %w", coreerrors.ErrInvalidSignature), http.StatusUnauthorized},
		{fmt.Errorf("x: %w", coreerrors.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", coreerrors.ErrStale), http.StatusGone},
		{fmt.Errorf("x: %w", coreerrors.ErrTiming), http.StatusTooEarly},
		{fmt.Errorf("x: %w", coreerrors.ErrVotingClosed), http.StatusConflict},
		{fmt.Errorf("x: %w", coreerrors.ErrDuplicateAction), http.StatusConflict},
		{fmt.Errorf("x: %w", coreerrors.ErrThreshold), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", coreerrors.ErrArityMismatch), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", errBadRequest), http.StatusBadRequest},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, statusFor(tc.err), tc.err.Error())
	}
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events/stream", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	body, err := json.Marshal(map[string]string{"caller": alice.Hex(), "delegatee": bob.Hex()})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/v1/delegate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeDelegateChanged, evt.Type)
}

func TestHubDropsEventsForSlowSubscribers(t *testing.T) {
	hub := NewHub(1)
	updates, cancel := hub.Subscribe()
	defer cancel()
	hub.Emit(events.ProposalExecuted{ID: 1})
	hub.Emit(events.ProposalExecuted{ID: 2})
	first := <-updates
	require.Equal(t, "1", first.Attributes["id"])
	select {
	case extra := <-updates:
		t.Fatalf("unexpected buffered event %v", extra)
	default:
	}
	hub.Close()
	_, ok := <-updates
	require.False(t, ok)
}
