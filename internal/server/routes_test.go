package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantwin/internal/fairness"
	"instantwin/internal/game"
	"instantwin/internal/ledger"
	"instantwin/internal/settings"
	"instantwin/internal/wallet"
)

type testServer struct {
	*FiberServer
	settings *settings.Static
}

func newTestServer(t *testing.T, adminBalance bool) *testServer {
	t.Helper()

	st := settings.NewStatic(0)
	w := wallet.NewMemory()
	orch, err := game.NewOrchestrator(game.Config{
		Games:    game.DefaultFactory(),
		Wallet:   w,
		Ledger:   ledger.NewMemory(),
		Settings: st,
		Sessions: fairness.NewManager(fairness.NewMemoryStore()),
		Rounds:   game.NewMemoryRoundStore(),
	})
	require.NoError(t, err)

	s := New(Deps{
		Games:        orch,
		Hub:          game.NewHub(),
		Settings:     st,
		Wallet:       w,
		AdminBalance: adminBalance,
	})
	s.RegisterFiberRoutes()
	return &testServer{FiberServer: s, settings: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func (s *testServer) fund(t *testing.T, player, amount string) {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/api/v1/players/"+player+"/balance", map[string]any{"balance": amount})
	require.Equal(t, http.StatusOK, status)
}

func round(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	r, ok := body["round"].(map[string]any)
	require.True(t, ok, "no round in %v", body)
	return r
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	g := body["game"].(map[string]any)
	assert.Equal(t, "running", g["status"])
	assert.Len(t, g["games"], 8)
	assert.Equal(t, "disabled", body["database"].(map[string]any)["status"])
	assert.Equal(t, "disabled", body["cache"].(map[string]any)["status"])
}

func TestListGames(t *testing.T) {
	s := newTestServer(t, true)

	status, body := s.do(t, http.MethodGet, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, status)
	games := body["games"].([]any)
	require.Len(t, games, 8)
	first := games[0].(map[string]any)
	assert.Equal(t, "aviator", first["game"])
	assert.Equal(t, true, first["enabled"])
}

func TestStartRound(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	status, body := s.do(t, http.MethodPost, "/api/v1/games/dice/rounds", map[string]any{
		"player_id": "p1",
		"stake":     "10",
		"threshold": 50,
		"over":      true,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, true, body["success"])

	r := round(t, body)
	assert.Equal(t, "SETTLED", r["status"])
	assert.Equal(t, float64(0), r["nonce"])
	assert.NotNil(t, r["outcome"])

	status, body = s.do(t, http.MethodGet, "/api/v1/players/p1/balance", nil)
	require.Equal(t, http.StatusOK, status)
	if r["won"] == true {
		assert.Equal(t, "109.90", body["balance"])
	} else {
		assert.Equal(t, "90.00", body["balance"])
	}

	status, body = s.do(t, http.MethodGet, "/api/v1/players/p1/history?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["settlements"], 1)
}

func TestPlayerKeysOutliveRequests(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "alice", "100.00")

	for _, player := range []string{"bob-with-a-longer-id", "zz", "carol"} {
		status, _ := s.do(t, http.MethodGet, "/api/v1/players/"+player+"/balance", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, _ := s.do(t, http.MethodPut, "/api/v1/admin/games/mines", map[string]any{"intensity": 0.5})
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodGet, "/api/v1/players/alice/balance", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.00", body["balance"])

	status, body = s.do(t, http.MethodPost, "/api/v1/games/dice/rounds", map[string]any{
		"player_id": "alice",
		"stake":     "10",
		"threshold": 50,
		"over":      true,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	snap, err := s.settings.Snapshot(t.Context(), "mines")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, snap.Intensity, 1e-12)
}

func TestStartRound_Errors(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "5.00")

	tests := []struct {
		name   string
		game   string
		body   map[string]any
		status int
		msg    string
	}{
		{"missing player", "dice", map[string]any{"stake": "1", "threshold": 50}, http.StatusBadRequest, "PlayerID is required"},
		{"bad threshold", "dice", map[string]any{"player_id": "p1", "stake": "1", "threshold": 100}, http.StatusBadRequest, "Threshold"},
		{"bad risk", "plinko", map[string]any{"player_id": "p1", "stake": "1", "rows": 8, "risk": "wild"}, http.StatusBadRequest, "Risk must be one of"},
		{"zero stake", "slots", map[string]any{"player_id": "p1", "stake": "0"}, http.StatusBadRequest, "stake"},
		{"unknown game", "roulette", map[string]any{"player_id": "p1", "stake": "1"}, http.StatusNotFound, "unknown game"},
		{"insufficient funds", "slots", map[string]any{"player_id": "p1", "stake": "10"}, http.StatusPaymentRequired, "insufficient funds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/v1/games/"+tt.game+"/rounds", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tt.msg)
		})
	}

	_, body := s.do(t, http.MethodGet, "/api/v1/players/p1/balance", nil)
	assert.Equal(t, "5.00", body["balance"])
}

func TestMinesRound(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	status, body := s.do(t, http.MethodPost, "/api/v1/games/mines/rounds", map[string]any{
		"player_id": "p1", "stake": "10", "mines": 3,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	r := round(t, body)
	id := r["id"].(string)
	assert.Equal(t, "ACTIVE", r["status"])
	assert.Nil(t, r["outcome"], "mine positions must stay hidden")

	status, _ = s.do(t, http.MethodPost, "/api/v1/games/mines/rounds", map[string]any{
		"player_id": "p1", "stake": "10", "mines": 3,
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body = s.do(t, http.MethodGet, "/api/v1/games/mines/rounds/active?player_id=p1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, round(t, body)["id"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/rounds/"+id+"?player_id=someone", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/rounds/"+id+"/actions", map[string]any{"player_id": "p1", "kind": "cashout"})
	assert.Equal(t, http.StatusBadRequest, status, "cash-out before any reveal")

	status, _ = s.do(t, http.MethodPost, "/api/v1/rounds/"+id+"/actions", map[string]any{"player_id": "p1", "kind": "jump"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/rounds/"+id+"/actions", map[string]any{"player_id": "p1", "kind": "reveal", "cell": 0})
	require.Equal(t, http.StatusOK, status, "%v", body)
	r = round(t, body)

	if r["status"] == "ACTIVE" {
		status, body = s.do(t, http.MethodPost, "/api/v1/rounds/"+id+"/actions", map[string]any{"player_id": "p1", "kind": "cashout"})
		require.Equal(t, http.StatusOK, status)
		r = round(t, body)
		assert.Equal(t, true, r["won"])
	}
	assert.Equal(t, "SETTLED", r["status"])
	assert.NotNil(t, r["outcome"])

	status, _ = s.do(t, http.MethodPost, "/api/v1/rounds/"+id+"/actions", map[string]any{"player_id": "p1", "kind": "reveal", "cell": 1})
	assert.Equal(t, http.StatusConflict, status)
}

func TestFairness(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	status, body := s.do(t, http.MethodGet, "/api/v1/fairness/limbo/p1", nil)
	require.Equal(t, http.StatusOK, status)
	commitment := body["commitment"].(map[string]any)
	assert.Equal(t, float64(0), commitment["nonce"])
	hash := commitment["server_seed_hash"].(string)

	status, body = s.do(t, http.MethodPost, "/api/v1/games/limbo/rounds", map[string]any{
		"player_id": "p1", "stake": "1", "target": 2,
	})
	require.Equal(t, http.StatusOK, status)
	id := round(t, body)["id"].(string)
	assert.Equal(t, hash, round(t, body)["server_seed_hash"])

	status, body = s.do(t, http.MethodPost, "/api/v1/fairness/limbo/p1/rotate", map[string]any{"client_seed": "lucky"})
	require.Equal(t, http.StatusOK, status)
	revealed := body["revealed"].(map[string]any)
	assert.Equal(t, hash, revealed["server_seed_hash"])
	assert.Equal(t, "lucky", body["commitment"].(map[string]any)["client_seed"])

	status, body = s.do(t, http.MethodPost, "/api/v1/fairness/verify", map[string]any{
		"round_id": id, "server_seed": revealed["server_seed"],
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	v := body["verification"].(map[string]any)
	assert.Equal(t, true, v["valid"])

	status, _ = s.do(t, http.MethodPost, "/api/v1/fairness/verify", map[string]any{"round_id": id})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/fairness/verify", map[string]any{"round_id": "nope", "server_seed": "abcd"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRotateRefusedWhileRoundOpen(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	status, _ := s.do(t, http.MethodPost, "/api/v1/games/penalty/rounds", map[string]any{"player_id": "p1", "stake": "1"})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/fairness/penalty/p1/rotate", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/api/v1/fairness/dice/p1/rotate", nil)
	assert.Equal(t, http.StatusOK, status, "other games rotate freely")
}

func TestAdminGameSettings(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	status, body := s.do(t, http.MethodPut, "/api/v1/admin/games/dice", map[string]any{"enabled": false, "intensity": 0.4})
	require.Equal(t, http.StatusOK, status, "%v", body)
	snap := body["settings"].(map[string]any)
	assert.Equal(t, false, snap["enabled"])
	assert.Equal(t, 0.4, snap["intensity"])

	status, _ = s.do(t, http.MethodPost, "/api/v1/games/dice/rounds", map[string]any{"player_id": "p1", "stake": "1", "threshold": 50})
	assert.Equal(t, http.StatusForbidden, status)

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{"intensity above one", "/api/v1/admin/games/dice", map[string]any{"intensity": 1.5}, http.StatusBadRequest},
		{"empty update", "/api/v1/admin/games/dice", map[string]any{}, http.StatusBadRequest},
		{"unknown game", "/api/v1/admin/games/roulette", map[string]any{"enabled": true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestBalanceOverride(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		status, _ := s.do(t, http.MethodPost, "/api/v1/players/p1/balance", map[string]any{"balance": "10"})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("rejects fractions of a cent", func(t *testing.T) {
		s := newTestServer(t, true)
		status, body := s.do(t, http.MethodPost, "/api/v1/players/p1/balance", map[string]any{"balance": "10.001"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.True(t, strings.Contains(body["error"].(string), "cents"))
	})

	t.Run("history limit", func(t *testing.T) {
		s := newTestServer(t, true)
		status, _ := s.do(t, http.MethodGet, "/api/v1/players/p1/history?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestPublicError(t *testing.T) {
	status, msg := publicError(io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)

	status, msg = publicError(game.ErrLedgerWrite)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, game.ErrLedgerWrite.Error(), msg)
}

// wsConn counts frames and overlapping writes.
type wsConn struct {
	frames   atomic.Int32
	writing  atomic.Int32
	overlaps atomic.Int32
}

func (c *wsConn) WriteMessage(int, []byte) error {
	if c.writing.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	time.Sleep(50 * time.Microsecond)
	c.writing.Add(-1)
	c.frames.Add(1)
	return nil
}

func (c *wsConn) SetWriteDeadline(time.Time) error { return nil }
func (c *wsConn) Close() error                     { return nil }

func TestWebSocketRepliesShareTheFeedWriter(t *testing.T) {
	s := newTestServer(t, true)
	s.fund(t, "p1", "100.00")

	hub := game.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	conn := &wsConn{}
	client := hub.RegisterClient(conn, "p1", nil)
	require.NotNil(t, client)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, time.Millisecond)

	r, err := s.games.Start(t.Context(), "p1", game.GameTypeDice, game.Bet{
		Stake:     decimal.NewFromInt(1),
		Threshold: 50,
		Over:      true,
	})
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			hub.PublishSettlement(game.SettlementMessage{RoundID: r.ID, PlayerID: "p1", Game: r.Game})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.wsRound(client, r, nil)
		}
	}()
	wg.Wait()

	require.Eventually(t, func() bool { return conn.frames.Load() == 2*n }, 2*time.Second, time.Millisecond)
	assert.Zero(t, conn.overlaps.Load())
}
