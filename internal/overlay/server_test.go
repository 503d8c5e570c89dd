package overlay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"focuswatch/internal/benchmark"
	"focuswatch/internal/champselect"
	"focuswatch/internal/game"
	"focuswatch/internal/monitor"
)

type fakeController struct {
	bus *monitor.Bus

	mu        sync.Mutex
	running   bool
	refreshes int
	role      game.Role
	bracket   game.Bracket
}

func newFakeController() *fakeController {
	return &fakeController{bus: monitor.NewBus(zap.NewNop()), role: game.RoleMid, bracket: game.BracketPlatinum}
}

func (f *fakeController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeController) ForceRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeController) SetRoleAndBracket(role game.Role, bracket game.Bracket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.role, f.bracket = role, bracket
}

func (f *fakeController) Preferences() (game.Role, game.Bracket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.role, f.bracket
}

func (f *fakeController) State() monitor.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return monitor.State{
		Phase:    game.PhaseLobby,
		Target:   game.TargetClientAPI,
		Running:  f.running,
		Role:     f.role,
		BaseRole: f.role,
		Bracket:  f.bracket,
	}
}

func (f *fakeController) Subscribe(fn monitor.Handler) func() {
	return f.bus.Subscribe(fn)
}

type fakeImports struct {
	mu      sync.Mutex
	enabled bool
}

func (f *fakeImports) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakeImports) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeController, *fakeImports, *Server) {
	ctrl := newFakeController()
	imports := &fakeImports{}
	s := New(ctrl, imports, nil, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, ctrl, imports, s
}

func decodeState(t *testing.T, resp *http.Response) StateResponse {
	t.Helper()
	defer resp.Body.Close()
	var st struct {
		Phase      string `json:"phase"`
		Target     string `json:"pollingTarget"`
		Running    bool   `json:"running"`
		Role       string `json:"role"`
		Bracket    string `json:"bracket"`
		AutoImport bool   `json:"autoImport"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "Lobby", st.Phase)
	assert.Equal(t, "ClientApi", st.Target)

	role, _ := game.ParseRole(st.Role)
	bracket, _ := game.ParseBracket(st.Bracket)
	return StateResponse{
		State:      monitor.State{Running: st.Running, Role: role, Bracket: bracket},
		AutoImport: st.AutoImport,
	}
}

func TestServer_State(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	st := decodeState(t, resp)
	assert.False(t, st.Running)
	assert.Equal(t, game.RoleMid, st.Role)
}

func TestServer_Commands(t *testing.T) {
	ts, ctrl, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/commands/start", "application/json", nil)
	require.NoError(t, err)
	assert.True(t, decodeState(t, resp).Running)

	resp, err = http.Post(ts.URL+"/commands/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	ctrl.mu.Lock()
	assert.Equal(t, 1, ctrl.refreshes)
	ctrl.mu.Unlock()

	resp, err = http.Post(ts.URL+"/commands/stop", "application/json", nil)
	require.NoError(t, err)
	assert.False(t, decodeState(t, resp).Running)
}

func putSettings(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url+"/settings", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServer_Settings(t *testing.T) {
	ts, ctrl, imports, _ := newTestServer(t)

	resp := putSettings(t, ts.URL, `{"role":"UTILITY","autoImport":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeState(t, resp)

	assert.Equal(t, game.RoleSupport, st.Role)
	assert.Equal(t, game.BracketPlatinum, st.Bracket, "bracket unchanged when omitted")
	assert.True(t, st.AutoImport)
	assert.True(t, imports.Enabled())
	assert.Equal(t, game.RoleSupport, ctrl.State().Role)
}

func TestServer_SettingsRejectsBadInput(t *testing.T) {
	ts, ctrl, imports, _ := newTestServer(t)

	tests := []string{
		`{"role":"roamer"}`,
		`{"bracket":"wood"}`,
		`not json`,
	}
	for _, body := range tests {
		resp := putSettings(t, ts.URL, body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	assert.Equal(t, game.RoleMid, ctrl.State().Role)
	assert.False(t, imports.Enabled())
}

type savedPreferences struct {
	role       game.Role
	bracket    game.Bracket
	autoImport bool
}

type fakeStore struct {
	mu    sync.Mutex
	saved []savedPreferences
	err   error
}

func (f *fakeStore) UpdatePreferences(role game.Role, bracket game.Bracket, autoImport bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, savedPreferences{role, bracket, autoImport})
	return nil
}

func TestServer_SettingsGoThroughStore(t *testing.T) {
	ctrl := newFakeController()
	store := &fakeStore{}
	s := New(ctrl, &fakeImports{}, store, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Close()

	resp := putSettings(t, ts.URL, `{"bracket":"gold"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	store.mu.Lock()
	assert.Equal(t, []savedPreferences{{game.RoleMid, game.BracketGold, false}}, store.saved)
	store.mu.Unlock()

	store.mu.Lock()
	store.err = errors.New("disk full")
	store.mu.Unlock()
	resp = putSettings(t, ts.URL, `{"autoImport":true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

const topLaneSession = `{
	"localPlayerCellId": 1,
	"myTeam": [{"cellId": 1, "championId": 0, "assignedPosition": "TOP"}],
	"actions": [[{"actorCellId": 1, "championId": 266, "type": "pick", "completed": true}]]
}`

type stubClient struct {
	mu    sync.Mutex
	phase string
	err   error
}

func (c *stubClient) set(phase string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase, c.err = phase, err
}

func (c *stubClient) GameflowPhase(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, c.err
}

func (c *stubClient) ChampSelectSession(ctx context.Context) (*champselect.Session, []byte, error) {
	sess, err := champselect.Parse([]byte(topLaneSession))
	return sess, []byte(topLaneSession), err
}

type noLive struct{}

func (noLive) Snapshot(ctx context.Context) (game.Snapshot, error) {
	return game.Snapshot{}, errors.New("connection refused")
}

type flatCurves struct{}

func (flatCurves) Curve(ctx context.Context, role game.Role, bracket game.Bracket) benchmark.Curve {
	return benchmark.Curve{{TimestampSeconds: 0, TargetRate: 6}}
}

func (flatCurves) Invalidate() {}

func TestServer_AutoImportToggleKeepsConfiguredRole(t *testing.T) {
	client := &stubClient{phase: "ChampSelect"}
	session, err := monitor.New(client, noLive{}, flatCurves{}, monitor.Options{
		PhaseInterval:       10 * time.Millisecond,
		ChampSelectInterval: 5 * time.Millisecond,
		LiveInterval:        5 * time.Millisecond,
		HeartbeatInterval:   30 * time.Millisecond,
		Role:                game.RoleMid,
		Bracket:             game.BracketPlatinum,
		Logger:              zap.NewNop(),
	})
	require.NoError(t, err)
	defer session.Close()

	imports := &fakeImports{}
	s := New(session, imports, nil, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Close()

	require.NoError(t, session.Start())
	require.Eventually(t, func() bool { return session.State().Role == game.RoleTop }, time.Second, 5*time.Millisecond)

	resp := putSettings(t, ts.URL, `{"autoImport":true}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, imports.Enabled())

	st := session.State()
	assert.Equal(t, game.RoleTop, st.Role, "detected role stays for this match")
	assert.Equal(t, game.RoleMid, st.BaseRole)

	client.set("", errors.New("connection refused"))
	require.Eventually(t, func() bool { return session.Phase() == game.PhaseClientClosed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, game.RoleMid, session.State().Role)
}

func TestServer_WebsocketStream(t *testing.T) {
	ts, ctrl, _, s := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "state", first.Type)

	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	ctrl.bus.Publish(monitor.StateChanged{PreviousPhase: game.PhaseLobby, NewPhase: game.PhaseChampSelect})

	var msg struct {
		Type string `json:"type"`
		Data struct {
			NewPhase string `json:"newPhase"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, monitor.EventStateChanged, msg.Type)
	assert.Equal(t, "ChampSelect", msg.Data.NewPhase)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	id, out := hub.Join()

	for i := 0; i < clientBuffer+1; i++ {
		hub.Broadcast(Message{Type: "tick", Data: i})
	}

	assert.Equal(t, 0, hub.Len())
	count := 0
	for range out {
		count++
	}
	assert.Equal(t, clientBuffer, count)
	hub.Leave(id)
}
