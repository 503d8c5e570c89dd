package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"focuswatch/internal/benchmark"
	"focuswatch/internal/champselect"
	"focuswatch/internal/delta"
	"focuswatch/internal/game"
)

var errUnreachable = errors.New("connection refused")

const supportPickSession = `{
	"localPlayerCellId": 3,
	"myTeam": [{"cellId": 3, "championId": 0, "assignedPosition": "UTILITY"}],
	"actions": [[{"actorCellId": 3, "championId": 64, "type": "pick", "completed": true}]]
}`

type fakeClient struct {
	mu       sync.Mutex
	phase    string
	err      error
	session  []byte
	sessErr  error
	polls    atomic.Int64
	sessions atomic.Int64
}

func (f *fakeClient) set(phase string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phase, f.err = phase, err
}

func (f *fakeClient) setSession(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = []byte(raw)
}

func (f *fakeClient) GameflowPhase(ctx context.Context) (string, error) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, f.err
}

func (f *fakeClient) ChampSelectSession(ctx context.Context) (*champselect.Session, []byte, error) {
	f.sessions.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessErr != nil {
		return nil, nil, f.sessErr
	}
	if f.session == nil {
		return nil, nil, errors.New("no active champ select session")
	}
	sess, err := champselect.Parse(f.session)
	return sess, f.session, err
}

type fakeLive struct {
	mu   sync.Mutex
	snap game.Snapshot
	err  error
}

func (f *fakeLive) set(snap game.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

func (f *fakeLive) Snapshot(ctx context.Context) (game.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

type fakeCurves struct {
	curve         benchmark.Curve
	invalidations atomic.Int64
}

func (f *fakeCurves) Curve(ctx context.Context, role game.Role, bracket game.Bracket) benchmark.Curve {
	return f.curve
}

func (f *fakeCurves) Invalidate() { f.invalidations.Add(1) }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) phases() []game.Phase {
	var out []game.Phase
	for _, ev := range r.all() {
		if sc, ok := ev.(StateChanged); ok {
			out = append(out, sc.NewPhase)
		}
	}
	return out
}

func (r *recorder) stats() []StatsUpdated {
	var out []StatsUpdated
	for _, ev := range r.all() {
		if st, ok := ev.(StatsUpdated); ok {
			out = append(out, st)
		}
	}
	return out
}

func (r *recorder) resolutions() []ChampionResolved {
	var out []ChampionResolved
	for _, ev := range r.all() {
		if cr, ok := ev.(ChampionResolved); ok {
			out = append(out, cr)
		}
	}
	return out
}

func fastOptions() Options {
	return Options{
		PhaseInterval:       10 * time.Millisecond,
		ChampSelectInterval: 5 * time.Millisecond,
		LiveInterval:        5 * time.Millisecond,
		HeartbeatInterval:   30 * time.Millisecond,
		Role:                game.RoleMid,
		Bracket:             game.BracketPlatinum,
		Logger:              zap.NewNop(),
	}
}

// idleOptions keeps the timers from ever firing so tests can drive the
// state machine directly
func idleOptions() Options {
	opts := fastOptions()
	opts.PhaseInterval = time.Hour
	opts.ChampSelectInterval = time.Hour
	opts.LiveInterval = time.Hour
	opts.HeartbeatInterval = time.Hour
	return opts
}

func newTestSession(t testing.TB, opts Options) (*Session, *fakeClient, *fakeLive, *fakeCurves, *recorder) {
	client := &fakeClient{err: errUnreachable}
	live := &fakeLive{err: errUnreachable}
	curves := &fakeCurves{curve: benchmark.Curve{{TimestampSeconds: 0, TargetRate: 6.0}}}

	s, err := New(client, live, curves, opts)
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec.handle)
	t.Cleanup(s.Close)
	return s, client, live, curves, rec
}

// begin marks s running without starting the phase poller
func begin(s *Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.gen++
	return s.gen
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := fastOptions()
	opts.LiveInterval = 0

	_, err := New(&fakeClient{}, &fakeLive{}, &fakeCurves{}, opts)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	opts := fastOptions()
	opts.Role = ""
	opts.Bracket = ""
	s, err := New(&fakeClient{}, &fakeLive{}, &fakeCurves{}, opts)
	require.NoError(t, err)
	defer s.Close()

	st := s.State()
	assert.Equal(t, game.PhaseClientClosed, st.Phase)
	assert.Equal(t, game.TargetNone, st.Target)
	assert.Equal(t, game.FallbackRole, st.Role)
	assert.Equal(t, game.DefaultBracket, st.Bracket)
	assert.False(t, st.Running)
}

func TestSession_Lifecycle(t *testing.T) {
	s, client, _, _, _ := newTestSession(t, fastOptions())

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.State().Running)
	require.Eventually(t, func() bool { return client.polls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.State().Running)
	assert.False(t, s.phaseClock.Running())

	require.NoError(t, s.Start())
	assert.True(t, s.phaseClock.Running())

	s.Close()
	assert.ErrorIs(t, s.Start(), ErrClosed)
	assert.Equal(t, 0, s.bus.Len())
}

func TestSession_UnreachableClientStaysClosed(t *testing.T) {
	s, client, _, _, rec := newTestSession(t, fastOptions())

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return client.polls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	st := s.State()
	assert.Equal(t, game.PhaseClientClosed, st.Phase)
	assert.Equal(t, game.TargetNone, st.Target)
	assert.Empty(t, rec.phases())
}

func TestSession_ChampSelectFlow(t *testing.T) {
	s, client, _, _, rec := newTestSession(t, fastOptions())
	client.setSession(supportPickSession)
	client.set("ChampSelect", nil)

	require.NoError(t, s.Start())
	// the phase flips before the clocks are reconfigured
	require.Eventually(t, func() bool {
		return s.Phase() == game.PhaseChampSelect && s.champClock.Running()
	}, time.Second, 5*time.Millisecond)

	st := s.State()
	require.NotNil(t, st.ChampSelect)
	assert.Equal(t, 64, st.ChampSelect.ChampionID)
	assert.Equal(t, game.RoleSupport, st.ChampSelect.Role)
	assert.Equal(t, 3, st.ChampSelect.LocalCellID)
	assert.Equal(t, game.RoleSupport, st.Role)

	var changed *StateChanged
	for _, ev := range rec.all() {
		if sc, ok := ev.(StateChanged); ok {
			changed = &sc
			break
		}
	}
	require.NotNil(t, changed)
	assert.Equal(t, game.PhaseClientClosed, changed.PreviousPhase)
	assert.Equal(t, game.PhaseChampSelect, changed.NewPhase)
	require.NotNil(t, changed.ChampionID)
	assert.Equal(t, 64, *changed.ChampionID)

	require.Eventually(t, func() bool { return len(rec.resolutions()) >= 2 }, time.Second, 5*time.Millisecond)
	res := rec.resolutions()
	assert.True(t, res[0].Changed)
	assert.False(t, res[1].Changed)

	client.set("InProgress", nil)
	require.Eventually(t, func() bool {
		return s.Phase() == game.PhaseInProgress &&
			!s.champClock.Running() &&
			s.liveClock.Running() &&
			s.phaseClock.Interval() == fastOptions().HeartbeatInterval
	}, time.Second, 5*time.Millisecond)

	st = s.State()
	assert.Nil(t, st.ChampSelect)
	assert.Equal(t, game.TargetLiveDataAPI, st.Target)
}

func TestSession_StatsUpdated(t *testing.T) {
	s, client, live, _, rec := newTestSession(t, fastOptions())
	client.set("InProgress", nil)
	live.set(game.NewSnapshot(40, 600), nil)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return len(rec.stats()) > 0 }, time.Second, 5*time.Millisecond)

	st := rec.stats()[0]
	assert.Equal(t, 40, st.CurrentCS)
	assert.InDelta(t, 4.0, st.CSPerMinute, 1e-9)
	assert.InDelta(t, 6.0, st.TargetRate, 1e-9)
	assert.InDelta(t, -2.0, st.Delta, 1e-9)
	assert.Equal(t, delta.BandCritical, st.Band)

	require.NotNil(t, s.State().Stats)
}

func TestSession_EndOfMatchWithClientGone(t *testing.T) {
	s, client, live, _, rec := newTestSession(t, fastOptions())
	client.set("InProgress", nil)
	live.set(game.NewSnapshot(10, 120), nil)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return len(rec.stats()) > 0 }, time.Second, 5*time.Millisecond)

	client.set("", errUnreachable)
	live.set(game.Snapshot{}, errUnreachable)

	require.Eventually(t, func() bool {
		phases := rec.phases()
		return s.Phase() == game.PhaseClientClosed &&
			!s.liveClock.Running() &&
			len(phases) > 0 && phases[len(phases)-1] == game.PhaseClientClosed
	}, time.Second, 5*time.Millisecond)
	st := s.State()
	assert.Equal(t, game.TargetNone, st.Target)
	assert.Nil(t, st.Stats)
}

func TestSession_LiveUnreachableAfterSnapshotEndsGame(t *testing.T) {
	s, _, _, _, rec := newTestSession(t, idleOptions())
	gen := begin(s)
	ctx := context.Background()

	s.observe(gen, game.PhaseInProgress, nil, nil)
	require.NoError(t, s.observeLive(ctx, gen, LiveResult{Snapshot: game.NewSnapshot(50, 300)}))
	require.NoError(t, s.observeLive(ctx, gen, LiveResult{Unreachable: true}))

	st := s.State()
	assert.Equal(t, game.PhaseEndOfGame, st.Phase)
	assert.Equal(t, game.TargetClientAPI, st.Target)
	assert.NotNil(t, st.Stats, "last stats stay visible after the match")
	assert.Equal(t, []game.Phase{game.PhaseInProgress, game.PhaseEndOfGame}, rec.phases())
}

func TestSession_LiveUnreachableWhileLoading(t *testing.T) {
	s, _, _, _, rec := newTestSession(t, idleOptions())
	gen := begin(s)

	s.observe(gen, game.PhaseGameStart, nil, nil)
	require.NoError(t, s.observeLive(context.Background(), gen, LiveResult{Unreachable: true}))

	assert.Equal(t, game.PhaseGameStart, s.Phase())
	assert.Equal(t, []game.Phase{game.PhaseGameStart}, rec.phases())
}

func TestSession_NoEventsAfterStop(t *testing.T) {
	s, client, _, _, rec := newTestSession(t, fastOptions())
	client.set("Lobby", nil)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return s.Phase() == game.PhaseLobby }, time.Second, 5*time.Millisecond)

	s.Stop()
	count := len(rec.all())
	client.set("Matchmaking", nil)
	time.Sleep(60 * time.Millisecond)

	assert.Len(t, rec.all(), count)
	assert.Equal(t, game.PhaseLobby, s.Phase())
}

func TestSession_StaleGenerationIgnored(t *testing.T) {
	s, _, _, _, rec := newTestSession(t, idleOptions())
	gen := begin(s)
	s.Stop()

	s.observe(gen, game.PhaseLobby, nil, nil)
	require.NoError(t, s.observeLive(context.Background(), gen, LiveResult{Snapshot: game.NewSnapshot(1, 60)}))

	assert.Equal(t, game.PhaseClientClosed, s.Phase())
	assert.Empty(t, rec.all())
}

func TestSession_IdleToIdleHasNoActions(t *testing.T) {
	s, _, _, curves, rec := newTestSession(t, idleOptions())
	gen := begin(s)

	s.observe(gen, game.PhaseNone, nil, nil)
	s.observe(gen, game.PhaseClientClosed, nil, nil)

	assert.Equal(t, []game.Phase{game.PhaseNone, game.PhaseClientClosed}, rec.phases())
	assert.Zero(t, curves.invalidations.Load())
}

func TestSession_RolePolicy(t *testing.T) {
	s, client, _, curves, _ := newTestSession(t, idleOptions())
	client.setSession(supportPickSession)
	gen := begin(s)
	ctx := context.Background()

	sess, raw, err := client.ChampSelectSession(ctx)
	require.NoError(t, err)
	s.observe(gen, game.PhaseChampSelect, raw, sess)

	assert.Equal(t, game.RoleSupport, s.State().Role)
	assert.EqualValues(t, 1, curves.invalidations.Load())

	// a manual choice sticks while the detected position is unchanged
	s.SetRoleAndBracket(game.RoleTop, game.BracketGold)
	require.NoError(t, s.pollChampSelect(gen)(ctx))
	st := s.State()
	assert.Equal(t, game.RoleTop, st.Role)
	assert.Equal(t, game.BracketGold, st.Bracket)
	assert.EqualValues(t, 2, curves.invalidations.Load())

	s.observe(gen, game.PhaseNone, nil, nil)
	st = s.State()
	assert.Equal(t, game.RoleTop, st.Role)
	assert.Equal(t, game.BracketGold, st.Bracket)
	assert.Nil(t, st.ChampSelect)
}

func TestSession_PreferencesIgnoreDetectedRole(t *testing.T) {
	s, client, _, _, _ := newTestSession(t, idleOptions())
	client.setSession(supportPickSession)
	gen := begin(s)

	sess, raw, err := client.ChampSelectSession(context.Background())
	require.NoError(t, err)
	s.observe(gen, game.PhaseChampSelect, raw, sess)

	st := s.State()
	assert.Equal(t, game.RoleSupport, st.Role)
	assert.Equal(t, game.RoleMid, st.BaseRole)

	role, bracket := s.Preferences()
	assert.Equal(t, game.RoleMid, role)
	assert.Equal(t, game.BracketPlatinum, bracket)

	s.observe(gen, game.PhaseClientClosed, nil, nil)
	st = s.State()
	assert.Equal(t, game.RoleMid, st.Role)
	assert.Equal(t, game.RoleMid, st.BaseRole)
}

func TestSession_SetRoleAndBracketInvalidatesOnRoleOnly(t *testing.T) {
	s, _, _, curves, _ := newTestSession(t, idleOptions())

	s.SetRoleAndBracket(game.RoleMid, game.BracketDiamond)
	assert.Zero(t, curves.invalidations.Load())

	s.SetRoleAndBracket(game.RoleADC, game.BracketDiamond)
	assert.EqualValues(t, 1, curves.invalidations.Load())
}

func TestSession_ChampSelectTickOutsidePhaseIgnored(t *testing.T) {
	s, client, _, _, rec := newTestSession(t, idleOptions())
	client.setSession(supportPickSession)
	gen := begin(s)

	s.observe(gen, game.PhaseLobby, nil, nil)
	require.NoError(t, s.pollChampSelect(gen)(context.Background()))

	assert.Nil(t, s.State().ChampSelect)
	assert.Empty(t, rec.resolutions())
}

func phaseGen() *rapid.Generator[game.Phase] {
	return rapid.SampledFrom([]game.Phase{
		game.PhaseClientClosed, game.PhaseNone, game.PhaseLobby, game.PhaseMatchmaking,
		game.PhaseReadyCheck, game.PhaseChampSelect, game.PhaseGameStart,
		game.PhaseInProgress, game.PhaseEndOfGame,
	})
}

func TestSession_StateChangesAreDeduplicatedObservations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		observed := rapid.SliceOfN(phaseGen(), 0, 40).Draw(t, "observed")

		client := &fakeClient{err: errUnreachable}
		client.setSession(supportPickSession)
		s, err := New(client, &fakeLive{err: errUnreachable}, &fakeCurves{}, idleOptions())
		require.NoError(t, err)
		defer s.Close()
		rec := &recorder{}
		s.Subscribe(rec.handle)
		gen := begin(s)

		var want []game.Phase
		last := game.PhaseClientClosed
		for _, p := range observed {
			var sess *champselect.Session
			if p == game.PhaseChampSelect {
				sess, _, _ = client.ChampSelectSession(context.Background())
			}
			s.observe(gen, p, nil, sess)

			if p != last {
				want = append(want, p)
				last = p
			}
			st := s.State()
			if (st.ChampSelect != nil) != (p == game.PhaseChampSelect) {
				t.Fatalf("champ select view live=%v in phase %s", st.ChampSelect != nil, p)
			}
			if st.Target != game.TargetFor(p) {
				t.Fatalf("target %s in phase %s", st.Target, p)
			}
		}

		got := rec.phases()
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})
}
