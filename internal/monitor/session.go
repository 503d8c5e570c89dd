package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"focuswatch/internal/benchmark"
	"focuswatch/internal/champselect"
	"focuswatch/internal/clock"
	"focuswatch/internal/delta"
	"focuswatch/internal/game"
)

var ErrClosed = errors.New("monitor session is closed")

// ClientAPI is the part of the local client the monitor polls
type ClientAPI interface {
	GameflowPhase(ctx context.Context) (string, error)
	ChampSelectSession(ctx context.Context) (*champselect.Session, []byte, error)
}

// LiveDataAPI serves in-match snapshots. Any error means no match is
// reachable.
type LiveDataAPI interface {
	Snapshot(ctx context.Context) (game.Snapshot, error)
}

// CurveProvider returns benchmark curves. Curve must never fail.
type CurveProvider interface {
	Curve(ctx context.Context, role game.Role, bracket game.Bracket) benchmark.Curve
	Invalidate()
}

// LiveResult is one live-data poll. Unreachable is an observation in its
// own right, not an error.
type LiveResult struct {
	Snapshot    game.Snapshot
	Unreachable bool
}

// Options configures a Session
type Options struct {
	PhaseInterval       time.Duration
	ChampSelectInterval time.Duration
	LiveInterval        time.Duration
	HeartbeatInterval   time.Duration

	Role    game.Role
	Bracket game.Bracket

	Logger *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		PhaseInterval:       time.Second,
		ChampSelectInterval: 500 * time.Millisecond,
		LiveInterval:        500 * time.Millisecond,
		HeartbeatInterval:   5 * time.Second,
		Role:                game.FallbackRole,
		Bracket:             game.DefaultBracket,
	}
}

func (o Options) validate() error {
	if o.PhaseInterval <= 0 || o.ChampSelectInterval <= 0 || o.LiveInterval <= 0 || o.HeartbeatInterval <= 0 {
		return clock.ErrInvalidInterval
	}
	return nil
}

// ChampSelectView is the champion-select session as of the last tick.
// A new value replaces the old one on every tick; published values are
// never mutated.
type ChampSelectView struct {
	LocalCellID  int             `json:"localCellId"`
	ChampionID   int             `json:"championId"`
	Role         game.Role       `json:"role"`
	RoleDetected bool            `json:"roleDetected"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Raw          json.RawMessage `json:"-"`
}

// State is a point-in-time copy of the session
type State struct {
	Phase       game.Phase         `json:"phase"`
	Target      game.PollingTarget `json:"pollingTarget"`
	Running     bool               `json:"running"`
	Role        game.Role          `json:"role"`
	// BaseRole is the configured role that Role returns to on an idle reset
	BaseRole    game.Role          `json:"baseRole"`
	Bracket     game.Bracket       `json:"bracket"`
	ChampSelect *ChampSelectView   `json:"champSelect,omitempty"`
	Stats       *StatsUpdated      `json:"stats,omitempty"`
}

// Session owns the phase state machine and its pollers. Its lifecycle is
// New, Start, Stop (repeatable) and Close.
type Session struct {
	opts   Options
	client ClientAPI
	live   LiveDataAPI
	curves CurveProvider
	bus    *Bus
	log    *zap.SugaredLogger
	now    func() time.Time

	phaseClock *clock.Clock
	champClock *clock.Clock
	liveClock  *clock.Clock

	// lifeMu serializes Start, Stop, Close and clock reconfiguration
	lifeMu sync.Mutex
	closed bool

	// emitMu orders state updates with their event dispatch
	emitMu sync.Mutex

	mu           sync.Mutex
	running      bool
	gen          uint64
	phase        game.Phase
	champ        *ChampSelectView
	stats        *StatsUpdated
	baseRole     game.Role
	role         game.Role
	lastDetected game.Role
	bracket      game.Bracket
	liveSeen     bool
}

// New creates a stopped session in the ClientClosed phase
func New(client ClientAPI, live LiveDataAPI, curves CurveProvider, opts Options) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Role == "" {
		opts.Role = game.FallbackRole
	}
	if opts.Bracket == "" {
		opts.Bracket = game.DefaultBracket
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		opts:     opts,
		client:   client,
		live:     live,
		curves:   curves,
		bus:      NewBus(logger),
		log:      logger.Named("monitor").Sugar(),
		now:      time.Now,
		phase:    game.PhaseClientClosed,
		baseRole: opts.Role,
		role:     opts.Role,
		bracket:  opts.Bracket,
	}
	sink := func(err error) { s.log.Warnf("[Monitor] %v", err) }
	s.phaseClock = clock.New("phase", sink)
	s.champClock = clock.New("champ-select", sink)
	s.liveClock = clock.New("live-data", sink)
	return s, nil
}

// Subscribe registers an observer. The returned function removes it.
func (s *Session) Subscribe(fn Handler) func() {
	return s.bus.Subscribe(fn)
}

// Publish sends ev to every observer. Collaborators such as the import
// coordinator use it to share the session's observer list.
func (s *Session) Publish(ev Event) {
	s.bus.Publish(ev)
}

// Start begins polling from the current phase. Starting a running session
// is a no-op.
func (s *Session) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.gen++
	gen := s.gen
	phase := s.phase
	s.mu.Unlock()

	if err := s.configureClocks(gen, phase); err != nil {
		return err
	}
	s.phaseClock.Trigger()
	s.log.Infof("[Monitor] Started in phase %s", phase)
	return nil
}

// Stop cancels every timer. Once Stop returns no poll result can change
// the session state.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	s.mu.Unlock()

	s.phaseClock.Stop()
	s.champClock.Stop()
	s.liveClock.Stop()
	s.log.Info("[Monitor] Stopped")
}

// Close stops the session and drops every observer. A closed session
// cannot be restarted.
func (s *Session) Close() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.stopLocked()
	s.closed = true
	s.bus.Clear()
}

// ForceRefresh requests an immediate poll on every running timer
func (s *Session) ForceRefresh() {
	s.phaseClock.Trigger()
	s.champClock.Trigger()
	s.liveClock.Trigger()
}

// SetRoleAndBracket sets the benchmark role and bracket. A role detected
// later in champion select overrides the role until the next reset.
func (s *Session) SetRoleAndBracket(role game.Role, bracket game.Bracket) {
	s.mu.Lock()
	roleChanged := s.role != role
	changed := roleChanged || s.bracket != bracket
	s.baseRole = role
	s.role = role
	s.bracket = bracket
	s.mu.Unlock()

	if roleChanged {
		s.curves.Invalidate()
	}
	if changed {
		s.log.Infof("[Monitor] Benchmark set to %s / %s", role, bracket)
		s.liveClock.Trigger()
	}
}

// Preferences returns the configured role and bracket, ignoring any role
// detected in champion select
func (s *Session) Preferences() (game.Role, game.Bracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseRole, s.bracket
}

// State returns a copy of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Phase:    s.phase,
		Target:   game.TargetFor(s.phase),
		Running:  s.running,
		Role:     s.role,
		BaseRole: s.baseRole,
		Bracket:  s.bracket,
	}
	if s.champ != nil {
		view := *s.champ
		st.ChampSelect = &view
	}
	if s.stats != nil {
		stats := *s.stats
		st.Stats = &stats
	}
	return st
}

// Phase returns the current phase
func (s *Session) Phase() game.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) currentLocked(gen uint64) bool {
	return s.running && s.gen == gen
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(gen)
}

// configureClocks sets the timers for phase. Callers hold lifeMu.
func (s *Session) configureClocks(gen uint64, phase game.Phase) error {
	phaseInterval := s.opts.PhaseInterval
	if phase.InGame() {
		phaseInterval = s.opts.HeartbeatInterval
	}
	if !s.phaseClock.Running() || s.phaseClock.Interval() != phaseInterval {
		if err := s.phaseClock.Restart(phaseInterval, s.pollPhase(gen)); err != nil {
			return err
		}
	}

	if phase == game.PhaseChampSelect {
		if !s.champClock.Running() {
			if err := s.champClock.Start(s.opts.ChampSelectInterval, s.pollChampSelect(gen)); err != nil {
				return err
			}
		}
	} else {
		s.champClock.Stop()
	}

	if phase.InGame() {
		if !s.liveClock.Running() {
			if err := s.liveClock.Start(s.opts.LiveInterval, s.pollLive(gen)); err != nil {
				return err
			}
		}
	} else {
		s.liveClock.Stop()
	}
	return nil
}

func (s *Session) applyCadence(gen uint64, phase game.Phase) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.isCurrent(gen) {
		return
	}
	if err := s.configureClocks(gen, phase); err != nil {
		s.log.Errorf("[Monitor] Failed to reconfigure timers for %s: %v", phase, err)
	}
}

func (s *Session) pollPhase(gen uint64) clock.Func {
	return func(ctx context.Context) error {
		raw, err := s.client.GameflowPhase(ctx)
		if ctx.Err() != nil {
			return nil
		}

		next := game.PhaseClientClosed
		if err != nil {
			s.log.Debugf("[Monitor] Client API unreachable: %v", err)
		} else {
			next = game.ParsePhase(raw)
		}

		var (
			doc  json.RawMessage
			sess *champselect.Session
		)
		if next == game.PhaseChampSelect && s.Phase() != game.PhaseChampSelect {
			if cs, body, err := s.client.ChampSelectSession(ctx); err == nil {
				sess, doc = cs, body
			}
		}

		s.observe(gen, next, doc, sess)
		return nil
	}
}

// observe feeds one phase observation into the state machine
func (s *Session) observe(gen uint64, next game.Phase, raw json.RawMessage, sess *champselect.Session) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.currentLocked(gen) || s.phase == next {
		s.mu.Unlock()
		return
	}
	prev := s.phase
	before := s.champ
	s.phase = next

	var resolved *ChampionResolved
	roleChanged := false
	if !(prev.IsIdle() && next.IsIdle()) {
		resolved, roleChanged = s.enterExitLocked(prev, next, raw, sess)
	}

	changed := StateChanged{PreviousPhase: prev, NewPhase: next, Target: game.TargetFor(next)}
	if view := s.champ; view != nil || before != nil {
		if view == nil {
			view = before
		}
		if view.ChampionID > 0 {
			id, role := view.ChampionID, view.Role
			changed.ChampionID = &id
			changed.Role = &role
		}
	}
	s.mu.Unlock()

	s.log.Infof("[Monitor] Phase %s -> %s", prev, next)
	if roleChanged {
		s.curves.Invalidate()
	}
	s.applyCadence(gen, next)

	s.bus.Publish(Transition{Old: prev, New: next, Raw: raw})
	s.bus.Publish(changed)
	if resolved != nil {
		s.bus.Publish(*resolved)
	}
}

// enterExitLocked runs the phase entry and exit actions on session state
func (s *Session) enterExitLocked(prev, next game.Phase, raw json.RawMessage, sess *champselect.Session) (*ChampionResolved, bool) {
	if prev == game.PhaseChampSelect {
		s.champ = nil
	}
	if next.InGame() && !prev.InGame() {
		s.stats = nil
		s.liveSeen = false
	}
	if next.IsIdle() {
		s.champ = nil
		s.stats = nil
		s.liveSeen = false
		s.role = s.baseRole
		s.lastDetected = ""
	}

	if next != game.PhaseChampSelect {
		return nil, false
	}
	s.champ = &ChampSelectView{Role: game.FallbackRole, UpdatedAt: s.now()}
	s.lastDetected = ""
	if sess == nil {
		return nil, false
	}
	res, changed, roleChanged := s.applySessionLocked(sess, raw)
	if !res.Resolved() {
		return nil, roleChanged
	}
	ev := newChampionResolved(res, changed)
	return &ev, roleChanged
}

// applySessionLocked replaces the champ-select view with one built from
// sess. It reports whether the champion or role changed and whether the
// benchmark role changed.
func (s *Session) applySessionLocked(sess *champselect.Session, raw json.RawMessage) (champselect.Resolution, bool, bool) {
	res := champselect.ResolveLocal(sess)
	prev := s.champ

	next := &ChampSelectView{
		ChampionID:   res.ChampionID,
		Role:         res.Role,
		RoleDetected: res.RoleDetected,
		UpdatedAt:    s.now(),
		Raw:          raw,
	}
	if sess != nil {
		next.LocalCellID = sess.LocalPlayerCellID
	}
	changed := prev == nil || prev.ChampionID != res.ChampionID || prev.Role != res.Role
	s.champ = next

	roleChanged := false
	if res.RoleDetected && res.Role != s.lastDetected {
		s.lastDetected = res.Role
		if s.role != res.Role {
			s.role = res.Role
			roleChanged = true
		}
	}
	return res, changed, roleChanged
}

func (s *Session) pollChampSelect(gen uint64) clock.Func {
	return func(ctx context.Context) error {
		sess, raw, err := s.client.ChampSelectSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.Debugf("[Monitor] Champ select session unavailable: %v", err)
			return nil
		}

		s.emitMu.Lock()
		defer s.emitMu.Unlock()

		s.mu.Lock()
		if !s.currentLocked(gen) || s.phase != game.PhaseChampSelect || s.champ == nil {
			s.mu.Unlock()
			return nil
		}
		res, changed, roleChanged := s.applySessionLocked(sess, raw)
		s.mu.Unlock()

		if roleChanged {
			s.log.Infof("[Monitor] Role detected: %s", res.Role)
			s.curves.Invalidate()
		}
		if res.Resolved() {
			s.bus.Publish(newChampionResolved(res, changed))
		}
		return nil
	}
}

func (s *Session) pollLive(gen uint64) clock.Func {
	return func(ctx context.Context) error {
		snap, err := s.live.Snapshot(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return s.observeLive(ctx, gen, LiveResult{Snapshot: snap, Unreachable: err != nil})
	}
}

// observeLive feeds one live-data result into the state machine. Losing
// the live API after it has answered once in this match is an implicit
// end of game; before that the match is still loading.
func (s *Session) observeLive(ctx context.Context, gen uint64, res LiveResult) error {
	if res.Unreachable {
		s.mu.Lock()
		ended := s.currentLocked(gen) && s.phase.InGame() && s.liveSeen
		s.mu.Unlock()

		if ended {
			s.log.Info("[Monitor] Live data unreachable, treating as end of game")
			s.observe(gen, game.PhaseEndOfGame, nil, nil)
		}
		return nil
	}

	s.mu.Lock()
	role, bracket := s.role, s.bracket
	s.mu.Unlock()

	curve := s.curves.Curve(ctx, role, bracket)
	result := delta.ComputeFor(res.Snapshot, curve, role, bracket)
	ev := newStatsUpdated(res.Snapshot, result, role, bracket)

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.currentLocked(gen) || !s.phase.InGame() {
		s.mu.Unlock()
		return nil
	}
	s.liveSeen = true
	s.stats = &ev
	s.mu.Unlock()

	s.bus.Publish(ev)
	return nil
}

func (s State) String() string {
	return fmt.Sprintf("%s (%s)", s.Phase, s.Target)
}
