package autoimport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"focuswatch/internal/build"
	"focuswatch/internal/game"
	"focuswatch/internal/lcu"
	"focuswatch/internal/monitor"
)

var ErrImportFailed = errors.New("import failed")

const (
	EventImportFinished = "import-finished"
	EventImportFailed   = "import-failed"
)

// ImportFinished is published after a build reached the client
type ImportFinished struct {
	ChampionID    int       `json:"championId"`
	Role          game.Role `json:"role"`
	RunesImported bool      `json:"runesImported"`
	ItemsImported bool      `json:"itemsImported"`
	Message       string    `json:"message"`
}

func (ImportFinished) Name() string { return EventImportFinished }

// ImportFailed is published once per failed attempt. Err wraps
// ErrImportFailed.
type ImportFailed struct {
	ChampionID int       `json:"championId"`
	Role       game.Role `json:"role"`
	Err        error     `json:"-"`
	Error      string    `json:"error"`
}

func (ImportFailed) Name() string { return EventImportFailed }

// Executor writes a build into the client
type Executor interface {
	Import(ctx context.Context, b *build.Build) (lcu.ImportResult, error)
}

// Bus is where the coordinator listens for resolutions and reports
// outcomes
type Bus interface {
	Subscribe(fn monitor.Handler) func()
	Publish(ev monitor.Event)
}

// Coordinator imports a build once per champion for the lifetime of the
// process. lastImported is deliberately not tied to any champion-select
// session.
type Coordinator struct {
	source  build.Source
	exec    Executor
	publish func(monitor.Event)
	timeout time.Duration
	log     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	enabled      bool
	lastImported int
	inFlight     map[int]struct{}
}

// New creates a disabled coordinator. publish may be nil.
func New(source build.Source, exec Executor, publish func(monitor.Event), timeout time.Duration, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if publish == nil {
		publish = func(monitor.Event) {}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		source:   source,
		exec:     exec,
		publish:  publish,
		timeout:  timeout,
		log:      log.Named("autoimport").Sugar(),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[int]struct{}),
	}
}

// Attach subscribes the coordinator to champion resolutions on bus and
// publishes outcomes there. Call it before the first Request. It returns
// the unsubscribe function.
func (c *Coordinator) Attach(bus Bus) func() {
	c.publish = bus.Publish
	return bus.Subscribe(c.handle)
}

func (c *Coordinator) handle(ev monitor.Event) {
	if res, ok := ev.(monitor.ChampionResolved); ok {
		c.Request(res.ChampionID, res.Role)
	}
}

func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled != enabled {
		c.log.Infof("[AutoImport] Enabled: %v", enabled)
	}
	c.enabled = enabled
}

func (c *Coordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// LastImported returns the last champion imported successfully, or 0
func (c *Coordinator) LastImported() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastImported
}

// Request schedules an import for championID unless the feature is off,
// the champion was already imported, or an import for it is in flight.
// It never blocks on the import itself.
func (c *Coordinator) Request(championID int, role game.Role) bool {
	if championID <= 0 {
		return false
	}

	c.mu.Lock()
	if !c.enabled || championID == c.lastImported || c.ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	if _, busy := c.inFlight[championID]; busy {
		c.mu.Unlock()
		return false
	}
	c.inFlight[championID] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(championID, role)
	return true
}

func (c *Coordinator) run(championID int, role game.Role) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	result, err := c.importBuild(ctx, championID, role)

	c.mu.Lock()
	delete(c.inFlight, championID)
	if err == nil {
		c.lastImported = championID
	}
	c.mu.Unlock()

	if err != nil {
		wrapped := fmt.Errorf("%w: champion %d (%s): %v", ErrImportFailed, championID, role, err)
		c.log.Warnf("[AutoImport] %v", wrapped)
		c.publish(ImportFailed{ChampionID: championID, Role: role, Err: wrapped, Error: wrapped.Error()})
		return
	}

	c.log.Infof("[AutoImport] Champion %d (%s): %s", championID, role, result.Message)
	c.publish(ImportFinished{
		ChampionID:    championID,
		Role:          role,
		RunesImported: result.RunesImported,
		ItemsImported: result.ItemsImported,
		Message:       result.Message,
	})
}

func (c *Coordinator) importBuild(ctx context.Context, championID int, role game.Role) (lcu.ImportResult, error) {
	b, err := c.source.Fetch(ctx, championID, role)
	if err != nil {
		return lcu.ImportResult{}, fmt.Errorf("fetch build: %w", err)
	}
	return c.exec.Import(ctx, b)
}

// Wait blocks until in-flight imports finish
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight imports and waits for them
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
