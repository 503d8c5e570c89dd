package wire

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"focuswatch/internal/autoimport"
	"focuswatch/internal/benchmark"
	"focuswatch/internal/build"
	"focuswatch/internal/config"
	"focuswatch/internal/game"
	"focuswatch/internal/lcu"
	"focuswatch/internal/monitor"
	"focuswatch/internal/overlay"
)

const (
	buildTimeout  = 10 * time.Second
	importTimeout = 20 * time.Second
	wsRetry       = 2 * time.Second
)

// Stack is every long-lived component of the application
type Stack struct {
	Config     *config.Config
	ConfigPath string

	Client     *lcu.Client
	Live       *lcu.LiveClient
	Registry   *lcu.Registry
	Benchmarks *benchmark.Service
	Builds     build.Source
	Importer   *lcu.Importer
	Monitor    *monitor.Session
	AutoImport *autoimport.Coordinator
	Events     *lcu.EventClient
	Overlay    *overlay.Server

	log   *zap.SugaredLogger
	raw   *zap.Logger
	cache *build.Cache
	stats *build.StatsSource

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	detach   func()
	lockfile []string
}

// LockfileCandidates lists the configured lockfile followed by the
// platform install paths
func LockfileCandidates(cfg *config.Config) []string {
	var paths []string
	if cfg.Client.Lockfile != "" {
		paths = append(paths, cfg.Client.Lockfile)
	}
	return append(paths, lcu.DefaultLockfilePaths(runtime.GOOS, os.Getenv("LOCALAPPDATA"))...)
}

// New builds the stack. Optional backends (Postgres stats, the SQLite
// cache, the overlay server) are skipped with a warning when they cannot
// be set up.
func New(ctx context.Context, cfg *config.Config, configPath string, log *zap.Logger) (*Stack, error) {
	s := &Stack{
		Config:     cfg,
		ConfigPath: configPath,
		log:        log.Named("wire").Sugar(),
		raw:        log,
		lockfile:   LockfileCandidates(cfg),
	}
	timeout := cfg.Poll.HTTPTimeout.Duration

	s.Client = lcu.NewClient(s.lockfile, timeout, log)
	s.Live = lcu.NewLiveClient(cfg.Client.LiveDataURL, timeout)
	s.Registry = lcu.NewRegistry(cfg.Client.DataDragonURL, log)
	s.Benchmarks = benchmark.NewService(benchmark.NewClient(cfg.Benchmark.URL, cfg.Benchmark.APIKey, timeout), log)
	s.Builds = s.buildSources(ctx)
	s.Importer = lcu.NewImporter(s.Client, s.Registry, cfg.Build.ItemSetPrefix, log)

	opts := monitor.Options{
		PhaseInterval:       cfg.Poll.Phase.Duration,
		ChampSelectInterval: cfg.Poll.ChampSelect.Duration,
		LiveInterval:        cfg.Poll.LiveData.Duration,
		HeartbeatInterval:   cfg.Poll.Heartbeat.Duration,
		Role:                cfg.Role(),
		Bracket:             cfg.Bracket(),
		Logger:              log,
	}
	session, err := monitor.New(s.Client, s.Live, s.Benchmarks, opts)
	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}
	s.Monitor = session

	s.AutoImport = autoimport.New(s.Builds, s.Importer, nil, importTimeout, log)
	s.detach = s.AutoImport.Attach(session)
	s.AutoImport.SetEnabled(cfg.Preferences.AutoImport)

	s.Events = lcu.NewEventClient(s.Client, s.onClientEvent, wsRetry, log)

	if cfg.Overlay.Addr != "" {
		s.Overlay = overlay.New(session, s.AutoImport, s, log)
	}
	return s, nil
}

func (s *Stack) buildSources(ctx context.Context) build.Source {
	var chain build.Chain
	if s.Config.Build.APIURL != "" {
		chain = append(chain, build.NewAPISource(s.Config.Build.APIURL, s.Registry, buildTimeout))
	}
	if s.Config.Build.DatabaseURL != "" {
		stats, err := build.NewStatsSource(ctx, s.Config.Build.DatabaseURL, s.raw)
		if err != nil {
			s.log.Warnf("[Stats] Postgres unavailable, skipping: %v", err)
		} else {
			s.stats = stats
			chain = append(chain, stats)
		}
	}
	if s.Config.Build.UGGURL != "" {
		chain = append(chain, build.NewUGGSource(s.Config.Build.UGGURL, s.Config.Build.UGGPatchesURL, buildTimeout, s.raw))
	}
	if len(chain) == 0 {
		s.log.Warn("[Build] No build source configured; auto-import will report failures")
		return chain
	}

	if s.Config.Build.CacheDir == "" {
		return chain
	}
	cache, err := build.OpenCache(s.Config.Build.CacheDir, chain, s.Config.Build.CacheTTL.Duration, s.raw)
	if err != nil {
		s.log.Warnf("[Build] Cache unavailable, fetching directly: %v", err)
		return chain
	}
	s.cache = cache
	return cache
}

// onClientEvent turns client push notifications into immediate polls
func (s *Stack) onClientEvent(ev lcu.Event) {
	switch ev.Name {
	case lcu.EventGameflowPhase, lcu.EventChampSelectSession:
		s.Monitor.ForceRefresh()
	}
}

func (s *Stack) onLockfileChange(path string, present bool) {
	s.log.Infof("[Lockfile] %s present=%v", path, present)
	s.Client.Reset()
	s.Monitor.ForceRefresh()
}

// Start launches the monitor and the background helpers
func (s *Stack) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.Monitor.Start(); err != nil {
		cancel()
		s.cancel = nil
		return err
	}

	s.spawn(func() {
		if err := s.Registry.Load(ctx); err != nil {
			s.log.Warnf("[DataDragon] Failed to load champions: %v", err)
		}
	})
	s.spawn(func() { s.Events.Run(ctx) })

	if watcher, err := lcu.NewLockfileWatcher(s.lockfile, s.raw); err != nil {
		s.log.Debugf("[Lockfile] Not watching: %v", err)
	} else {
		s.spawn(func() { watcher.Run(ctx, s.onLockfileChange) })
	}

	if s.cache != nil {
		s.spawn(func() {
			if n, err := s.cache.Purge(ctx); err != nil {
				s.log.Warnf("[Build] Cache purge failed: %v", err)
			} else if n > 0 {
				s.log.Infof("[Build] Purged %d expired builds", n)
			}
		})
	}

	if s.Overlay != nil {
		addr := s.Config.Overlay.Addr
		s.spawn(func() {
			if err := s.Overlay.ListenAndServe(ctx, addr); err != nil {
				s.log.Errorf("[Overlay] Server stopped: %v", err)
			}
		})
	}
	return nil
}

func (s *Stack) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// UpdatePreferences applies benchmark and import settings and persists
// them when the stack was loaded from a config file. Role and bracket are
// compared against the configured values, so resubmitting them leaves a
// role detected in champion select in place.
func (s *Stack) UpdatePreferences(role game.Role, bracket game.Bracket, autoImport bool) error {
	if baseRole, baseBracket := s.Monitor.Preferences(); role != baseRole || bracket != baseBracket {
		s.Monitor.SetRoleAndBracket(role, bracket)
	}
	s.AutoImport.SetEnabled(autoImport)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Config.Preferences.Role = string(role)
	s.Config.Preferences.Bracket = string(bracket)
	s.Config.Preferences.AutoImport = autoImport
	if s.ConfigPath == "" {
		return nil
	}
	return config.Save(s.Config, s.ConfigPath)
}

// Close stops everything and releases backends
func (s *Stack) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.Monitor.Close()
	s.wg.Wait()

	if s.detach != nil {
		s.detach()
	}
	s.AutoImport.Close()
	if s.Overlay != nil {
		s.Overlay.Close()
	}
	s.closeBackends()
}

func (s *Stack) closeBackends() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warnf("[Build] Failed to close cache: %v", err)
		}
	}
	if s.stats != nil {
		s.stats.Close()
	}
}
