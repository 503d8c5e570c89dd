package benchmark

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"focuswatch/internal/game"
)

// Fetcher retrieves a remote curve
type Fetcher interface {
	Fetch(ctx context.Context, role game.Role, bracket game.Bracket) (Curve, error)
}

type cacheKey struct {
	role    game.Role
	bracket game.Bracket
}

// retryAfter is how long the built-in curve stands in for a key after a
// failed fetch. Live ticks inside the window do not hit the network.
const retryAfter = 30 * time.Second

// Service resolves curves per (role, bracket), caching remote results until
// Invalidate is called. Fetches run outside the lock.
type Service struct {
	fetcher Fetcher
	log     *zap.SugaredLogger
	now     func() time.Time

	mu     sync.Mutex
	cache  map[cacheKey]Curve
	failed map[cacheKey]time.Time
	// gen is bumped by Invalidate so a fetch started earlier is not stored
	gen uint64
}

func NewService(fetcher Fetcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		fetcher: fetcher,
		log:     log.Named("benchmark").Sugar(),
		now:     time.Now,
		cache:   make(map[cacheKey]Curve),
		failed:  make(map[cacheKey]time.Time),
	}
}

// Curve returns the curve for role and bracket. It never fails.
func (s *Service) Curve(ctx context.Context, role game.Role, bracket game.Bracket) Curve {
	if s.fetcher == nil {
		return DefaultCurve(role, bracket)
	}
	key := cacheKey{role, bracket}

	s.mu.Lock()
	if c, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return c
	}
	if at, ok := s.failed[key]; ok && s.now().Sub(at) < retryAfter {
		s.mu.Unlock()
		return DefaultCurve(role, bracket)
	}
	gen := s.gen
	s.mu.Unlock()

	curve, err := s.fetcher.Fetch(ctx, role, bracket)
	if err == nil && len(curve) == 0 {
		err = fmt.Errorf("%w: empty curve", ErrFetchFailed)
	}
	if err != nil && ctx.Err() != nil {
		return DefaultCurve(role, bracket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warnf("[Benchmark] %s/%s unavailable, using built-in curve: %v", role, bracket, err)
		if gen == s.gen {
			s.failed[key] = s.now()
		}
		return DefaultCurve(role, bracket)
	}
	if gen == s.gen {
		s.cache[key] = curve
		delete(s.failed, key)
	}
	return curve
}

// Invalidate drops every cached curve and failure
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	clear(s.cache)
	clear(s.failed)
}
