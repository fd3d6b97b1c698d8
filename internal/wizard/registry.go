package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/metrics"
)

type Config struct {
	PollInterval time.Duration

	// Sessions unused for this long are closed by the reaper. Zero keeps
	// them until deleted.
	IdleTimeout time.Duration
}

// Registry owns the open sessions of the service.
type Registry struct {
	backend  Backend
	config   Config
	observer Observer
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(backend Backend, config Config, observer Observer, logger *zap.Logger) *Registry {
	return &Registry{
		backend:  backend,
		config:   config,
		observer: observer,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create(v Variant) (*Session, error) {
	if _, ok := steps[v]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	s, err := newSession(uuid.NewString(), v, r.backend, approval.Config{Interval: r.config.PollInterval}, r.observer, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	metrics.WizardSessions.Inc()
	r.logger.Info("wizard session created", zap.String("session_id", s.ID()), zap.String("variant", string(v)))
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch(time.Now())
	return s, nil
}

// List returns the open sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	metrics.WizardSessions.Dec()
	r.logger.Info("wizard session closed", zap.String("session_id", id))
	return nil
}

// Close closes every session. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.WizardSessions.Dec()
	}
	r.logger.Info("wizard sessions closed", zap.Int("count", len(sessions)))
}

// Reap closes sessions not looked up within the idle timeout before now,
// stopping their pollers. It returns how many were closed.
func (r *Registry) Reap(now time.Time) int {
	if r.config.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-r.config.IdleTimeout)

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
		metrics.WizardSessions.Dec()
		r.logger.Info("idle wizard session closed", zap.String("session_id", s.ID()), zap.Time("last_used", s.LastUsed()))
	}
	return len(idle)
}

// RunReaper reaps idle sessions until ctx is done.
func (r *Registry) RunReaper(ctx context.Context) {
	if r.config.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(max(r.config.IdleTimeout/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now)
		}
	}
}
