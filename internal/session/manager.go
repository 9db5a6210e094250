package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/db"
	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/metrics"
)

// Manager creates, finds and ends sessions. Idle sessions expire lazily
// on the next Create or Get; there is no background sweeper.
type Manager struct {
	db      *sql.DB
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Collector
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithManagerMetrics records session and pipeline metrics on c.
func WithManagerMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = c }
}

// WithManagerLogger logs session lifecycle events to l.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager storing session rows in database.
// A ttl of zero disables expiry.
func NewManager(database *sql.DB, ttl time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		db:       database,
		ttl:      ttl,
		now:      time.Now,
		logger:   zap.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.expireLocked(ctx); err != nil {
		return nil, err
	}

	now := m.now()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := db.InsertSession(ctx, m.db, id.String(), now.Unix()); err != nil {
		return nil, err
	}

	s := New(id.String(), db.NewRegistry(m.db, id.String()),
		WithMetrics(m.metrics),
		WithLogger(m.logger),
	)
	m.sessions[s.id] = s
	m.metrics.SetActiveSessions(len(m.sessions))
	m.logger.Debug("session started", zap.String("session", s.id))
	return s, nil
}

// Get returns a live session and marks it as seen.
// Unknown or expired sessions return NOT_FOUND.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.expireLocked(ctx); err != nil {
		return nil, err
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.NewNotFound("session " + id)
	}
	if err := db.TouchSession(ctx, m.db, id, m.now().Unix()); err != nil {
		return nil, err
	}
	return s, nil
}

// End clears a session and its label content. Ending an unknown session is a no-op.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := db.DeleteSession(ctx, m.db, id); err != nil {
		return err
	}
	if s, ok := m.sessions[id]; ok {
		s.clear()
		delete(m.sessions, id)
		m.logger.Debug("session ended", zap.String("session", id))
	}
	m.metrics.SetActiveSessions(len(m.sessions))
	return nil
}

// Expire ends every session idle longer than the TTL and returns how many ended.
func (m *Manager) Expire(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.sessions)
	if err := m.expireLocked(ctx); err != nil {
		return 0, err
	}
	return before - len(m.sessions), nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) expireLocked(ctx context.Context) error {
	if m.ttl <= 0 {
		return nil
	}
	cutoff := m.now().Add(-m.ttl).Unix()
	ids, err := db.DeleteIdleSessions(ctx, m.db, cutoff)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			s.clear()
			delete(m.sessions, id)
		}
	}
	if len(ids) > 0 {
		m.logger.Info("expired idle sessions", zap.Int("count", len(ids)))
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	return nil
}
