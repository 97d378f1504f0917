package storage

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxTurns = 64
	DefaultIdleTTL  = 24 * time.Hour
)

// entry holds one user's session behind its own lock, so appends for one
// user never block reads or appends for another. The lock is held for the
// whole read-modify-append of every operation.
type entry struct {
	mu      sync.Mutex
	session Session
}

type MemoryStore struct {
	mu       sync.Mutex // guards the sessions map, never held during session work
	sessions map[int64]*entry

	maxTurns int
	idleTTL  time.Duration

	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMemoryStore(maxTurns int, idleTTL time.Duration, log *slog.Logger) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &MemoryStore{
		sessions: make(map[int64]*entry),
		maxTurns: maxTurns,
		idleTTL:  idleTTL,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// getOrCreate is idempotent: two near-simultaneous calls for a new user
// observe the same entry because creation happens under the map lock.
func (m *MemoryStore) getOrCreate(userId int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userId]
	if !ok {
		e = &entry{session: Session{UserId: userId, UpdatedAt: time.Now()}}
		m.sessions[userId] = e
	}
	return e
}

func (m *MemoryStore) GetSession(userId int64) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[userId]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.session
	snapshot.Turns = make([]Turn, len(e.session.Turns))
	copy(snapshot.Turns, e.session.Turns)
	return &snapshot, nil
}

func (m *MemoryStore) AppendTurn(userId int64, role Role, text string) error {
	e := m.getOrCreate(userId)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Turns = append(e.session.Turns, Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})

	// Drop oldest turns once over the capacity bound
	if over := len(e.session.Turns) - m.maxTurns; over > 0 {
		m.log.With(slog.Int64("user", userId), slog.Int("dropped", over)).
			Debug("trimming session history")
		e.session.Turns = e.session.Turns[over:]
	}
	e.session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetTopic(userId int64, topic string) error {
	e := m.getOrCreate(userId)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Topic = topic
	e.session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ClearSession(userId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userId)
	return nil
}

// StartSweeper begins periodic eviction of sessions idle longer than the
// store's TTL. Call once at startup; Close stops it.
func (m *MemoryStore) StartSweeper(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *MemoryStore) sweep() {
	cutoff := time.Now().Add(-m.idleTTL)
	evicted := 0

	m.mu.Lock()
	for userId, e := range m.sessions {
		e.mu.Lock()
		idle := e.session.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(m.sessions, userId)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.log.With(slog.Int("evicted", evicted)).Info("swept idle sessions")
	}
}

func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
	return nil
}
