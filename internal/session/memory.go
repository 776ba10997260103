package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	Session
	lastSeen time.Time
	history  []Entry
}

// MemoryStore keeps sessions in process memory; they vanish on restart.
type MemoryStore struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryStore) Create(ctx context.Context, username string) (Session, error) {
	now := s.now()
	sess := Session{Token: newToken(), Username: username, CreatedAt: now}

	s.mu.Lock()
	s.sessions[sess.Token] = &memorySession{Session: sess, lastSeen: now}
	s.mu.Unlock()
	return sess, nil
}

// lookup returns the live session for token, dropping it if it has expired.
// Callers hold the write lock.
func (s *MemoryStore) lookup(token string) (*memorySession, error) {
	ms, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if s.opts.TTL > 0 && now.Sub(ms.lastSeen) > s.opts.TTL {
		delete(s.sessions, token)
		return nil, ErrNotFound
	}
	ms.lastSeen = now
	return ms, nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, err := s.lookup(token)
	if err != nil {
		return Session{}, err
	}
	return ms.Session, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, token string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, err := s.lookup(token)
	if err != nil {
		return err
	}
	ms.history = append(ms.history, e)
	if over := len(ms.history) - s.opts.historySize(); over > 0 {
		ms.history = append([]Entry(nil), ms.history[over:]...)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, token string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(ms.history))
	copy(out, ms.history)
	return out, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error { return nil }
