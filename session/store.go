package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/spetersoncode/bridge"
	"github.com/spetersoncode/bridge/store"
)

// DefaultTimeout is the inactivity period after which a session is evicted.
const DefaultTimeout = 20 * time.Minute

// Store manages sessions persisted through a store.Adapter.
//
// Every operation that modifies a session loads the record, applies the
// change and writes the whole record back with a single Set while holding
// a lock for that session key. Concurrent operations on the same key,
// including the sweeper, are therefore linearized within one process.
type Store struct {
	adapter      store.Adapter
	timeout      time.Duration
	evictPending bool
	maxPerUser   int
	now          func() time.Time
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout sets the inactivity timeout. Zero disables eviction.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithEvictPending controls whether idle sessions that still have pending
// client tool calls are evicted. By default they are kept.
func WithEvictPending(evict bool) Option {
	return func(s *Store) {
		s.evictPending = evict
	}
}

// WithMaxSessionsPerUser caps the number of sessions a user may hold.
// Creating a session beyond the cap evicts that user's least recently
// accessed session. Zero means unlimited.
func WithMaxSessionsPerUser(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxPerUser = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store on top of adapter.
func New(adapter store.Adapter, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
		locks:   make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the configured inactivity timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *Store) load(ctx context.Context, key string) (*Session, error) {
	raw, ok, err := s.adapter.Get(ctx, key)
	if err != nil {
		return nil, bridge.NewSessionStoreError("failed to load session", err)
	}
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, bridge.NewSessionStoreError("failed to decode session", err)
	}
	return &sess, nil
}

func (s *Store) save(ctx context.Context, key string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return bridge.NewSessionStoreError("failed to encode session", err)
	}
	if err := s.adapter.Set(ctx, key, raw); err != nil {
		return bridge.NewSessionStoreError("failed to save session", err)
	}
	return nil
}

// update applies fn to the session under its key lock, touches
// LastAccessedAt and persists the result.
func (s *Store) update(ctx context.Context, key Key, fn func(*Session) error) (*Session, error) {
	sk := key.storageKey()
	unlock := s.lock(sk)
	defer unlock()

	sess, err := s.load(ctx, sk)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, bridge.NewSessionStoreError(key.String(), bridge.ErrSessionNotFound)
	}
	if fn != nil {
		if err := fn(sess); err != nil {
			return nil, err
		}
	}
	sess.LastAccessedAt = s.now()
	if err := s.save(ctx, sk, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetOrCreate returns the session for key, creating it when absent.
// initialState seeds the state of a newly created session and is ignored
// for an existing one.
func (s *Store) GetOrCreate(ctx context.Context, key Key, initialState map[string]any) (*Session, error) {
	sk := key.storageKey()
	unlock := s.lock(sk)

	sess, err := s.load(ctx, sk)
	if err != nil {
		unlock()
		return nil, err
	}
	now := s.now()
	if sess != nil {
		sess.LastAccessedAt = now
		err := s.save(ctx, sk, sess)
		unlock()
		if err != nil {
			return nil, err
		}
		s.logger.Debug("reusing session", "session", key.String())
		return sess, nil
	}

	sess = &Session{
		AppName:        key.AppName,
		UserID:         key.UserID,
		ID:             key.ThreadID,
		State:          copyState(initialState),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	err = s.save(ctx, sk, sess)
	unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("created session", "session", key.String())

	if s.maxPerUser > 0 {
		if err := s.enforceUserLimit(ctx, key); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// enforceUserLimit evicts the least recently accessed sessions of the
// key's user, other than key itself, until the user is within the cap.
func (s *Store) enforceUserLimit(ctx context.Context, key Key) error {
	sessions, err := s.ListUser(ctx, key.AppName, key.UserID)
	if err != nil {
		return err
	}
	excess := len(sessions) - s.maxPerUser
	if excess <= 0 {
		return nil
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessedAt.Before(sessions[j].LastAccessedAt)
	})
	for _, old := range sessions {
		if excess == 0 {
			break
		}
		if old.ID == key.ThreadID {
			continue
		}
		if err := s.Delete(ctx, old.Key()); err != nil {
			return err
		}
		s.logger.Info("evicted session over per-user limit", "session", old.Key().String(), "limit", s.maxPerUser)
		excess--
	}
	return nil
}

// Get returns the session for key. A missing session is reported as a
// SessionStoreError wrapping bridge.ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, key Key) (*Session, error) {
	return s.update(ctx, key, nil)
}

// ProcessedIDs returns the set of processed message ids.
func (s *Store) ProcessedIDs(ctx context.Context, key Key) (map[string]bool, error) {
	sess, err := s.update(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	return toSet(sess.ProcessedMessageIDs), nil
}

// MarkProcessed adds ids to the processed set.
func (s *Store) MarkProcessed(ctx context.Context, key Key, ids ...string) error {
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.ProcessedMessageIDs = union(sess.ProcessedMessageIDs, ids)
		return nil
	})
	return err
}

// PendingToolCallIDs returns the set of client tool calls awaiting results.
func (s *Store) PendingToolCallIDs(ctx context.Context, key Key) (map[string]bool, error) {
	sess, err := s.update(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	return toSet(sess.PendingToolCallIDs), nil
}

// UpdatePendingToolCallIDs replaces the pending set.
func (s *Store) UpdatePendingToolCallIDs(ctx context.Context, key Key, ids []string) error {
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.PendingToolCallIDs = union(nil, ids)
		return nil
	})
	return err
}

// AddPendingToolCallIDs adds ids to the pending set.
func (s *Store) AddPendingToolCallIDs(ctx context.Context, key Key, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.PendingToolCallIDs = union(sess.PendingToolCallIDs, ids)
		return nil
	})
	return err
}

// ConsumePendingToolCallIDs removes ids from the pending set and returns
// the subset that was pending.
func (s *Store) ConsumePendingToolCallIDs(ctx context.Context, key Key, ids ...string) ([]string, error) {
	var consumed []string
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.PendingToolCallIDs, consumed = subtract(sess.PendingToolCallIDs, ids)
		return nil
	})
	return consumed, err
}

// Commit describes a set of changes applied atomically by Store.Commit.
type Commit struct {
	Processed      []string
	ConsumePending []string
	AddPending     []string
}

// IsEmpty reports whether the commit changes nothing.
func (c Commit) IsEmpty() bool {
	return len(c.Processed) == 0 && len(c.ConsumePending) == 0 && len(c.AddPending) == 0
}

// Commit applies c in one read-modify-write. Consumed ids are removed
// before added ids are inserted.
func (s *Store) Commit(ctx context.Context, key Key, c Commit) error {
	if c.IsEmpty() {
		return nil
	}
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.ProcessedMessageIDs = union(sess.ProcessedMessageIDs, c.Processed)
		sess.PendingToolCallIDs, _ = subtract(sess.PendingToolCallIDs, c.ConsumePending)
		sess.PendingToolCallIDs = union(sess.PendingToolCallIDs, c.AddPending)
		return nil
	})
	return err
}

// GetState returns a state value. Values round-trip through JSON, so
// numbers come back as float64.
func (s *Store) GetState(ctx context.Context, key Key, name string) (any, bool, error) {
	sess, err := s.update(ctx, key, nil)
	if err != nil {
		return nil, false, err
	}
	v, ok := sess.State[name]
	return v, ok, nil
}

// SetState sets a state value.
func (s *Store) SetState(ctx context.Context, key Key, name string, value any) error {
	_, err := s.update(ctx, key, func(sess *Session) error {
		if sess.State == nil {
			sess.State = make(map[string]any)
		}
		sess.State[name] = value
		return nil
	})
	return err
}

// MergeState sets every value in values.
func (s *Store) MergeState(ctx context.Context, key Key, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.update(ctx, key, func(sess *Session) error {
		if sess.State == nil {
			sess.State = make(map[string]any, len(values))
		}
		for k, v := range values {
			sess.State[k] = v
		}
		return nil
	})
	return err
}

// ReplaceState replaces the whole state map.
func (s *Store) ReplaceState(ctx context.Context, key Key, state map[string]any) error {
	_, err := s.update(ctx, key, func(sess *Session) error {
		sess.State = copyState(state)
		return nil
	})
	return err
}

// RemoveState deletes a state value.
func (s *Store) RemoveState(ctx context.Context, key Key, name string) error {
	_, err := s.update(ctx, key, func(sess *Session) error {
		delete(sess.State, name)
		return nil
	})
	return err
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	sk := key.storageKey()
	unlock := s.lock(sk)
	defer unlock()
	if err := s.adapter.Delete(ctx, sk); err != nil {
		return bridge.NewSessionStoreError("failed to delete session", err)
	}
	return nil
}

// DeleteUserSessions removes every session of a user and returns how many
// were removed.
func (s *Store) DeleteUserSessions(ctx context.Context, appName, userID string) (int, error) {
	keys, err := s.adapter.Keys(ctx, userPrefix(appName, userID))
	if err != nil {
		return 0, bridge.NewSessionStoreError("failed to list sessions", err)
	}
	n := 0
	for _, sk := range keys {
		key, ok := parseStorageKey(sk)
		if !ok {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// List returns snapshots of all sessions without touching them.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	return s.list(ctx, keyPrefix)
}

// ListUser returns snapshots of a user's sessions without touching them.
func (s *Store) ListUser(ctx context.Context, appName, userID string) ([]*Session, error) {
	return s.list(ctx, userPrefix(appName, userID))
}

func (s *Store) list(ctx context.Context, prefix string) ([]*Session, error) {
	keys, err := s.adapter.Keys(ctx, prefix)
	if err != nil {
		return nil, bridge.NewSessionStoreError("failed to list sessions", err)
	}
	out := make([]*Session, 0, len(keys))
	for _, sk := range keys {
		sess, err := s.load(ctx, sk)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Count returns the number of stored sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.adapter.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, bridge.NewSessionStoreError("failed to list sessions", err)
	}
	return len(keys), nil
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, bridge.ErrSessionNotFound)
}

func copyState(state map[string]any) map[string]any {
	if len(state) == 0 {
		return nil
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
