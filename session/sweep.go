package session

import (
	"context"
	"time"

	"github.com/spetersoncode/bridge"
)

// Sweep evicts sessions idle for longer than the timeout as of now and
// returns how many were removed. Sessions with pending client tool calls
// are kept unless WithEvictPending(true) was set.
//
// Each candidate is re-read under its key lock before deletion, so a
// session touched by a concurrent run after listing survives.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.timeout <= 0 {
		return 0, nil
	}
	keys, err := s.adapter.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, bridge.NewSessionStoreError("failed to list sessions", err)
	}

	evicted := 0
	for _, sk := range keys {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		ok, err := s.evictIfExpired(ctx, sk, now)
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}
	return evicted, nil
}

func (s *Store) evictIfExpired(ctx context.Context, sk string, now time.Time) (bool, error) {
	unlock := s.lock(sk)
	defer unlock()

	sess, err := s.load(ctx, sk)
	if err != nil || sess == nil {
		return false, err
	}
	if !sess.Expired(now, s.timeout) {
		return false, nil
	}
	if sess.HasPending() && !s.evictPending {
		s.logger.Debug("keeping idle session with pending tool calls",
			"session", sess.Key().String(),
			"pending", len(sess.PendingToolCallIDs))
		return false, nil
	}
	if err := s.adapter.Delete(ctx, sk); err != nil {
		return false, bridge.NewSessionStoreError("failed to evict session", err)
	}
	s.logger.Info("evicted idle session",
		"session", sess.Key().String(),
		"idle", now.Sub(sess.LastAccessedAt).Round(time.Second))
	return true, nil
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
// The returned channel is closed when the sweeper has stopped.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx, s.now())
				if err != nil && ctx.Err() == nil {
					s.logger.Error("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Info("session sweep complete", "evicted", n)
				}
			}
		}
	}()
	return done
}
