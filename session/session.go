// Package session tracks per-thread conversation state across runs:
// which client messages have been processed, which client-side tool calls
// are still awaiting results, and arbitrary key/value state.
//
// Sessions are owned by a Store. Callers receive snapshots and mutate
// sessions only through Store methods, each of which is a single atomic
// read-modify-write of the session record.
package session

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const keyPrefix = "session/"

// Key identifies a session.
type Key struct {
	AppName  string
	UserID   string
	ThreadID string
}

// String returns a human-readable form of the key for logs.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.ThreadID)
}

func (k Key) storageKey() string {
	return userPrefix(k.AppName, k.UserID) + url.PathEscape(k.ThreadID)
}

func userPrefix(appName, userID string) string {
	return keyPrefix + url.PathEscape(appName) + "/" + url.PathEscape(userID) + "/"
}

// Session is a snapshot of a session record.
type Session struct {
	AppName             string         `json:"appName"`
	UserID              string         `json:"userId"`
	ID                  string         `json:"id"`
	ProcessedMessageIDs []string       `json:"processedMessageIds,omitempty"`
	PendingToolCallIDs  []string       `json:"pendingToolCallIds,omitempty"`
	State               map[string]any `json:"state,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	LastAccessedAt      time.Time      `json:"lastAccessedAt"`
}

// Key returns the key identifying the session.
func (s *Session) Key() Key {
	return Key{AppName: s.AppName, UserID: s.UserID, ThreadID: s.ID}
}

// IsProcessed reports whether the message id has been processed.
func (s *Session) IsProcessed(id string) bool {
	return contains(s.ProcessedMessageIDs, id)
}

// ProcessedSet returns the processed message ids as a set.
func (s *Session) ProcessedSet() map[string]bool {
	return toSet(s.ProcessedMessageIDs)
}

// HasPending reports whether any client tool calls await results.
func (s *Session) HasPending() bool {
	return len(s.PendingToolCallIDs) > 0
}

// Expired reports whether the session has been idle longer than timeout.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(s.LastAccessedAt) > timeout
}

func contains(sorted []string, id string) bool {
	i := sort.SearchStrings(sorted, id)
	return i < len(sorted) && sorted[i] == id
}

// union returns the sorted, deduplicated union of set and ids.
// Empty ids are dropped.
func union(set []string, ids []string) []string {
	m := toSet(set)
	for _, id := range ids {
		if id != "" {
			m[id] = true
		}
	}
	return fromSet(m)
}

// subtract removes ids from set and returns the remainder together with
// the ids that were actually present.
func subtract(set []string, ids []string) (rest []string, removed []string) {
	m := toSet(set)
	for _, id := range ids {
		if m[id] {
			delete(m, id)
			removed = append(removed, id)
		}
	}
	return fromSet(m), removed
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func fromSet(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func parseStorageKey(k string) (Key, bool) {
	parts := strings.Split(strings.TrimPrefix(k, keyPrefix), "/")
	if len(parts) != 3 {
		return Key{}, false
	}
	var key Key
	var err error
	if key.AppName, err = url.PathUnescape(parts[0]); err != nil {
		return Key{}, false
	}
	if key.UserID, err = url.PathUnescape(parts[1]); err != nil {
		return Key{}, false
	}
	if key.ThreadID, err = url.PathUnescape(parts[2]); err != nil {
		return Key{}, false
	}
	return key, true
}
