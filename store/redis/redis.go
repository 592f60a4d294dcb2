// Package redis implements store.Adapter on Redis using go-redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spetersoncode/bridge/store"
)

const (
	defaultPrefix   = "agui"
	defaultScanSize = 200
)

// Adapter stores each value under prefix:key. Keys passed to and returned by
// the Adapter never include the prefix.
type Adapter struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithPassword(password string) Option {
	return func(a *Adapter) {
		a.password = password
	}
}

func WithDB(db int) Option {
	return func(a *Adapter) {
		a.db = db
	}
}

// WithTTL sets an expiry refreshed on every write. Zero means no expiry,
// leaving eviction to the session sweeper.
func WithTTL(ttl time.Duration) Option {
	return func(a *Adapter) {
		if ttl >= 0 {
			a.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(prefix) != "" {
			a.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.client = client
		}
	}
}

// New connects to addr and verifies the connection with PING.
func New(addr string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	a := &Adapter{
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = goredis.NewClient(&goredis.Options{
			Addr:     a.addr,
			Password: a.password,
			DB:       a.db,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.client.Ping(ctx).Err(); err != nil {
		_ = a.client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return a, nil
}

func (a *Adapter) key(k string) string {
	return a.prefix + ":" + k
}

// Get retrieves a value by key.
func (a *Adapter) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	b, err := a.client.Get(ctx, a.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return json.RawMessage(b), true, nil
}

// Set stores a value by key.
func (a *Adapter) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := a.client.Set(ctx, a.key(key), []byte(value), a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Keys scans for keys starting with prefix and returns them sorted.
func (a *Adapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := a.key(escapeGlob(prefix)) + "*"
	full := a.prefix + ":"

	seen := make(map[string]struct{})
	var cursor uint64
	for {
		batch, next, err := a.client.Scan(ctx, cursor, match, defaultScanSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, k := range batch {
			seen[strings.TrimPrefix(k, full)] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the underlying client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return store.ErrClosed
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

var _ store.Adapter = (*Adapter)(nil)
