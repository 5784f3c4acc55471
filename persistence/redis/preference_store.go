package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tranvictor/petconnect"
)

const preferenceKey = "petconnect:network:preference"

// PreferenceStore keeps the remembered network in Redis.
// It implements the petconnect.PreferenceStore interface.
type PreferenceStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// PreferenceStoreOption configures a PreferenceStore.
type PreferenceStoreOption func(*PreferenceStore)

// WithPreferenceKeyPrefix sets a custom prefix for the Redis key.
func WithPreferenceKeyPrefix(prefix string) PreferenceStoreOption {
	return func(s *PreferenceStore) {
		s.keyPrefix = prefix
	}
}

// WithPreferenceTTL makes the remembered network expire. Zero keeps it forever.
func WithPreferenceTTL(ttl time.Duration) PreferenceStoreOption {
	return func(s *PreferenceStore) {
		s.ttl = ttl
	}
}

func NewPreferenceStore(client redis.UniversalClient, opts ...PreferenceStoreOption) *PreferenceStore {
	s := &PreferenceStore{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PreferenceStore) key() string {
	return prefixed(s.keyPrefix, preferenceKey)
}

type preferenceData struct {
	Network   string `json:"network"`
	UpdatedAt int64  `json:"updated_at"` // Unix seconds
}

// LoadNetwork returns the remembered network. An absent key or a value
// that is not a known network reports ok=false.
func (s *PreferenceStore) LoadNetwork(ctx context.Context) (petconnect.Network, bool, error) {
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get network preference: %w", err)
	}

	var rec preferenceData
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal network preference: %w", err)
	}
	n, ok := petconnect.ParseNetwork(rec.Network)
	return n, ok, nil
}

func (s *PreferenceStore) SaveNetwork(ctx context.Context, n petconnect.Network) error {
	if !n.Valid() {
		return fmt.Errorf("%w: %q", petconnect.ErrInvalidNetwork, n)
	}
	data, err := json.Marshal(preferenceData{
		Network:   n.String(),
		UpdatedAt: s.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal network preference: %w", err)
	}
	if err := s.client.Set(ctx, s.key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save network preference: %w", err)
	}
	return nil
}

// Clear forgets the remembered network
func (s *PreferenceStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("failed to clear network preference: %w", err)
	}
	return nil
}

func prefixed(prefix, key string) string {
	if prefix != "" {
		return prefix + ":" + key
	}
	return key
}

// Compile-time check that PreferenceStore implements petconnect.PreferenceStore
var _ petconnect.PreferenceStore = (*PreferenceStore)(nil)
