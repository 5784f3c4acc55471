package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tranvictor/petconnect"
	"github.com/tranvictor/petconnect/addressbook"
)

const addressBookKey = "petconnect:addressbook"

// AddressBookCache keeps the decoded contract address table in Redis.
// It implements the addressbook.Cache interface.
type AddressBookCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// AddressBookCacheOption configures an AddressBookCache.
type AddressBookCacheOption func(*AddressBookCache)

// WithAddressBookKeyPrefix sets a custom prefix for the Redis key.
func WithAddressBookKeyPrefix(prefix string) AddressBookCacheOption {
	return func(c *AddressBookCache) {
		c.keyPrefix = prefix
	}
}

// WithAddressBookTTL makes the cached table expire so a changed deployment
// is picked up. Zero keeps it until overwritten.
func WithAddressBookTTL(ttl time.Duration) AddressBookCacheOption {
	return func(c *AddressBookCache) {
		c.ttl = ttl
	}
}

func NewAddressBookCache(client redis.UniversalClient, opts ...AddressBookCacheOption) *AddressBookCache {
	c := &AddressBookCache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AddressBookCache) key() string {
	return prefixed(c.keyPrefix, addressBookKey)
}

func (c *AddressBookCache) GetAddressBook(ctx context.Context) (petconnect.AddressBook, bool, error) {
	data, err := c.client.Get(ctx, c.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get address book: %w", err)
	}

	book, err := addressbook.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return book, true, nil
}

func (c *AddressBookCache) SetAddressBook(ctx context.Context, book petconnect.AddressBook) error {
	raw := make(map[string]map[string]string, len(book))
	for n, names := range book {
		entries := make(map[string]string, len(names))
		for name, addr := range names {
			entries[name] = addr.Hex()
		}
		raw[n.String()] = entries
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal address book: %w", err)
	}
	if err := c.client.Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save address book: %w", err)
	}
	return nil
}

// Invalidate drops the cached table
func (c *AddressBookCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate address book: %w", err)
	}
	return nil
}

// Contains reports whether name is cached for network n
func (c *AddressBookCache) Contains(ctx context.Context, n petconnect.Network, name string) (common.Address, bool, error) {
	book, ok, err := c.GetAddressBook(ctx)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	addr, err := book.Lookup(n, name)
	if err != nil {
		return common.Address{}, false, nil
	}
	return addr, true, nil
}

// Compile-time check that AddressBookCache implements addressbook.Cache
var _ addressbook.Cache = (*AddressBookCache)(nil)
