package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/petconnect"
	"github.com/tranvictor/petconnect/addressbook"
)

var (
	tokenAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	nftAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testBook() petconnect.AddressBook {
	return petconnect.AddressBook{
		petconnect.NetworkTest: {"PetToken": tokenAddr, "PetNFT": nftAddr},
		petconnect.NetworkMain: {"PetToken": tokenAddr},
	}
}

type failingSource struct{ calls int }

func (s *failingSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls++
	return nil, errors.New("origin offline")
}

func TestAddressBookCache_Miss(t *testing.T) {
	client := testRedisClient(t)
	cache := NewAddressBookCache(client)

	book, ok, err := cache.GetAddressBook(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, book)
}

func TestAddressBookCache_RoundTrip(t *testing.T) {
	client := testRedisClient(t)
	cache := NewAddressBookCache(client)
	ctx := context.Background()

	require.NoError(t, cache.SetAddressBook(ctx, testBook()))

	book, ok, err := cache.GetAddressBook(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testBook(), book)

	addr, found, err := cache.Contains(ctx, petconnect.NetworkTest, "PetNFT")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, nftAddr, addr)

	_, found, err = cache.Contains(ctx, petconnect.NetworkMain, "PetNFT")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAddressBookCache_TTLAndInvalidate(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()
	cache := NewAddressBookCache(client, WithAddressBookTTL(10*time.Minute), WithAddressBookKeyPrefix("app"))

	require.NoError(t, cache.SetAddressBook(ctx, testBook()))

	ttl, err := client.TTL(ctx, "app:"+addressBookKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 9*time.Minute)

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err := cache.GetAddressBook(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddressBookCache_ServesLoaderWhenOriginIsDown(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()
	cache := NewAddressBookCache(client)
	require.NoError(t, cache.SetAddressBook(ctx, testBook()))

	src := &failingSource{}
	loader := addressbook.NewLoader(src, addressbook.WithCache(cache))

	book, err := loader.LoadAddressBook(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, src.calls)
	addr, err := book.Lookup(petconnect.NetworkTest, "PetToken")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, addr)
}
