// Package redis provides Redis-based implementations of the petconnect
// persistence interfaces.
//
// It lets several processes (or a restarted one) share the remembered
// network choice and the contract address table:
//   - PreferenceStore: implements petconnect.PreferenceStore
//   - AddressBookCache: implements addressbook.Cache
//
// # Basic Usage
//
//	import (
//	    "github.com/redis/go-redis/v9"
//	    "github.com/tranvictor/petconnect"
//	    "github.com/tranvictor/petconnect/addressbook"
//	    redisstore "github.com/tranvictor/petconnect/persistence/redis"
//	)
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: "localhost:6379",
//	})
//
//	loader := addressbook.NewLoader(
//	    addressbook.HTTPSource{URL: "https://example.org/addresses.json"},
//	    addressbook.WithCache(redisstore.NewAddressBookCache(client, redisstore.WithAddressBookTTL(time.Hour))),
//	)
//
//	r := petconnect.New(
//	    petconnect.WithPreferenceStore(redisstore.NewPreferenceStore(client)),
//	    petconnect.WithAddressBook(loader),
//	)
//
// # Multi-Tenant Usage
//
// Use key prefixes to isolate data for different applications or environments:
//
//	prod := redisstore.NewPreferenceStore(client, redisstore.WithPreferenceKeyPrefix("prod"))
//	staging := redisstore.NewPreferenceStore(client, redisstore.WithPreferenceKeyPrefix("staging"))
//
// # Redis Key Structure
//
//   - petconnect:network:preference - Remembered network (JSON)
//   - petconnect:addressbook - Contract address table (JSON, with optional TTL)
//
// # Supported Redis Configurations
//
// All stores take a redis.UniversalClient and work with standalone Redis,
// Sentinel and Cluster.
package redis
