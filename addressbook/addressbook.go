// Package addressbook loads the table of deployed contract addresses per
// network. The table is a JSON document of the form
//
//	{"TEST": {"PetToken": "0x..."}, "MAIN": {"PetToken": "0x..."}}
//
// read from a file or an HTTP endpoint, optionally cached.
package addressbook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"

	"github.com/tranvictor/petconnect"
)

var ErrInvalidBook = fmt.Errorf("invalid address book")

// Source fetches the raw address table
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Cache keeps a decoded table between loads
type Cache interface {
	GetAddressBook(ctx context.Context) (petconnect.AddressBook, bool, error)
	SetAddressBook(ctx context.Context, book petconnect.AddressBook) error
}

// Decode parses and validates a raw table. Network keys accept anything
// petconnect.ParseNetwork does.
func Decode(data []byte) (petconnect.AddressBook, error) {
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBook, err)
	}

	book := make(petconnect.AddressBook, len(raw))
	for key, entries := range raw {
		n, ok := petconnect.ParseNetwork(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidBook, key)
		}
		names := book[n]
		if names == nil {
			names = make(map[string]common.Address, len(entries))
			book[n] = names
		}
		for name, addr := range entries {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("%w: %s on %s has bad address %q", ErrInvalidBook, name, n, addr)
			}
			names[name] = common.HexToAddress(addr)
		}
	}
	return book, nil
}

// FileSource reads the table from a local file
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read address book: %w", err)
	}
	return data, nil
}

// HTTPSource downloads the table with a GET request
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't build address book request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't fetch address book: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("couldn't fetch address book: %s returned %s", s.URL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// Static serves a fixed table
type Static petconnect.AddressBook

func (s Static) LoadAddressBook(ctx context.Context) (petconnect.AddressBook, error) {
	return petconnect.AddressBook(s), nil
}

// Loader memoizes the table fetched from a Source. The first successful
// load is kept until Reset.
type Loader struct {
	mu     sync.Mutex
	source Source
	cache  Cache
	book   petconnect.AddressBook
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithCache consults c before the source and fills it after a fetch
func WithCache(c Cache) LoaderOption {
	return func(l *Loader) {
		l.cache = c
	}
}

func NewLoader(src Source, opts ...LoaderOption) *Loader {
	l := &Loader{source: src}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) LoadAddressBook(ctx context.Context) (petconnect.AddressBook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.book != nil {
		return l.book, nil
	}

	if l.cache != nil {
		book, ok, err := l.cache.GetAddressBook(ctx)
		if err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Address book cache read failed, fetching from source")
		} else if ok {
			l.book = book
			return book, nil
		}
	}

	data, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	book, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.SetAddressBook(ctx, book); err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Couldn't cache address book")
		}
	}

	logger.WithFields(logger.Fields{
		"networks": len(book),
	}).Debug("Address book loaded")

	l.book = book
	return book, nil
}

// Reset drops the memoized table. The next load goes to the cache or source again.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.book = nil
	l.mu.Unlock()
}

var (
	_ petconnect.AddressBookLoader = (*Loader)(nil)
	_ petconnect.AddressBookLoader = Static(nil)
)
