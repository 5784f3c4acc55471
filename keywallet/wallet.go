// Package keywallet manages the application's own password-encrypted
// signing keys, stored as go-ethereum keystore files in one directory.
package keywallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/tranvictor/jarvis/util/account"

	"github.com/tranvictor/petconnect"
)

var (
	ErrKeyNotFound = fmt.Errorf("key not found in keystore")
	ErrNoNode      = fmt.Errorf("no node url configured")
)

// Wallet is a keystore directory plus at most one unlocked key.
// It implements petconnect.PrivateKeyWallet.
type Wallet struct {
	mu sync.RWMutex

	dir     string
	nodeURL string
	dial    petconnect.Dialer

	acc    *account.Account
	client petconnect.Client
	locked bool
}

// Option configures a Wallet
type Option func(*Wallet)

// WithDialer sets how the client of an unlocked key is built
func WithDialer(d petconnect.Dialer) Option {
	return func(w *Wallet) {
		w.dial = d
	}
}

// New creates a wallet over the keystore directory dir. Unlocked keys get a
// client connected to nodeURL.
func New(dir, nodeURL string, opts ...Option) *Wallet {
	w := &Wallet{
		dir:     dir,
		nodeURL: nodeURL,
		dial:    petconnect.DefaultDialer,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type keyFile struct {
	path    string
	address common.Address
}

type keystoreHeader struct {
	Address string `json:"address"`
}

// scan lists the keystore files of the directory. Unreadable entries are skipped.
func (w *Wallet) scan() ([]keyFile, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't read keystore dir: %w", err)
	}

	var files []keyFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(w.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var h keystoreHeader
		if err := json.Unmarshal(data, &h); err != nil || !common.IsHexAddress(h.Address) {
			continue
		}
		files = append(files, keyFile{path: path, address: common.HexToAddress(h.Address)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// Keys returns the addresses of all stored keys
func (w *Wallet) Keys() ([]common.Address, error) {
	files, err := w.scan()
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(files))
	for _, f := range files {
		out = append(out, f.address)
	}
	return out, nil
}

func (w *Wallet) KeyCount() int {
	files, err := w.scan()
	if err != nil {
		logger.WithFields(logger.Fields{
			"dir":   w.dir,
			"error": err,
		}).Warn("Couldn't scan keystore")
		return 0
	}
	return len(files)
}

// Unlock decrypts the key of addr and connects its client
func (w *Wallet) Unlock(ctx context.Context, addr common.Address, password string) error {
	if w.nodeURL == "" {
		return ErrNoNode
	}

	files, err := w.scan()
	if err != nil {
		return err
	}
	var path string
	for _, f := range files {
		if f.address == addr {
			path = f.path
			break
		}
	}
	if path == "" {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, addr.Hex())
	}

	acc, err := account.NewKeystoreAccount(path, password)
	if err != nil {
		return fmt.Errorf("unlocking wallet failed: %w", err)
	}

	client, err := w.dial(ctx, w.nodeURL)
	if err != nil {
		return fmt.Errorf("couldn't connect wallet client: %w", err)
	}

	w.mu.Lock()
	old := w.client
	w.acc = acc
	w.client = client
	w.locked = false
	w.mu.Unlock()

	if old != nil {
		closeClient(old)
	}

	logger.WithFields(logger.Fields{
		"address": acc.Address().Hex(),
	}).Info("Private key wallet unlocked")
	return nil
}

// Lock forgets the unlocked key. The wallet reports locked until the next Unlock.
func (w *Wallet) Lock() {
	w.mu.Lock()
	old := w.client
	w.acc = nil
	w.client = nil
	w.locked = true
	w.mu.Unlock()

	if old != nil {
		closeClient(old)
	}
}

func (w *Wallet) IsReady() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.acc != nil && w.client != nil
}

func (w *Wallet) IsLocked() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.locked
}

func (w *Wallet) Address() (common.Address, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.acc == nil {
		return common.Address{}, false
	}
	return w.acc.Address(), true
}

func (w *Wallet) Client() petconnect.Client {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.client
}

// Account returns the unlocked signing account, nil when locked
func (w *Wallet) Account() *account.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.acc
}

func closeClient(c petconnect.Client) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Compile-time check that Wallet implements petconnect.PrivateKeyWallet
var _ petconnect.PrivateKeyWallet = (*Wallet)(nil)
