package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tranvictor/petconnect"
	"github.com/tranvictor/petconnect/addressbook"
	"github.com/tranvictor/petconnect/keywallet"
	redisstore "github.com/tranvictor/petconnect/persistence/redis"
	"github.com/tranvictor/petconnect/provider"
)

const passwordEnv = "PETCONNECT_KEYSTORE_PASSWORD"

type flags struct {
	network   string
	pageURL   string
	keystore  string
	address   string
	node      string
	walletRPC string
	prefFile  string
	redisURL  string
	addresses string
	contracts []string
}

var cfg flags

var rootCmd = &cobra.Command{
	Use:   "petconnect",
	Short: "Resolve the Petworld wallet connection",
	Long: fmt.Sprintf(`petconnect picks one connection for Petworld among, in order:

	1. the local keystore wallet (--keystore, --address)
	2. an external wallet speaking JSON-RPC (--wallet-rpc)
	3. a read-only public endpoint of the game network

The game network is taken from --network, the remembered preference,
the "network" parameter of --page-url, or the connected wallet.

Custom read-only nodes can be set with the following env vars:
	1. For MAIN: %s
	2. For TEST: %s

The keystore password is read from %s or prompted for.`,
		petconnect.NetworkMain.Chain().GetNodeVariableName(),
		petconnect.NetworkTest.Chain().GetNodeVariableName(),
		passwordEnv,
	),
	SilenceUsage: true,
}

func init() {
	home, _ := os.UserHomeDir()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfg.network, "network", "k", "", "pin the game network. Valid values: \"main\", \"test\".")
	pf.StringVar(&cfg.pageURL, "page-url", "", "page URL whose \"network\" query parameter is honored")
	pf.StringVar(&cfg.keystore, "keystore", "", "keystore directory of the local wallet")
	pf.StringVar(&cfg.address, "address", "", "keystore address to unlock")
	pf.StringVar(&cfg.node, "node", "", "node used by the local wallet. Defaults to the first endpoint of the network")
	pf.StringVar(&cfg.walletRPC, "wallet-rpc", "", fmt.Sprintf("JSON-RPC endpoint of an external wallet, e.g. %s", provider.DefaultURL))
	pf.StringVar(&cfg.prefFile, "pref-file", filepath.Join(home, ".petconnect", "network.json"), "where the network choice is remembered")
	pf.StringVar(&cfg.redisURL, "redis", "", "redis URL. When set the network choice and address book are kept in redis")
	pf.StringVar(&cfg.addresses, "addresses", "", "contract address book, a file path or an http(s) URL")
	pf.StringSliceVar(&cfg.contracts, "contracts", nil, "contracts to bind as name=kind, kind being erc20 or erc721")

	rootCmd.AddCommand(connectCmd, networkCmd, watchCmd)
}

// app is the resolver plus what has to be released after a command
type app struct {
	resolver *petconnect.Resolver
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// pinnedNetwork returns the --network value, if any
func pinnedNetwork() (petconnect.Network, bool, error) {
	if cfg.network == "" {
		return "", false, nil
	}
	n, ok := petconnect.ParseNetwork(cfg.network)
	if !ok {
		return "", false, fmt.Errorf("%w: %q", petconnect.ErrInvalidNetwork, cfg.network)
	}
	return n, true, nil
}

func newApp(ctx context.Context, extra ...petconnect.ResolverOption) (*app, error) {
	a := &app{}
	opts := []petconnect.ResolverOption{
		petconnect.WithPageURL(cfg.pageURL),
	}

	session := petconnect.NewSession()
	pinned, ok, err := pinnedNetwork()
	if err != nil {
		return nil, err
	}
	if ok {
		session.SetNetwork(pinned)
	}
	opts = append(opts, petconnect.WithSession(session))

	var rdb redis.UniversalClient
	if cfg.redisURL != "" {
		ropts, err := redis.ParseURL(cfg.redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		a.closers = append(a.closers, func() { _ = client.Close() })
		rdb = client
		opts = append(opts, petconnect.WithPreferenceStore(redisstore.NewPreferenceStore(rdb)))
	} else if cfg.prefFile != "" {
		opts = append(opts, petconnect.WithPreferenceStore(petconnect.NewFilePreferenceStore(cfg.prefFile)))
	}

	if cfg.addresses != "" {
		bookOpts, err := addressBookOptions(rdb)
		if err != nil {
			return nil, err
		}
		opts = append(opts, bookOpts...)
	}

	if cfg.walletRPC != "" {
		p, err := provider.Dial(ctx, cfg.walletRPC)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		opts = append(opts, petconnect.WithExternalProvider(p))
	}

	if cfg.keystore != "" {
		// detection on a private session so the real one is only written
		// by the resolver itself
		detectSession := petconnect.NewSession()
		if ok {
			detectSession.SetNetwork(pinned)
		}
		detector := petconnect.New(append(opts[:len(opts):len(opts)], petconnect.WithSession(detectSession))...)

		w, err := openKeystore(ctx, keystoreNode(ctx, detector))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, w.Lock)
		opts = append(opts, petconnect.WithPrivateKeyWallet(w))
	}

	a.resolver = petconnect.New(append(opts, extra...)...)
	return a, nil
}

func addressBookOptions(rdb redis.UniversalClient) ([]petconnect.ResolverOption, error) {
	var src addressbook.Source = addressbook.FileSource{Path: cfg.addresses}
	if strings.HasPrefix(cfg.addresses, "http://") || strings.HasPrefix(cfg.addresses, "https://") {
		src = addressbook.HTTPSource{URL: cfg.addresses}
	}

	var loaderOpts []addressbook.LoaderOption
	if rdb != nil {
		loaderOpts = append(loaderOpts, addressbook.WithCache(redisstore.NewAddressBookCache(rdb)))
	}
	opts := []petconnect.ResolverOption{
		petconnect.WithAddressBook(addressbook.NewLoader(src, loaderOpts...)),
	}

	for _, entry := range cfg.contracts {
		name, kind, found := strings.Cut(entry, "=")
		if !found {
			kind = "erc20"
		}
		abiJSON, ok := builtinABIs[strings.ToLower(kind)]
		if !ok {
			return nil, fmt.Errorf("unknown contract kind %q for %s", kind, name)
		}
		initFn, err := petconnect.NewABIInitializer(name, abiJSON)
		if err != nil {
			return nil, err
		}
		opts = append(opts, petconnect.WithContract(name, initFn))
	}
	if len(cfg.contracts) > 0 {
		opts = append(opts, petconnect.WithAutoContracts())
	}
	return opts, nil
}

// keystoreNode returns --node, or the first endpoint of the network the
// detector resolves. The key wallet has to sit on the chain the resolver
// later checks contracts against.
func keystoreNode(ctx context.Context, detector *petconnect.Resolver) string {
	if cfg.node != "" {
		return cfg.node
	}
	return detector.DetectNetwork(ctx).RPCURLs()[0]
}

// openKeystore opens the local wallet and unlocks --address when given.
// Without --address no key is unlocked and the resolver waits for one.
func openKeystore(ctx context.Context, node string) (*keywallet.Wallet, error) {
	w := keywallet.New(cfg.keystore, node)
	if cfg.address == "" {
		return w, nil
	}
	if !common.IsHexAddress(cfg.address) {
		return nil, fmt.Errorf("invalid address %q", cfg.address)
	}

	password, err := readPassword(cfg.address)
	if err != nil {
		return nil, err
	}
	if err := w.Unlock(ctx, common.HexToAddress(cfg.address), password); err != nil {
		logger.WithFields(logger.Fields{
			"address": cfg.address,
			"error":   err,
		}).Warn("Couldn't unlock keystore wallet, continuing locked")
		w.Lock()
	}
	return w, nil
}

func readPassword(address string) (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for the password of %s, set %s", address, passwordEnv)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", address)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("couldn't read password: %w", err)
	}
	return string(pw), nil
}
