package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/tranvictor/petconnect"
)

var (
	watchInterval time.Duration
	watchReprompt time.Duration
	autoSwitch    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect, then warn whenever the external wallet leaves the game network",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		a.resolver.OnNetworkChange(func(old, new petconnect.Network) {
			fmt.Fprintln(os.Stderr, aurora.Yellow(fmt.Sprintf("Network changed from %s to %s", old, new)))
		})

		res, err := a.resolver.Init(ctx)
		if err != nil {
			return err
		}
		if err := printResult(res); err != nil {
			return err
		}

		w := a.resolver.NewNetworkWatcher(func(ctx context.Context, expected petconnect.Network, walletChainID uint64) {
			fmt.Fprintln(os.Stderr, aurora.Red(fmt.Sprintf(
				"Wallet is on chain %d but Petworld runs on %s (chain %d)", walletChainID, expected, expected.ChainID())))
			if !autoSwitch {
				return
			}
			if _, err := a.resolver.SwitchNetwork(ctx, expected); err != nil {
				fmt.Fprintln(os.Stderr, aurora.Red(err.Error()))
			}
		},
			petconnect.WithWatchInterval(watchInterval),
			petconnect.WithMinReprompt(watchReprompt),
		)

		err = w.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	f := watchCmd.Flags()
	f.DurationVar(&watchInterval, "interval", petconnect.DefaultWatchInterval, "how often the wallet chain is checked")
	f.DurationVar(&watchReprompt, "reprompt", petconnect.DefaultMinRepromptDelay, "minimum delay between two warnings")
	f.BoolVar(&autoSwitch, "auto-switch", false, "ask the wallet to switch back on mismatch")
}
