package main

import (
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/tranvictor/petconnect"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the game network petconnect would use",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n := a.resolver.DetectNetwork(ctx)
		fmt.Printf("%s (chain id %d, %s)\n", aurora.Green(n.String()), n.ChainID(), n.ExplorerURL())
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [main|test]",
	Short: "Switch the game network, remember it and reconnect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, ok := petconnect.ParseNetwork(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", petconnect.ErrInvalidNetwork, args[0])
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.resolver.Init(ctx); err != nil {
			return err
		}
		res, err := a.resolver.SwitchNetwork(ctx, n)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

func init() {
	networkCmd.AddCommand(switchCmd)
}
