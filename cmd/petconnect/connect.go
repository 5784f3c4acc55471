package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/tranvictor/petconnect"
)

var promptConnect bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Resolve a connection and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.resolver.Init(ctx)
		if err != nil {
			return err
		}

		if promptConnect && !res.Success && res.Strategy == petconnect.StrategyExternalWalletConnect {
			fmt.Fprintln(os.Stderr, aurora.Yellow("Asking the wallet to connect..."))
			res, err = a.resolver.Connect(ctx)
			if err != nil {
				return err
			}
		}

		return printResult(res)
	},
}

func init() {
	connectCmd.Flags().BoolVar(&promptConnect, "prompt", false, "ask a disconnected external wallet to connect")
}

func printResult(res *petconnect.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	summary := fmt.Sprintf("[%s] %s on %s", res.Strategy, res.Message, res.Network)
	switch {
	case res.Success && res.ReadOnly:
		fmt.Fprintln(os.Stderr, aurora.Yellow(summary))
	case res.Success:
		fmt.Fprintln(os.Stderr, aurora.Green(summary))
	case res.RequiresUserAction:
		fmt.Fprintln(os.Stderr, aurora.Yellow(summary))
	default:
		fmt.Fprintln(os.Stderr, aurora.Red(summary))
	}
	return nil
}
