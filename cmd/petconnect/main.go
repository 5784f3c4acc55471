// Command petconnect resolves a Petworld wallet connection from the
// terminal: it picks the best available wallet, verifies it against the
// game network and reports what the game UI would show.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
