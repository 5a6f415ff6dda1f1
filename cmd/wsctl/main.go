// File: cmd/wsctl/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// wsctl is the operator CLI: serve runs a WebSocket echo listener, dial
// connects to one as a raw client. Command structure (one root cobra.Command
// with subcommands, SilenceUsage/SilenceErrors, a Fprintf-to-stderr error
// path in main) is grounded on vango-go-vango's cmd/vango/main.go.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "wsctl",
		Short:         "wscore operator CLI: run or probe a WebSocket listener",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), dialCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wsctl: error: %s\n", err)
		os.Exit(1)
	}
}
