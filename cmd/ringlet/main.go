// Command ringlet runs the cooperative agent runtime. The serve command
// reads line-delimited JSON envelopes from stdin and routes them to the
// configured agents; the chat command is an interactive retrieval REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ringlet-dev/ringlet"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ringlet",
		Short:         "Cooperative multi-agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run agents from a config file, reading envelopes from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ringlet.Run(configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "configuration file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ringlet %s\n", Version)
		},
	}
}
