// Package cli implements the geoinsight command-line client.  It talks to
// a running server through the pkg/client SDK.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eastgrand/geoinsight/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type rootOptions struct {
	serverAddr string
	timeout    time.Duration
	jsonOutput bool
}

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "geoinsight",
		Short:         "Query a geoinsight server from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.serverAddr, "server", "http://localhost:8080", "server base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print raw JSON responses")

	root.AddCommand(
		newQueryCommand(opts),
		newHistoryCommand(opts),
		newEndpointsCommand(opts),
		newServeCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) newClient() (*client.Client, error) {
	return client.NewClient(o.serverAddr, client.WithTimeout(o.timeout))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "geoinsight %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
