package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past queries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			page, err := c.History(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), page)
			}

			out := cmd.OutOrStdout()
			for _, e := range page.Entries {
				cached := ""
				if e.CacheHit {
					cached = " [cached]"
				}
				fmt.Fprintf(out, "%s  %-9s %s%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Status, e.QueryText, cached)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "entries to fetch")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

func newEndpointsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the server's configured analysis endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			list, err := c.Endpoints(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), list)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config version: %s\n", list.ConfigVersion)
			for _, ep := range list.Endpoints {
				fmt.Fprintf(out, "  %-28s %s\n", ep.ID, ep.Domain)
			}
			return nil
		},
	}
}
