package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eastgrand/geoinsight/pkg/client"
	"github.com/eastgrand/geoinsight/pkg/types/insight"
)

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var (
		persona     string
		endpointID  string
		targetField string
		sampleSize  int
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a natural-language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			ins, err := c.Query(cmd.Context(), client.QueryRequest{
				Text:    strings.Join(args, " "),
				Persona: persona,
				Overrides: client.QueryOverrides{
					EndpointID:  endpointID,
					TargetField: targetField,
					SampleSize:  sampleSize,
				},
			})
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), ins)
			}
			printInsight(cmd, ins, limit)
			return nil
		},
	}

	cmd.Flags().StringVar(&persona, "persona", "", "presentation persona")
	cmd.Flags().StringVar(&endpointID, "endpoint", "", "force a specific endpoint, bypassing classification")
	cmd.Flags().StringVar(&targetField, "target-field", "", "pin the analysis target variable")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "cap the records the endpoint considers")
	cmd.Flags().IntVar(&limit, "top", 10, "ranked records to print")
	return cmd
}

func printInsight(cmd *cobra.Command, ins *insight.Insight, limit int) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "status: %s", ins.Status)
	if len(ins.DegradedReasons) > 0 {
		fmt.Fprintf(out, " (%s)", strings.Join(ins.DegradedReasons, ", "))
	}
	if ins.CacheHit {
		fmt.Fprint(out, " [cached]")
	}
	fmt.Fprintln(out)

	for _, ep := range ins.Endpoints {
		if ep.Failed {
			fmt.Fprintf(out, "endpoint %s: failed (%s)\n", ep.EndpointID, ep.Error)
			continue
		}
		fmt.Fprintf(out, "endpoint %s: %d records (confidence %.2f, %s)\n",
			ep.EndpointID, ep.Records, ep.Confidence, ep.Layer)
	}

	if len(ins.SideBySide) > 0 {
		fmt.Fprintln(out, "result sets shared no geography; showing per-endpoint counts")
		for _, set := range ins.SideBySide {
			fmt.Fprintf(out, "  %s: %d records\n", set.EndpointID, len(set.Records))
		}
		return
	}

	for i, rec := range ins.Records {
		if i >= limit {
			fmt.Fprintf(out, "  … %d more\n", len(ins.Records)-limit)
			break
		}
		label := rec.GeoID
		if rec.DisplayName != "" {
			label = fmt.Sprintf("%s (%s)", rec.DisplayName, rec.GeoID)
		}
		fmt.Fprintf(out, "  %2d. %-30s %6.1f\n", rec.Rank, label, rec.Score)
	}
}
