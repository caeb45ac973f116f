package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTermsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Query and manage the clinical terminology store",
	}
	cmd.AddCommand(newTermsSearchCommand(opts))
	cmd.AddCommand(newTermsImportCommand(opts))
	return cmd
}

func newTermsSearchCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search terminology descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			result, err := c.Terminology().Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				if len(result.Candidates) == 0 {
					fmt.Fprintf(w, "no matches for %q\n", result.Query)
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tTERM\tSCORE")
				for _, cand := range result.Candidates {
					fmt.Fprintf(tw, "%s\t%s\t%.3f\n", cand.Code, cand.Term, cand.Score)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	return cmd
}

func newTermsImportCommand(opts *rootOptions) *cobra.Command {
	var object string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a terminology release snapshot from the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if object == "" {
				return fmt.Errorf("--object is required")
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			stats, err := c.Terminology().Import(cmd.Context(), object)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, stats, func(w io.Writer) {
				fmt.Fprintf(w, "read %d rows: imported %d, skipped %d inactive, %d malformed\n",
					stats.Read, stats.Imported, stats.SkippedInactive, stats.SkippedMalformed)
			})
		},
	}
	cmd.Flags().StringVar(&object, "object", "", "snapshot object name in the configured bucket")
	return cmd
}
