package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newModelCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and manage the model runtime",
	}
	cmd.AddCommand(newModelStatusCommand(opts))
	cmd.AddCommand(newModelDownloadCommand(opts))
	return cmd
}

func newModelStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show model runtime readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			status, err := c.Model().Status(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, status, func(w io.Writer) {
				switch {
				case status.Ready:
					fmt.Fprintln(w, "model is ready")
				case status.Downloading:
					fmt.Fprintln(w, "model is downloading")
				default:
					fmt.Fprintln(w, "model is not downloaded")
				}
			})
		},
	}
}

func newModelDownloadCommand(opts *rootOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Start the model download",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Model().Download(cmd.Context()); err != nil {
				return err
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), "download started")
				return nil
			}

			for {
				status, err := c.Model().Status(cmd.Context())
				if err != nil {
					return err
				}
				if status.Ready {
					fmt.Fprintln(cmd.OutOrStdout(), "model is ready")
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(2 * time.Second):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the model is ready")
	return cmd
}
