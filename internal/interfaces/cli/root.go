// Package cli implements the clinsight command-line interface.  Most
// commands are thin calls to a running API server through the SDK client;
// migrate talks to PostgreSQL directly.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribemed/clinsight/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	ServerAddr string
	ConfigPath string
	Output     string
	Timeout    time.Duration
}

func (o *rootOptions) newClient() (*client.Client, error) {
	return client.NewClient(o.ServerAddr, client.WithTimeout(o.Timeout))
}

// NewRootCommand builds the clinsight command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "clinsight",
		Short:   "ClinSight CLI — consultation triage over a local clinical model",
		Long:    "ClinSight extracts structured facts from consultation transcripts,\nproposes candidate diagnoses, maps them onto clinical terminology codes,\nand explains the final selection.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "API server address")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file path (migrate only)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "table", "output format: table|json")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "request timeout")

	cmd.AddCommand(newTriageCommand(opts))
	cmd.AddCommand(newTermsCommand(opts))
	cmd.AddCommand(newModelCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

// printResult renders v as JSON when --output=json, otherwise via render.
func printResult(w io.Writer, opts *rootOptions, v interface{}, render func(io.Writer)) error {
	if opts.Output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(w)
	return nil
}
