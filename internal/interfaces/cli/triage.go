package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scribemed/clinsight/pkg/types/api"
)

func newTriageCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Run the consultation triage pipeline",
	}
	cmd.AddCommand(newTriageRunCommand(opts))
	cmd.AddCommand(newTriageExtractCommand(opts))
	cmd.AddCommand(newTriageStateCommand(opts))
	return cmd
}

// readTranscript loads a transcript from a JSON file, or stdin when path is
// "-".  Plain text input is wrapped as a single patient turn.
func readTranscript(path string) ([]api.TranscriptTurn, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("transcript is empty")
	}

	if strings.HasPrefix(trimmed, "[") {
		var turns []api.TranscriptTurn
		if err := json.Unmarshal(data, &turns); err != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
		return turns, nil
	}
	return []api.TranscriptTurn{{Role: "patient", Content: trimmed}}, nil
}

func newTriageRunCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline on a transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readTranscript(file)
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			result, err := c.Triage().Run(cmd.Context(), transcript)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, result, func(w io.Writer) {
				renderRunResult(w, result)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "transcript file (JSON turns or plain text), - for stdin")
	return cmd
}

func newTriageExtractCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a structured patient record from a transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readTranscript(file)
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			record, err := c.Triage().Extract(cmd.Context(), transcript)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, record, func(w io.Writer) {
				renderRecord(w, record)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "transcript file (JSON turns or plain text), - for stdin")
	return cmd
}

func newTriageStateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			state, err := c.Triage().State(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, state, func(w io.Writer) {
				fmt.Fprintf(w, "stage: %s\nloading: %v\n", state.Stage, state.Loading)
				if state.LastError != "" {
					fmt.Fprintf(w, "last error: %s\n", state.LastError)
				}
			})
		},
	}
}

func renderRecord(w io.Writer, record *api.PatientRecord) {
	if record == nil {
		fmt.Fprintln(w, "no record")
		return
	}
	if record.Age > 0 {
		fmt.Fprintf(w, "age: %d\n", record.Age)
	}
	if record.Sex != "" {
		fmt.Fprintf(w, "sex: %s\n", record.Sex)
	}
	if len(record.Symptoms) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMPTOM\tDURATION\tSEVERITY\tLOCATION")
		for _, s := range record.Symptoms {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Duration, s.Severity, s.Location)
		}
		tw.Flush()
	}
	if len(record.RedFlags) > 0 {
		fmt.Fprintf(w, "red flags: %s\n", strings.Join(record.RedFlags, ", "))
	}
	if record.FreeTextSummary != "" {
		fmt.Fprintf(w, "summary: %s\n", record.FreeTextSummary)
	}
}

func renderRunResult(w io.Writer, result *api.RunResult) {
	fmt.Fprintf(w, "run: %s\n\n", result.RunID)
	renderRecord(w, result.Record)

	if len(result.Diagnoses) == 0 {
		fmt.Fprintln(w, "\nno diagnoses proposed")
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIAGNOSIS\tCODES\tCONFIDENCE\tEXPLANATION")
	for _, d := range result.Diagnoses {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n",
			d.Phrase, strings.Join(d.ChosenCodes, " "), d.Confidence, d.Explanation)
	}
	tw.Flush()

	if result.DegradedExtract || result.DegradedExplain {
		fmt.Fprintln(w, "\nnote: parts of this run used fallback output")
	}
}
