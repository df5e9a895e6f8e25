package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fastp-batch/internal/bootstrap"
	"fastp-batch/internal/domain"
	"fastp-batch/internal/jobs"
	"fastp-batch/internal/manifest"
	"fastp-batch/internal/notify"
)

func newRunCommand(e *env) *cobra.Command {
	var (
		preset     string
		eventsFile string
		echo       bool
	)

	cmd := &cobra.Command{
		Use:   "run [MANIFEST]",
		Short: "Trim every sample listed in a manifest or preset",
		Long: `Trim every sample listed in a YAML or JSON manifest, or in a built-in preset.

A manifest mirrors the workflow parameters:

  quality_threshold: 30
  paired_end:
    - {name: SRR579291, read1: reads/SRR579291_1.fastq, read2: reads/SRR579291_2.fastq}
  adapter_fasta: adapters.fa

When single_end is present, paired_end is ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(e.app, args, preset)
			if err != nil {
				return err
			}
			for _, w := range m.Warnings() {
				e.app.Console.Notify(notify.LevelWarning, notify.Message{Title: "Manifest", Body: w})
			}

			e.app.EchoOutput = echo
			report, runErr := e.app.RunBatch(cmd.Context(), m.Request())
			if runErr != nil {
				return runErr
			}
			printReport(cmd.OutOrStdout(), report, e.app.Jobs.Counts())

			if eventsFile != "" {
				if err := writeEvents(eventsFile, e.app.Events(0)); err != nil {
					return err
				}
			}
			if report.FailedCount() > 0 {
				return fmt.Errorf("%w: %d of %d", ErrJobsFailed, report.FailedCount(), len(report.Jobs))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&preset, "preset", "p", "", "Run a built-in preset instead of a manifest")
	flags.StringVar(&eventsFile, "events", "", "Write the event history as JSON lines to this file")
	flags.BoolVar(&echo, "echo", false, "Echo fastp output lines as they arrive")

	return cmd
}

// loadManifest picks the manifest argument or the named preset.
func loadManifest(app *bootstrap.App, args []string, preset string) (*manifest.Manifest, error) {
	switch {
	case preset != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a manifest or --preset, not both")
	case preset != "":
		plan, err := app.Preset(preset)
		if err != nil {
			return nil, err
		}
		m := manifest.FromPlan(plan)
		return m, m.Validate()
	case len(args) == 1:
		return manifest.Load(args[0])
	default:
		return nil, fmt.Errorf("a manifest path or --preset is required")
	}
}

// printReport writes one line per job and a final tally from the job counts.
func printReport(w io.Writer, report bootstrap.BatchReport, counts map[domain.JobStatus]int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SAMPLE\tTYPE\tSTATUS\tOUTPUT")
	for i, job := range report.Jobs {
		output := report.Outputs[i].URI
		if output == "" {
			output = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", job.Sample, job.ReadType, statusText(job.Status), output)
	}
	_ = tw.Flush()

	failed := counts[domain.JobStatusFailed]
	summary := fmt.Sprintf("%d samples, %d succeeded, %d failed", len(report.Jobs), counts[domain.JobStatusDone], failed)
	if cancelled := counts[domain.JobStatusCancelled]; cancelled > 0 {
		summary += fmt.Sprintf(", %d cancelled", cancelled)
	}
	if failed > 0 || counts[domain.JobStatusDone] < len(report.Jobs) {
		fmt.Fprintln(w, color.RedString(summary))
		return
	}
	fmt.Fprintln(w, color.GreenString(summary))
}

// statusText colors a job status for terminals.
func statusText(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusDone:
		return color.GreenString(string(status))
	case domain.JobStatusFailed, domain.JobStatusCancelled:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

// writeEvents dumps events as JSON lines.
func writeEvents(path string, events []jobs.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create events file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			_ = f.Close()
			return fmt.Errorf("write events: %w", err)
		}
	}
	return f.Close()
}
