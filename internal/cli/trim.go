package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fastp-batch/internal/batch"
	"fastp-batch/internal/bootstrap"
	"fastp-batch/internal/domain"
)

func newTrimCommand(e *env) *cobra.Command {
	var (
		name          string
		read1         string
		read2         string
		threshold     int
		adapterFasta  string
		adapterString string
		echo          bool
	)

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Trim one sample given on the command line",
		Long: `Trim one sample. Passing --read2 selects paired-end mode.

Adapter handling: --adapter-fasta wins over --adapter-string; with neither,
fastp detects adapters on its own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sample domain.Sample = domain.SingleEnd{Name: name, Read1: domain.FileRef(read1)}
			if read2 != "" {
				sample = domain.PairedEnd{Name: name, Read1: domain.FileRef(read1), Read2: domain.FileRef(read2)}
			}
			if threshold <= 0 {
				threshold = e.app.Settings.QualityThreshold
			}

			var fasta *domain.FileRef
			if cmd.Flags().Changed("adapter-fasta") {
				ref := domain.FileRef(adapterFasta)
				fasta = &ref
			}
			var literal *string
			if cmd.Flags().Changed("adapter-string") {
				literal = &adapterString
			}

			job := domain.JobInput{
				Sample:           sample,
				QualityThreshold: threshold,
				Adapter:          batch.ResolveAdapter(fasta, literal),
			}
			if err := job.Validate(); err != nil {
				return err
			}

			e.app.EchoOutput = echo
			outcome, err := e.app.RunJob(cmd.Context(), job)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), bootstrap.BatchReport{
				Jobs:     e.app.Jobs.Snapshot(),
				Outcomes: []batch.Outcome{outcome},
				Outputs:  batch.Outputs([]batch.Outcome{outcome}),
			}, e.app.Jobs.Counts())
			if !outcome.OK() {
				return fmt.Errorf("%w: fastp exited with status %d", ErrJobsFailed, outcome.Result.Log.ExitCode)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&name, "name", "n", "", "Sample name, used as the output prefix (required)")
	flags.StringVar(&read1, "read1", "", "First read file, local path or URL (required)")
	flags.StringVar(&read2, "read2", "", "Second read file for paired-end samples")
	flags.IntVarP(&threshold, "threshold", "q", 0, "Qualified quality phred threshold (default from settings)")
	flags.StringVar(&adapterFasta, "adapter-fasta", "", "FASTA file of adapter sequences")
	flags.StringVar(&adapterString, "adapter-string", "", "Literal adapter sequence")
	flags.BoolVar(&echo, "echo", false, "Echo fastp output lines as they arrive")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("read1")

	return cmd
}
