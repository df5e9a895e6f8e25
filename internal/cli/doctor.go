package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fastp-batch/internal/domain"
)

func newDoctorCommand(e *env) *cobra.Command {
	var fix string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that fastp and the working directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := e.app.GetDiagnostics()
			if fix != "" {
				fixed, err := e.app.InstallOrFixDiagnostic(fix)
				printDiagnostics(cmd.OutOrStdout(), fixed)
				if err != nil {
					return fmt.Errorf("fix %s: %w", fix, err)
				}
				report = fixed
			} else {
				printDiagnostics(cmd.OutOrStdout(), report)
			}

			if report.HasFailures {
				return ErrDiagnosticsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fix, "fix", "", "Try to repair one failing check by ID (e.g. tool_fastp, cache_dir)")
	return cmd
}

// printDiagnostics writes one block per check.
func printDiagnostics(w io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		mark := color.GreenString("ok  ")
		if item.Status == domain.DiagnosticStatusFail {
			mark = color.RedString("FAIL")
		}
		fmt.Fprintf(w, "%s %-13s %s\n", mark, item.ID, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Fprintf(w, "     %s\n", item.Hint)
		}
	}
}
