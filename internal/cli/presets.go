package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fastp-batch/internal/manifest"
)

func newPresetsCommand(e *env) *cobra.Command {
	var asManifest bool

	cmd := &cobra.Command{
		Use:   "presets [NAME]",
		Short: "List built-in presets or print one as a manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, plan := range e.app.Presets() {
					samples := len(plan.PairedEnd) + len(plan.SingleEnd)
					fmt.Fprintf(out, "%-12s %d samples  %s\n", plan.Name, samples, plan.Description)
				}
				return nil
			}

			plan, err := e.app.Preset(args[0])
			if err != nil {
				return err
			}
			if !asManifest {
				fmt.Fprintf(out, "%s: %s\n", plan.Name, plan.Description)
				for _, s := range plan.PairedEnd {
					fmt.Fprintf(out, "  %s\t%s\t%s\n", s.Name, s.Read1, s.Read2)
				}
				for _, s := range plan.SingleEnd {
					fmt.Fprintf(out, "  %s\t%s\n", s.Name, s.Read1)
				}
				return nil
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(manifest.FromPlan(plan)); err != nil {
				return fmt.Errorf("encode manifest: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&asManifest, "manifest", false, "Print the preset as a runnable YAML manifest")
	return cmd
}
