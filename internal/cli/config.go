package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fastp-batch/internal/domain"
)

// settingFields maps config keys to setters on domain.Settings.
var settingFields = map[string]func(s *domain.Settings, value string) error{
	keyTrimmer:     func(s *domain.Settings, v string) error { s.TrimmerPath = v; return nil },
	keyThreads:     func(s *domain.Settings, v string) error { return setPositive(&s.Threads, v) },
	keyThreshold:   func(s *domain.Settings, v string) error { return setPositive(&s.QualityThreshold, v) },
	keyWorkDir:     func(s *domain.Settings, v string) error { s.WorkDir = v; return nil },
	keyStorageRoot: func(s *domain.Settings, v string) error { s.StorageRoot = v; return nil },
	keyCacheDir:    func(s *domain.Settings, v string) error { s.CacheDir = v; return nil },
	keyConcurrency: func(s *domain.Settings, v string) error { return setPositive(&s.Concurrency, v) },
}

func setPositive(dst *int, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("not a number: %q", value)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	*dst = n
	return nil
}

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persisted settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(e.app.Settings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	keys := make([]string, 0, len(settingFields))
	for k := range settingFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Persist one setting",
		Long:      "Persist one setting. Keys: " + strings.Join(keys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			setter, ok := settingFields[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q (keys: %s)", args[0], strings.Join(keys, ", "))
			}

			settings, err := e.store.Load()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			if err := setter(&settings, args[1]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if _, err := e.app.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s\n", args[0], e.store.Path())
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
