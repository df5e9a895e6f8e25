// Package cli exposes the batch trimmer as a cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fastp-batch/internal/bootstrap"
	"fastp-batch/internal/config"
	"fastp-batch/internal/domain"
)

// EnvPrefix namespaces environment overrides, e.g. FASTP_BATCH_THREADS.
const EnvPrefix = "FASTP_BATCH"

// ErrJobsFailed is returned when at least one job errored or exited non-zero.
var ErrJobsFailed = errors.New("one or more jobs failed")

// ErrDiagnosticsFailed is returned by doctor when a check fails.
var ErrDiagnosticsFailed = errors.New("diagnostics reported failures")

// Options customize how the command tree builds its App.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Configure runs after settings are applied and before a command uses the App.
	Configure func(app *bootstrap.App)
}

// Setting flag keys, shared by flags, viper and environment variables.
const (
	keySettings    = "settings"
	keyTrimmer     = "trimmer-path"
	keyThreads     = "threads"
	keyThreshold   = "quality-threshold"
	keyWorkDir     = "work-dir"
	keyStorageRoot = "storage-root"
	keyCacheDir    = "cache-dir"
	keyConcurrency = "concurrency"
)

// env holds state shared by every subcommand of one invocation.
type env struct {
	opts  Options
	viper *viper.Viper
	store *config.JSONStore
	app   *bootstrap.App
}

// NewRootCommand builds the fastp-batch command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	e := &env{opts: opts, viper: viper.New()}

	root := &cobra.Command{
		Use:   "fastp-batch",
		Short: "Trim batches of FASTQ samples with fastp",
		Long: `Run fastp over many single-end or paired-end samples at once.

Each sample gets its own fastp invocation and its own fastp_results/<sample>
output directory. One failing sample never stops the others.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	flags := root.PersistentFlags()
	flags.String(keySettings, config.DefaultSettingsPath(), "Settings file")
	flags.String(keyTrimmer, "", "fastp executable name or path")
	flags.Int(keyThreads, 0, "Threads passed to each fastp run")
	flags.Int(keyThreshold, 0, "Default qualified quality phred threshold")
	flags.String(keyWorkDir, "", "Directory fastp writes into before publishing")
	flags.String(keyStorageRoot, "", "Root directory for published outputs")
	flags.String(keyCacheDir, "", "Directory for downloaded remote inputs")
	flags.Int(keyConcurrency, 0, "Number of samples trimmed at once")

	root.AddCommand(
		newRunCommand(e),
		newTrimCommand(e),
		newDoctorCommand(e),
		newPresetsCommand(e),
		newConfigCommand(e),
	)
	return root
}

// Execute runs the command tree and returns the process exit status.
func Execute(ctx context.Context, args []string, opts Options) int {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "fastp-batch: %v\n", err)
		return 1
	}
	return 0
}

// setup binds flags and environment, loads settings and builds the App.
func (e *env) setup(cmd *cobra.Command) error {
	v := e.viper
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	e.store = config.NewJSONStore(v.GetString(keySettings))
	app, err := bootstrap.New(e.store, e.opts.Err)
	if err != nil {
		return err
	}

	app.UseSettings(e.overlay(app.Settings))

	if e.opts.Configure != nil {
		e.opts.Configure(app)
	}
	e.app = app
	return nil
}

// overlay applies flag and environment overrides on top of persisted settings.
func (e *env) overlay(s domain.Settings) domain.Settings {
	v := e.viper
	if v.IsSet(keyTrimmer) && v.GetString(keyTrimmer) != "" {
		s.TrimmerPath = v.GetString(keyTrimmer)
	}
	if v.IsSet(keyThreads) && v.GetInt(keyThreads) > 0 {
		s.Threads = v.GetInt(keyThreads)
	}
	if v.IsSet(keyThreshold) && v.GetInt(keyThreshold) > 0 {
		s.QualityThreshold = v.GetInt(keyThreshold)
	}
	if v.IsSet(keyWorkDir) && v.GetString(keyWorkDir) != "" {
		s.WorkDir = v.GetString(keyWorkDir)
	}
	if v.IsSet(keyStorageRoot) && v.GetString(keyStorageRoot) != "" {
		s.StorageRoot = v.GetString(keyStorageRoot)
	}
	if v.IsSet(keyCacheDir) && v.GetString(keyCacheDir) != "" {
		s.CacheDir = v.GetString(keyCacheDir)
	}
	if v.IsSet(keyConcurrency) && v.GetInt(keyConcurrency) > 0 {
		s.Concurrency = v.GetInt(keyConcurrency)
	}
	return s
}
