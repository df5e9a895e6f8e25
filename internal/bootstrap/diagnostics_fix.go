package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"time"

	"fastp-batch/internal/config"
	"fastp-batch/internal/diagnostics"
	"fastp-batch/internal/domain"
)

const (
	installCommandTimeout = 45 * time.Minute
	maxInstallOutput      = 500
)

// installOption is one package manager and the commands that install fastp with it.
type installOption struct {
	manager  string
	commands [][]string
	// sudo allows a non-interactive sudo retry on Linux.
	sudo bool
}

// InstallOrFixDiagnostic repairs one failed diagnostic item and re-runs the checks.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, errors.New("settings store is not configured")
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, errors.New("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	var (
		changed bool
		fixErr  error
	)
	switch id {
	case diagnostics.IDTrimmer:
		settings, changed, fixErr = installFastp(settings)
	case diagnostics.IDWorkDir, diagnostics.IDStorageRoot, diagnostics.IDCacheDir:
		settings, changed, fixErr = installOrFixDir(settings, id)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	var saveErr error
	if changed {
		if err := a.Store.Save(settings); err != nil {
			saveErr = fmt.Errorf("save settings after fix: %w", err)
		}
	}

	a.UseSettings(settings)
	return a.GetDiagnostics(), errors.Join(fixErr, saveErr)
}

// ensureLocalBinOnPATH makes a fastp dropped into ~/.fastp-batch/bin visible to exec.LookPath.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	onPath := slices.ContainsFunc(filepath.SplitList(current), func(entry string) bool {
		return filepath.Clean(entry) == binDir
	})
	switch {
	case onPath:
		return nil
	case current == "":
		return os.Setenv("PATH", binDir)
	default:
		return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
	}
}

func localBinDir(homeDir string) string {
	return filepath.Clean(filepath.Join(homeDir, config.AppDirName, "bin"))
}

// installFastp installs fastp through the first available package manager.
// Package managers verify what they install, so no bare binary is fetched.
func installFastp(settings domain.Settings) (domain.Settings, bool, error) {
	if path, err := exec.LookPath(settings.TrimmerPath); err == nil {
		return settings, false, fmt.Errorf("fastp is already available at %s", path)
	}

	if err := installWithPackageManager(fastpInstallOptions(goruntime.GOOS)); err != nil {
		return settings, false, fmt.Errorf("install fastp: %w", err)
	}
	if _, err := exec.LookPath("fastp"); err != nil {
		return settings, false, fmt.Errorf("fastp installed but not found on PATH: %w", err)
	}
	return withTrimmer(settings, "fastp")
}

func withTrimmer(settings domain.Settings, path string) (domain.Settings, bool, error) {
	changed := settings.TrimmerPath != path
	settings.TrimmerPath = path
	return settings, changed, nil
}

// fastpInstallOptions lists package-manager installs in preference order.
// fastp is not packaged for Windows.
func fastpInstallOptions(goos string) []installOption {
	bioconda := func(manager string) installOption {
		return installOption{
			manager:  manager,
			commands: [][]string{{manager, "install", "-y", "-c", "bioconda", "-c", "conda-forge", "fastp"}},
		}
	}
	brew := installOption{manager: "brew", commands: [][]string{{"brew", "install", "fastp"}}}
	apt := installOption{
		manager:  "apt-get",
		commands: [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", "fastp"}},
		sudo:     true,
	}

	switch goos {
	case "windows":
		return nil
	case "darwin":
		return []installOption{brew, bioconda("mamba"), bioconda("conda")}
	default:
		return []installOption{bioconda("mamba"), bioconda("conda"), apt, brew}
	}
}

// installWithPackageManager tries each available manager until one succeeds.
func installWithPackageManager(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", goruntime.GOOS)
	}

	var failures []error
	for _, option := range options {
		if _, err := exec.LookPath(option.manager); err != nil {
			continue
		}
		err := option.run()
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", option.manager, err))
	}
	if len(failures) == 0 {
		return fmt.Errorf("no supported package manager found for %s", goruntime.GOOS)
	}
	return errors.Join(failures...)
}

func (o installOption) run() error {
	for _, command := range o.commands {
		err := runInstallCommand(command)
		if err != nil && o.canSudo() {
			sudoErr := runInstallCommand(append([]string{"sudo", "-n"}, command...))
			if sudoErr == nil {
				err = nil
			} else {
				err = errors.Join(err, sudoErr)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o installOption) canSudo() bool {
	if !o.sudo || goruntime.GOOS != "linux" {
		return false
	}
	_, err := exec.LookPath("sudo")
	return err == nil
}

// runInstallCommand runs one command and folds its trimmed output into the error.
func runInstallCommand(command []string) error {
	if len(command) == 0 {
		return errors.New("empty command")
	}
	line := strings.Join(command, " ")

	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, command[0], command[1:]...).CombinedOutput()
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s timed out after %s", line, installCommandTimeout)
	}

	detail := strings.TrimSpace(string(output))
	if len(detail) > maxInstallOutput {
		detail = detail[:maxInstallOutput] + "..."
	}
	if detail == "" {
		return fmt.Errorf("%s failed: %w", line, err)
	}
	return fmt.Errorf("%s failed: %w (%s)", line, err, detail)
}

// installOrFixDir creates one configured directory, restoring its default when empty.
func installOrFixDir(settings domain.Settings, id string) (domain.Settings, bool, error) {
	defaults := config.DefaultSettings()

	var field *string
	var fallback string
	switch id {
	case diagnostics.IDWorkDir:
		field, fallback = &settings.WorkDir, defaults.WorkDir
	case diagnostics.IDStorageRoot:
		field, fallback = &settings.StorageRoot, defaults.StorageRoot
	case diagnostics.IDCacheDir:
		field, fallback = &settings.CacheDir, defaults.CacheDir
	default:
		return settings, false, fmt.Errorf("not a directory diagnostic: %s", id)
	}

	changed := false
	dir := strings.TrimSpace(*field)
	if dir == "" {
		dir = fallback
		*field = dir
		changed = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return settings, changed, nil
}
