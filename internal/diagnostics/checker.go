package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/samber/lo"

	"fastp-batch/internal/domain"
)

// Diagnostic item IDs.
const (
	IDTrimmer     = "tool_fastp"
	IDWorkDir     = "work_dir"
	IDStorageRoot = "storage_root"
	IDCacheDir    = "cache_dir"
)

// Checker validates the trimmer executable and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all preflight checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTrimmer(settings.TrimmerPath),
		c.checkWritableDir(IDWorkDir, "Work directory", settings.WorkDir,
			"fastp writes its per-sample outputs here before they are published."),
		c.checkWritableDir(IDStorageRoot, "Storage root", settings.StorageRoot,
			"Published fastp_results directories are copied under this root."),
		c.checkWritableDir(IDCacheDir, "Input cache", settings.CacheDir,
			"Remote reads and adapter files are downloaded here before trimming."),
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: lo.ContainsBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items:       items,
	}
}

// checkTrimmer verifies the configured fastp binary resolves to an executable.
func (c *Checker) checkTrimmer(name string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:      IDTrimmer,
		Name:    "fastp",
		Fixable: true,
	}

	if strings.TrimSpace(name) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Trimmer path is empty."
		item.Hint = "Set trimmerPath to fastp or to the full path of the binary."
		return item
	}

	path, err := c.lookPath(name)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found: %s", name)
		item.Hint = "Install fastp and ensure the binary is available on PATH, or run doctor --fix tool_fastp."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir, purpose string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:      id,
		Name:    name,
		Fixable: true,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = purpose
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = purpose
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

