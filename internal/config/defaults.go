package config

import (
	"os"
	"path/filepath"

	"fastp-batch/internal/domain"
)

// AppDirName is the per-user directory holding settings, cache and outputs.
const AppDirName = ".fastp-batch"

// DefaultConcurrency is how many samples are trimmed at once by default.
const DefaultConcurrency = 2

// homeDir returns the user's home directory, falling back to the working directory.
func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}

// DefaultSettingsPath returns where the JSON settings file lives.
func DefaultSettingsPath() string {
	return filepath.Join(homeDir(), AppDirName, "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	base := filepath.Join(homeDir(), AppDirName)

	return domain.Settings{
		TrimmerPath:      "fastp",
		Threads:          domain.DefaultThreads,
		QualityThreshold: domain.DefaultQualityThreshold,
		WorkDir:          domain.DefaultOutputDir,
		StorageRoot:      filepath.Join(base, "storage"),
		CacheDir:         filepath.Join(base, "cache"),
		Concurrency:      DefaultConcurrency,
	}
}

// WithDefaults fills unset fields from DefaultSettings.
func WithDefaults(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()
	if cfg.TrimmerPath == "" {
		cfg.TrimmerPath = def.TrimmerPath
	}
	if cfg.Threads <= 0 {
		cfg.Threads = def.Threads
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = def.QualityThreshold
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = def.StorageRoot
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = def.CacheDir
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return cfg
}
