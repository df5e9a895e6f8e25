package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultQualityThreshold is the Phred score passed to the trimmer when none is configured.
	DefaultQualityThreshold = 30
	// DefaultThreads is the fixed worker thread count handed to the trimmer.
	DefaultThreads = 16
	// DefaultOutputDir is the local directory the trimmer writes artifacts into.
	DefaultOutputDir = "fastp_results"
)

// FileRef locates one input file: a local path, file://, http(s):// or s3:// URI.
type FileRef string

// String returns the raw reference.
func (f FileRef) String() string {
	return string(f)
}

// IsZero reports whether the reference is empty.
func (f FileRef) IsZero() bool {
	return strings.TrimSpace(string(f)) == ""
}

// ReadType tags the read layout of a sample.
type ReadType string

const (
	ReadTypeSingle ReadType = "single"
	ReadTypePaired ReadType = "paired"
)

// Sample is either a SingleEnd or a PairedEnd read set.
type Sample interface {
	SampleName() string
	ReadType() ReadType
	isSample()
}

// SingleEnd is one unpaired read file.
type SingleEnd struct {
	Name  string  `json:"name" yaml:"name"`
	Read1 FileRef `json:"read1" yaml:"read1"`
}

// PairedEnd is a forward/reverse read pair.
type PairedEnd struct {
	Name  string  `json:"name" yaml:"name"`
	Read1 FileRef `json:"read1" yaml:"read1"`
	Read2 FileRef `json:"read2" yaml:"read2"`
}

func (s SingleEnd) SampleName() string { return s.Name }
func (s SingleEnd) ReadType() ReadType { return ReadTypeSingle }
func (SingleEnd) isSample()            {}

func (p PairedEnd) SampleName() string { return p.Name }
func (p PairedEnd) ReadType() ReadType { return ReadTypePaired }
func (PairedEnd) isSample()            {}

// Adapter selects how the trimmer handles adapter sequences.
type Adapter interface {
	Mode() string
	isAdapter()
}

// AutoDetect lets the trimmer find adapters on its own.
type AutoDetect struct{}

// LiteralAdapter passes one adapter sequence verbatim.
type LiteralAdapter struct {
	Sequence string
}

// FastaAdapter points the trimmer at a FASTA file of adapter sequences.
type FastaAdapter struct {
	File FileRef
}

func (AutoDetect) Mode() string     { return "auto" }
func (LiteralAdapter) Mode() string { return "sequence" }
func (FastaAdapter) Mode() string   { return "fasta" }

func (AutoDetect) isAdapter()     {}
func (LiteralAdapter) isAdapter() {}
func (FastaAdapter) isAdapter()   {}

// JobInput is everything one trimming job needs.
type JobInput struct {
	Sample           Sample
	QualityThreshold int
	Adapter          Adapter
}

// ReadType mirrors the layout of the carried sample.
func (j JobInput) ReadType() ReadType {
	if j.Sample == nil {
		return ""
	}
	return j.Sample.ReadType()
}

// Name returns the sample name or an empty string.
func (j JobInput) Name() string {
	if j.Sample == nil {
		return ""
	}
	return j.Sample.SampleName()
}

// AdapterOrAuto returns the configured adapter, defaulting to AutoDetect.
func (j JobInput) AdapterOrAuto() Adapter {
	if j.Adapter == nil {
		return AutoDetect{}
	}
	return j.Adapter
}

// Validate rejects inputs the trimmer cannot be invoked with.
func (j JobInput) Validate() error {
	var errs []error

	switch s := j.Sample.(type) {
	case nil:
		return errors.New("sample is required")
	case SingleEnd:
		errs = append(errs, checkName(s.Name))
		if s.Read1.IsZero() {
			errs = append(errs, fmt.Errorf("sample %q: read1 is required", s.Name))
		}
	case PairedEnd:
		errs = append(errs, checkName(s.Name))
		if s.Read1.IsZero() {
			errs = append(errs, fmt.Errorf("sample %q: read1 is required", s.Name))
		}
		if s.Read2.IsZero() {
			errs = append(errs, fmt.Errorf("sample %q: read2 is required", s.Name))
		}
	}

	if j.QualityThreshold <= 0 {
		errs = append(errs, fmt.Errorf("quality threshold must be positive, got %d", j.QualityThreshold))
	}

	switch a := j.AdapterOrAuto().(type) {
	case LiteralAdapter:
		if strings.TrimSpace(a.Sequence) == "" {
			errs = append(errs, errors.New("adapter sequence is empty"))
		}
	case FastaAdapter:
		if a.File.IsZero() {
			errs = append(errs, errors.New("adapter fasta reference is empty"))
		}
	}

	return errors.Join(errs...)
}

func checkName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("sample name is required")
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("sample name %q must not contain path separators", name)
	}
	return nil
}

// JobStatus tracks each stage of a single trimming job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusStaging    JobStatus = "staging"
	JobStatusTrimming   JobStatus = "trimming"
	JobStatusPublishing JobStatus = "publishing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	TrimmerPath      string `json:"trimmerPath"`
	Threads          int    `json:"threads"`
	QualityThreshold int    `json:"qualityThreshold"`
	WorkDir          string `json:"workDir"`
	StorageRoot      string `json:"storageRoot"`
	CacheDir         string `json:"cacheDir"`
	Concurrency      int    `json:"concurrency"`
}

// Job stores one job identity and lifecycle status.
type Job struct {
	ID       string    `json:"id"`
	Sample   string    `json:"sample"`
	ReadType ReadType  `json:"readType"`
	Status   JobStatus `json:"status"`
}
