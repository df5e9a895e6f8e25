// Package manifest reads batch sample sheets written as YAML or JSON.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"fastp-batch/internal/batch"
	"fastp-batch/internal/domain"
)

// ErrNoSamples is returned when a manifest names neither sample list.
var ErrNoSamples = errors.New("manifest has no single_end or paired_end samples")

// Manifest mirrors the batch workflow parameters. A missing single_end key
// leaves SingleEnd nil; an explicit empty list selects single-end mode with
// no samples.
type Manifest struct {
	QualityThreshold *int               `yaml:"quality_threshold" json:"quality_threshold,omitempty"`
	SingleEnd        []domain.SingleEnd `yaml:"single_end,omitempty" json:"single_end,omitempty"`
	PairedEnd        []domain.PairedEnd `yaml:"paired_end,omitempty" json:"paired_end,omitempty"`
	AdapterFasta     *domain.FileRef    `yaml:"adapter_fasta,omitempty" json:"adapter_fasta,omitempty"`
	AdapterString    *string            `yaml:"adapter_string,omitempty" json:"adapter_string,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes manifest bytes. JSON is accepted as a YAML subset.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSamples
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every sample entry that will actually run.
func (m *Manifest) Validate() error {
	if m.SingleEnd == nil && m.PairedEnd == nil {
		return ErrNoSamples
	}
	if m.QualityThreshold != nil && *m.QualityThreshold <= 0 {
		return fmt.Errorf("quality_threshold must be positive, got %d", *m.QualityThreshold)
	}

	jobs, err := batch.Organize(m.Request())
	if err != nil {
		return err
	}
	var errs []error
	for i, job := range jobs {
		if err := job.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sample %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Request converts the manifest into a batch request.
func (m *Manifest) Request() batch.Request {
	threshold := domain.DefaultQualityThreshold
	if m.QualityThreshold != nil {
		threshold = *m.QualityThreshold
	}
	return batch.Request{
		QualityThreshold: threshold,
		SingleEnd:        m.SingleEnd,
		PairedEnd:        m.PairedEnd,
		AdapterFasta:     m.AdapterFasta,
		AdapterString:    m.AdapterString,
	}
}

// Warnings lists settings that are accepted but partly ignored.
func (m *Manifest) Warnings() []string {
	var out []string
	if m.AdapterFasta != nil && m.AdapterString != nil {
		out = append(out, "Both adapter_fasta and adapter_string are set; adapter_fasta is used.")
	}
	if m.SingleEnd != nil && len(m.PairedEnd) > 0 {
		out = append(out, fmt.Sprintf("single_end is set; %d paired_end samples are ignored.", len(m.PairedEnd)))
	}
	return out
}

// FromPlan builds a manifest from a named launch plan.
func FromPlan(plan domain.LaunchPlan) *Manifest {
	threshold := plan.QualityThreshold
	m := &Manifest{
		QualityThreshold: &threshold,
		SingleEnd:        plan.SingleEnd,
		PairedEnd:        plan.PairedEnd,
	}
	if !plan.AdapterFasta.IsZero() {
		fasta := plan.AdapterFasta
		m.AdapterFasta = &fasta
	}
	if plan.AdapterString != "" {
		literal := plan.AdapterString
		m.AdapterString = &literal
	}
	return m
}
