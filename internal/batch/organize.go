// Package batch turns a sample sheet into per-sample trimming jobs and runs
// them side by side.
package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"fastp-batch/internal/domain"
)

// ErrDuplicateSample is returned when two samples in one batch share a name.
var ErrDuplicateSample = errors.New("duplicate sample name")

// Request holds the shared settings and sample lists of one batch. A nil
// SingleEnd means the single-end list was not supplied.
type Request struct {
	QualityThreshold int
	SingleEnd        []domain.SingleEnd
	PairedEnd        []domain.PairedEnd
	AdapterFasta     *domain.FileRef
	AdapterString    *string
}

// ResolveAdapter applies the adapter precedence: FASTA, then literal, then auto-detect.
func ResolveAdapter(fasta *domain.FileRef, literal *string) domain.Adapter {
	switch {
	case fasta != nil:
		return domain.FastaAdapter{File: *fasta}
	case literal != nil:
		return domain.LiteralAdapter{Sequence: *literal}
	default:
		return domain.AutoDetect{}
	}
}

// Organize builds one job input per sample, in input order. When a single-end
// list is supplied the paired-end list is ignored entirely.
func Organize(req Request) ([]domain.JobInput, error) {
	adapter := ResolveAdapter(req.AdapterFasta, req.AdapterString)

	var samples []domain.Sample
	if req.SingleEnd != nil {
		samples = lo.Map(req.SingleEnd, func(s domain.SingleEnd, _ int) domain.Sample { return s })
	} else {
		samples = lo.Map(req.PairedEnd, func(p domain.PairedEnd, _ int) domain.Sample { return p })
	}

	if dups := lo.FindDuplicatesBy(samples, func(s domain.Sample) string { return s.SampleName() }); len(dups) > 0 {
		names := lo.Map(dups, func(s domain.Sample, _ int) string { return s.SampleName() })
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSample, strings.Join(names, ", "))
	}

	return lo.Map(samples, func(s domain.Sample, _ int) domain.JobInput {
		return domain.JobInput{
			Sample:           s,
			QualityThreshold: req.QualityThreshold,
			Adapter:          adapter,
		}
	}), nil
}
