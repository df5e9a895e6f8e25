package trim

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReportSummary is the subset of the fastp JSON report surfaced after a run.
type ReportSummary struct {
	FastpVersion        string  `json:"fastpVersion,omitempty"`
	Sequencing          string  `json:"sequencing,omitempty"`
	ReadsBefore         int64   `json:"readsBefore"`
	ReadsAfter          int64   `json:"readsAfter"`
	BasesBefore         int64   `json:"basesBefore"`
	BasesAfter          int64   `json:"basesAfter"`
	Q30Before           float64 `json:"q30Before"`
	Q30After            float64 `json:"q30After"`
	PassedFilter        int64   `json:"passedFilter"`
	LowQuality          int64   `json:"lowQuality"`
	TooManyN            int64   `json:"tooManyN"`
	TooShort            int64   `json:"tooShort"`
	AdapterTrimmedReads int64   `json:"adapterTrimmedReads"`
}

// PassRate is the fraction of input reads kept.
func (r ReportSummary) PassRate() float64 {
	if r.ReadsBefore == 0 {
		return 0
	}
	return float64(r.ReadsAfter) / float64(r.ReadsBefore)
}

type filterStats struct {
	TotalReads int64   `json:"total_reads"`
	TotalBases int64   `json:"total_bases"`
	Q30Rate    float64 `json:"q30_rate"`
}

type fastpReport struct {
	Summary struct {
		FastpVersion    string      `json:"fastp_version"`
		Sequencing      string      `json:"sequencing"`
		BeforeFiltering filterStats `json:"before_filtering"`
		AfterFiltering  filterStats `json:"after_filtering"`
	} `json:"summary"`
	FilteringResult struct {
		PassedFilterReads int64 `json:"passed_filter_reads"`
		LowQualityReads   int64 `json:"low_quality_reads"`
		TooManyNReads     int64 `json:"too_many_N_reads"`
		TooShortReads     int64 `json:"too_short_reads"`
	} `json:"filtering_result"`
	AdapterCutting struct {
		AdapterTrimmedReads int64 `json:"adapter_trimmed_reads"`
	} `json:"adapter_cutting"`
}

// ReadReport parses the fastp JSON report at path.
func ReadReport(path string) (ReportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReportSummary{}, err
	}
	return parseReport(data)
}

func parseReport(data []byte) (ReportSummary, error) {
	var raw fastpReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReportSummary{}, fmt.Errorf("decode fastp report: %w", err)
	}

	return ReportSummary{
		FastpVersion:        raw.Summary.FastpVersion,
		Sequencing:          raw.Summary.Sequencing,
		ReadsBefore:         raw.Summary.BeforeFiltering.TotalReads,
		ReadsAfter:          raw.Summary.AfterFiltering.TotalReads,
		BasesBefore:         raw.Summary.BeforeFiltering.TotalBases,
		BasesAfter:          raw.Summary.AfterFiltering.TotalBases,
		Q30Before:           raw.Summary.BeforeFiltering.Q30Rate,
		Q30After:            raw.Summary.AfterFiltering.Q30Rate,
		PassedFilter:        raw.FilteringResult.PassedFilterReads,
		LowQuality:          raw.FilteringResult.LowQualityReads,
		TooManyN:            raw.FilteringResult.TooManyNReads,
		TooShort:            raw.FilteringResult.TooShortReads,
		AdapterTrimmedReads: raw.AdapterCutting.AdapterTrimmedReads,
	}, nil
}
