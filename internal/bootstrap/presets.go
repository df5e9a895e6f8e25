package bootstrap

import (
	"fmt"
	"strings"

	"fastp-batch/internal/domain"
)

const testDataPrefix = "s3://latch-public/test-data/4318/"

var launchPlans = []domain.LaunchPlan{
	{
		Name:             "Test Data",
		Description:      "Two paired-end SRA runs with a shared adapter FASTA.",
		QualityThreshold: domain.DefaultQualityThreshold,
		PairedEnd: []domain.PairedEnd{
			{
				Name:  "SRR579291",
				Read1: testDataPrefix + "SRR579291_1.fastq",
				Read2: testDataPrefix + "SRR579291_2.fastq",
			},
			{
				Name:  "SRR579292",
				Read1: testDataPrefix + "SRR579292_1.fastq",
				Read2: testDataPrefix + "SRR579292_2.fastq",
			},
		},
		AdapterFasta: testDataPrefix + "sample_adapters.fa",
	},
}

// Presets returns the built-in launch plans.
func (a *App) Presets() []domain.LaunchPlan {
	plans := make([]domain.LaunchPlan, len(launchPlans))
	copy(plans, launchPlans)
	return plans
}

// Preset looks up one launch plan by name, ignoring case.
func (a *App) Preset(name string) (domain.LaunchPlan, error) {
	plan, found := getLaunchPlanByName(name)
	if !found {
		return domain.LaunchPlan{}, fmt.Errorf("unknown preset: %s", name)
	}
	return plan, nil
}

func getLaunchPlanByName(name string) (domain.LaunchPlan, bool) {
	want := strings.TrimSpace(name)
	for _, plan := range launchPlans {
		if strings.EqualFold(plan.Name, want) {
			return plan, true
		}
	}
	return domain.LaunchPlan{}, false
}
