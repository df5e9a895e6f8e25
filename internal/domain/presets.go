package domain

// LaunchPlan is a named, ready-to-run set of workflow inputs.
type LaunchPlan struct {
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	QualityThreshold int         `json:"qualityThreshold"`
	PairedEnd        []PairedEnd `json:"pairedEnd,omitempty"`
	SingleEnd        []SingleEnd `json:"singleEnd,omitempty"`
	AdapterFasta     FileRef     `json:"adapterFasta,omitempty"`
	AdapterString    string      `json:"adapterString,omitempty"`
}
