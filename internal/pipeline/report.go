package pipeline

import (
	"github.com/lukman83/autopost/internal/publish"
)

// Report summarizes one batch run. Failures lists every failed label in
// order; DiscoveryFailures and PublishFailures split it by stage.
type Report struct {
	RunID             string             `json:"run_id"`
	Successes         []string           `json:"successes"`
	Failures          []string           `json:"failures"`
	DiscoveryFailures []string           `json:"discovery_failures"`
	PublishFailures   []string           `json:"publish_failures"`
	Outcomes          []*publish.Outcome `json:"outcomes"`
}

func (r *Report) success(label string, out *publish.Outcome) {
	r.Successes = append(r.Successes, label)
	r.Outcomes = append(r.Outcomes, out)
}

func (r *Report) discoveryFailure(label string) {
	r.DiscoveryFailures = append(r.DiscoveryFailures, label)
	r.Failures = append(r.Failures, label)
}

func (r *Report) publishFailure(label string) {
	r.PublishFailures = append(r.PublishFailures, label)
	r.Failures = append(r.Failures, label)
}
