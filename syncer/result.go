package syncer

import "time"

// Result summarises one orchestration run. Partial failure is a first-class
// outcome: entity types that failed appear in Errors, the rest report their
// synced counts.
type Result struct {
	TenantID   string             `json:"tenant_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Counts     map[EntityType]int `json:"counts"`
	Errors     []string           `json:"errors,omitempty"`
}

func (r *Result) Total() int {
	total := 0
	for _, count := range r.Counts {
		total += count
	}
	return total
}

func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}
