package domain

// SourceState enumerates the lifecycle of one source within a run.
type SourceState string

const (
	StatePending         SourceState = "pending"
	StateFetching        SourceState = "fetching"
	StateCompleted       SourceState = "completed"
	StateStoppedAtCutoff SourceState = "stopped_at_cutoff"
	StateFailed          SourceState = "failed"
)

// SourceReport carries the per-source outcome counters of one ingestion run.
type SourceReport struct {
	Source           string
	State            SourceState
	Fetched          int
	SkippedDuplicate int
	SkippedEmpty     int
	Saved            int
	Errors           int
	Err              error
}

// RunReport aggregates all source reports of a single run.
type RunReport struct {
	RunID   string
	Sources []SourceReport
}

// Saved sums saved documents across sources.
func (r RunReport) Saved() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Saved
	}
	return total
}

// Failed reports whether any source terminated in the failed state.
func (r RunReport) Failed() bool {
	for _, s := range r.Sources {
		if s.State == StateFailed {
			return true
		}
	}
	return false
}
