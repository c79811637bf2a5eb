package model

import "time"

// CycleOutcome classifies a completed delta-scrape cycle.
type CycleOutcome string

const (
	// OutcomeUnchanged means the upstream reported no change since the
	// cached validators (HTTP 304 path). Extraction never ran.
	OutcomeUnchanged CycleOutcome = "unchanged"
	// OutcomeNoNewSignals means content changed but every extracted
	// candidate was a known duplicate (or extraction found nothing).
	OutcomeNoNewSignals CycleOutcome = "no_new_signals"
	// OutcomeNewSignals means at least one signal was persisted.
	OutcomeNewSignals CycleOutcome = "new_signals"
	// OutcomeFailed means the cycle aborted before the watermark write.
	OutcomeFailed CycleOutcome = "failed"
)

// CycleResult summarizes one delta-scrape cycle. It is transient: consumed
// by the interval policy, the scheduler and the trigger surfaces, never
// persisted.
type CycleResult struct {
	Source     string       `json:"source"`
	Outcome    CycleOutcome `json:"outcome"`
	Extracted  int          `json:"extracted"`
	New        int          `json:"new"`
	Duplicates int          `json:"duplicates"`
	Err        string       `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Success reports whether the cycle completed (any outcome but failed).
func (r CycleResult) Success() bool {
	return r.Outcome != OutcomeFailed
}

// SourceStatus is the operator-facing view of one source: the watermark
// snapshot plus recent activity, so "healthy but quiet" is distinguishable
// from "broken".
type SourceStatus struct {
	Source        string     `json:"source"`
	Watermark     *Watermark `json:"watermark,omitempty"`
	SignalsLast24 int        `json:"signals_last_24h"`
	SignalsTotal  int        `json:"signals_total"`
	LastFailure   string     `json:"last_failure,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}
