package model

import "time"

// Validators are the conditional-request tokens cached from the last
// successful fetch of a source.
type Validators struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Merge returns v updated with the non-empty fields of newer. Fields the
// upstream did not supply keep their previous value.
func (v Validators) Merge(newer Validators) Validators {
	out := v
	if newer.ETag != "" {
		out.ETag = newer.ETag
	}
	if newer.LastModified != "" {
		out.LastModified = newer.LastModified
	}
	return out
}

// Watermark is the persisted per-source cursor: when the source last
// yielded a completed cycle, which cache validators to send on the next
// fetch, and the adaptive polling state. Exactly one writer exists per
// source (the scheduler never overlaps cycles), so saves are plain
// last-writer-wins.
type Watermark struct {
	Source              string     `json:"source"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	Validators          Validators `json:"validators"`
	PollInterval        int        `json:"poll_interval"` // seconds
	ConsecutiveNoChange int        `json:"consecutive_no_change"`
}
