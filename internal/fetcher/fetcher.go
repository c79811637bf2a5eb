package fetcher

import (
	"context"

	"github.com/Amsmoox/tradebot/internal/model"
)

// Status classifies a successful fetch.
type Status int

const (
	// StatusChanged means new content was returned.
	StatusChanged Status = iota
	// StatusUnchanged means the upstream reported nothing newer than the
	// supplied validators (HTTP 304). This is a success path.
	StatusUnchanged
)

// Outcome is the result of a conditional fetch.
type Outcome struct {
	Status Status
	// Body is the decoded page content. Nil when Status is Unchanged.
	Body []byte
	// Validators are the tokens returned by the upstream for this fetch.
	// Fields the upstream did not supply are empty; callers merge them
	// into the watermark rather than overwriting.
	Validators model.Validators
}

// Fetcher retrieves a source page using cached validators to skip
// unchanged content. Implementations never mutate stored state and never
// retry internally; failed cycles are retried by the scheduler.
type Fetcher interface {
	Fetch(ctx context.Context, url string, v model.Validators) (*Outcome, error)
}
