package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amsmoox/tradebot/internal/model"
)

// ErrDuplicateFingerprint is returned by InsertSignal when the fingerprint
// already exists. The orchestrator's pre-insert snapshot check makes this
// rare, but a race window exists between snapshot and insert, so the unique
// index acts as a backstop.
var ErrDuplicateFingerprint = eris.New("store: duplicate fingerprint")

// SignalFilter specifies criteria for listing signals.
type SignalFilter struct {
	Source string    `json:"source,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// Store defines persistence for watermarks and harvested signals.
// Implementations must treat any returned error as fatal for the calling
// cycle; the orchestrator aborts without touching the watermark.
type Store interface {
	// Watermarks
	GetOrCreateWatermark(ctx context.Context, source string, defaultInterval int) (*model.Watermark, error)
	SaveWatermark(ctx context.Context, wm *model.Watermark) error

	// Signals
	InsertSignal(ctx context.Context, sig model.Signal) error
	KnownFingerprints(ctx context.Context) (map[string]struct{}, error)
	ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error)
	CountSignalsSince(ctx context.Context, source string, since time.Time) (int, error)
	CountSignals(ctx context.Context, source string) (int, error)
	DeleteSignalsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
