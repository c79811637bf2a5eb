// Package extract turns fetched page content into signal candidates.
package extract

import "github.com/Amsmoox/tradebot/internal/model"

// Extractor parses page content into signal candidates. Extraction never
// fails: a page whose layout does not match yields an empty slice, with the
// mismatch logged for diagnosis. An empty result is a valid zero-activity
// outcome, not an error.
type Extractor interface {
	Extract(content []byte, sourceURL string) []model.Candidate
}
