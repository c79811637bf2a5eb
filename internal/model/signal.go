package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Signal is a single forex trading signal harvested from a source page.
// Signals are immutable once persisted; retention cleanup deletes them,
// nothing ever updates them.
type Signal struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Instrument  string    `json:"instrument"`
	Action      string    `json:"action"` // "BUY" / "SELL"
	EntryPrice  string    `json:"entry_price,omitempty"`
	StopLoss    string    `json:"stop_loss,omitempty"`
	TakeProfit  string    `json:"take_profit,omitempty"`
	Status      string    `json:"status,omitempty"` // "Active", "Get Ready", "Closed"
	RawText     string    `json:"raw_text,omitempty"`
	SourceURL   string    `json:"source_url"`
	Fingerprint string    `json:"fingerprint"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Candidate is a signal as produced by an extractor, before dedupe and
// persistence have assigned it an ID and fingerprint.
type Candidate struct {
	Instrument string
	Action     string
	EntryPrice string
	StopLoss   string
	TakeProfit string
	Status     string
	RawText    string
}

// Fingerprint computes the dedupe key for a candidate: a sha256 digest over
// the identity fields joined with an explicit separator. Prices and the
// action define identity; RawText and capture time do not. Missing fields
// contribute an empty string, so two candidates that both lack a stop loss
// hash identically.
func (c Candidate) Fingerprint() string {
	parts := []string{
		c.Instrument,
		c.Action,
		c.EntryPrice,
		c.StopLoss,
		c.TakeProfit,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Signal converts the candidate into a persistable Signal. The caller
// assigns the ID.
func (c Candidate) Signal(id, source, sourceURL string, at time.Time) Signal {
	return Signal{
		ID:          id,
		Source:      source,
		Instrument:  c.Instrument,
		Action:      c.Action,
		EntryPrice:  c.EntryPrice,
		StopLoss:    c.StopLoss,
		TakeProfit:  c.TakeProfit,
		Status:      c.Status,
		RawText:     c.RawText,
		SourceURL:   sourceURL,
		Fingerprint: c.Fingerprint(),
		ScrapedAt:   at,
	}
}
