package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Stable(t *testing.T) {
	c := Candidate{
		Instrument: "EUR/USD",
		Action:     "BUY",
		EntryPrice: "1.0850",
		StopLoss:   "1.0800",
		TakeProfit: "1.0920",
	}
	assert.Equal(t, c.Fingerprint(), c.Fingerprint())
	assert.Len(t, c.Fingerprint(), 64)
}

func TestFingerprint_IgnoresRawTextAndTime(t *testing.T) {
	a := Candidate{Instrument: "GBP/USD", Action: "SELL", EntryPrice: "1.2700"}
	b := a
	b.RawText = "completely different formatted text"
	b.Status = "Closed"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	s1 := a.Signal("id1", "fxsource", "https://example.com", time.Now())
	s2 := b.Signal("id2", "fxsource", "https://example.com", time.Now().Add(time.Hour))
	assert.Equal(t, s1.Fingerprint, s2.Fingerprint)
}

func TestFingerprint_DiffersOnIdentityFields(t *testing.T) {
	a := Candidate{Instrument: "EUR/USD", Action: "BUY", EntryPrice: "1.0850"}
	b := a
	b.EntryPrice = "1.0851"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := a
	c.Action = "SELL"
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestFingerprint_EmptyFieldsEqual(t *testing.T) {
	// A field going from empty to empty must not distinguish records.
	a := Candidate{Instrument: "XAU/USD", Action: "BUY"}
	b := Candidate{Instrument: "XAU/USD", Action: "BUY", StopLoss: ""}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestValidators_Merge(t *testing.T) {
	prev := Validators{ETag: `"v1"`, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"}

	// Non-empty fields overwrite.
	got := prev.Merge(Validators{ETag: `"v2"`})
	assert.Equal(t, `"v2"`, got.ETag)
	assert.Equal(t, prev.LastModified, got.LastModified)

	// Fully empty update preserves everything.
	got = prev.Merge(Validators{})
	assert.Equal(t, prev, got)
}

func TestCandidate_Signal(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := Candidate{Instrument: "EUR/USD", Action: "BUY", EntryPrice: "1.0850", Status: "Active"}
	s := c.Signal("abc", "fxleaders", "https://www.fxleaders.com/forex-signals", at)

	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, "fxleaders", s.Source)
	assert.Equal(t, c.Fingerprint(), s.Fingerprint)
	assert.Equal(t, at, s.ScrapedAt)
}
