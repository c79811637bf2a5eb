package scraper

// IntervalPolicy adapts a source's poll interval to observed activity:
// fresh signals tighten the poll, a long quiet streak relaxes it. All
// values are seconds.
type IntervalPolicy struct {
	Min               int
	Max               int
	DecreaseStep      int
	IncreaseStep      int
	NoChangeThreshold int
}

// DefaultIntervalPolicy returns the stock policy: 30s to 300s, tighten by
// 15s on activity, relax by 30s after more than 3 quiet cycles.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		Min:               30,
		Max:               300,
		DecreaseStep:      15,
		IncreaseStep:      30,
		NoChangeThreshold: 3,
	}
}

// Next computes the interval for the next cycle. noChangeStreak is the
// count after the current cycle has been folded in. Pure function; the
// result always stays within [Min, Max].
func (p IntervalPolicy) Next(current, newCount, noChangeStreak int) int {
	switch {
	case newCount > 0:
		if next := current - p.DecreaseStep; next > p.Min {
			return next
		}
		return p.Min
	case noChangeStreak > p.NoChangeThreshold:
		if next := current + p.IncreaseStep; next < p.Max {
			return next
		}
		return p.Max
	default:
		return current
	}
}
