// Package signal turns confluence results into trade signals and gates entries
// by time of day.
package signal

import "time"

// Window is the configured trading session.
type Window struct {
	StartHour int
	EndHour   int
	// EntryMinuteWindow limits entries to the first N minutes of each hour.
	// Zero disables the limit.
	EntryMinuteWindow int
	Location          *time.Location
}

// Gate is a stateless time-of-day predicate.
type Gate struct {
	w Window
}

// NewGate returns a Gate for w. A nil location means UTC.
func NewGate(w Window) *Gate {
	if w.Location == nil {
		w.Location = time.UTC
	}
	return &Gate{w: w}
}

// InWindow reports whether now falls in [StartHour, EndHour). Windows where
// StartHour > EndHour wrap midnight; equal hours mean the session never
// closes.
func (g *Gate) InWindow(now time.Time) bool {
	h := now.In(g.w.Location).Hour()
	start, end := g.w.StartHour, g.w.EndHour
	switch {
	case start == end:
		return true
	case start < end:
		return h >= start && h < end
	default:
		return h >= start || h < end
	}
}

// AllowsEntry reports whether a new position may be opened at now.
func (g *Gate) AllowsEntry(now time.Time) bool {
	if !g.InWindow(now) {
		return false
	}
	if g.w.EntryMinuteWindow > 0 && now.In(g.w.Location).Minute() >= g.w.EntryMinuteWindow {
		return false
	}
	return true
}
