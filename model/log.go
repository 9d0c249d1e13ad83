package model

import "sort"

// Log is one day's recording.
type Log struct {
	Date     Date
	Timezone string // IANA zone name
	Timeline []Session
	Summary  map[string]SummaryEntry // optional, non-authoritative
}

// SummaryEntry is a coarser per-intent total kept alongside a Log purely for
// human review; it is never consulted by any invariant or algorithm.
type SummaryEntry struct {
	IntentID string
	Total    string // human-rendered duration, e.g. "3h15m"
}

// SortTimeline sorts the timeline by start, the canonical collection order
// a Log is always serialized in.
func (l *Log) SortTimeline() {
	sort.SliceStable(l.Timeline, func(i, j int) bool {
		return l.Timeline[i].Start.Before(l.Timeline[j].Start)
	})
}

// ActiveSession returns the last session if it is open.
func (l Log) ActiveSession() (Session, bool) {
	if len(l.Timeline) == 0 {
		return Session{}, false
	}
	last := l.Timeline[len(l.Timeline)-1]
	if last.IsOpen() {
		return last, true
	}
	return Session{}, false
}

// IsClosed reports whether no session is open.
func (l Log) IsClosed() bool {
	_, open := l.ActiveSession()
	return !open
}

// Clone returns a deep copy.
func (l Log) Clone() Log {
	c := l
	c.Timeline = make([]Session, len(l.Timeline))
	for i, s := range l.Timeline {
		c.Timeline[i] = s.Clone()
	}
	if l.Summary != nil {
		c.Summary = make(map[string]SummaryEntry, len(l.Summary))
		for k, v := range l.Summary {
			c.Summary[k] = v
		}
	}
	return c
}
