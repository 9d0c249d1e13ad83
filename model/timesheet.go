package model

import "time"

// Signature is one attestation over a Timesheet's canonical bytes.
type Signature struct {
	SignerID  string
	Algorithm string // always "ed25519" for now
	Bytes     []byte
}

// TimesheetMeta carries compilation/submission bookkeeping.
type TimesheetMeta struct {
	CompiledAt   time.Time
	SubmittedAt  *time.Time
	SubmittedBy  string
}

// Timesheet is a compiled, signable view over a Log for one audience.
type Timesheet struct {
	AudienceID string
	Date       Date
	Timezone   string
	Timeline   []Session // each carries a full embedded Intent snapshot
	Meta       TimesheetMeta
	Signatures []Signature
}

// Clone returns a deep copy.
func (t Timesheet) Clone() Timesheet {
	c := t
	c.Timeline = make([]Session, len(t.Timeline))
	for i, s := range t.Timeline {
		c.Timeline[i] = s.Clone()
	}
	c.Signatures = append([]Signature(nil), t.Signatures...)
	if t.Meta.SubmittedAt != nil {
		sa := *t.Meta.SubmittedAt
		c.Meta.SubmittedAt = &sa
	}
	return c
}

// IsSubmitted reports whether this timesheet has already been submitted.
func (t Timesheet) IsSubmitted() bool { return t.Meta.SubmittedAt != nil }
