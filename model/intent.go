package model

import "strings"

// LocalPrefix marks an intent id as locally created (and therefore mutable).
const LocalPrefix = "local:"

// Intent is a reusable description of a kind of work.
type Intent struct {
	IntentID  string   `canon:"intent_id"`
	Alias     string   `canon:"alias"`
	Role      string   `canon:"role,omitempty"`
	Objective string   `canon:"objective,omitempty"`
	Action    string   `canon:"action,omitempty"`
	Subject   string   `canon:"subject,omitempty"`
	Trackers  []string `canon:"trackers,omitempty"`
}

// IsLocal reports whether this intent's id is owned by the local source and
// therefore editable in place.
func (i Intent) IsLocal() bool {
	return strings.HasPrefix(i.IntentID, LocalPrefix)
}

// Clone returns a deep copy, safe to mutate independently of i.
func (i Intent) Clone() Intent {
	c := i
	if i.Trackers != nil {
		c.Trackers = append([]string(nil), i.Trackers...)
	}
	return c
}

// Derive seeds a new local intent from i, carrying over every descriptor and
// tracker but assigning the fresh id supplied by the caller (the Plan Store
// is responsible for generating it).
func (i Intent) Derive(newID string) Intent {
	c := i.Clone()
	c.IntentID = newID
	return c
}

// WithUpdatedDescriptors returns a copy of i with role/objective/action/
// subject/trackers replaced from next, but the intent_id and alias retained
// from i, used by the Intent Editor's retroactive session rewrite, which
// must not change the id a session is keyed by.
func (i Intent) WithUpdatedDescriptors(next Intent) Intent {
	c := i.Clone()
	c.Role = next.Role
	c.Objective = next.Objective
	c.Action = next.Action
	c.Subject = next.Subject
	if next.Trackers != nil {
		c.Trackers = append([]string(nil), next.Trackers...)
	} else {
		c.Trackers = nil
	}
	return c
}

// Tracker maps an opaque external id to a display name, contributed by a
// Plan's source.
type Tracker struct {
	ID   string
	Name string
}
