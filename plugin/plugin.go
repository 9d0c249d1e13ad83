// Package plugin defines the capability contracts, PlanSource and
// TimesheetCompiler, and the static Registry that replaces dynamic plugin
// discovery with compile-time registration.
package plugin

import (
	"time"

	"github.com/faffhub/faff-go/model"
)

// DefaultCallTimeout bounds any network call a capability implementation
// makes.
const DefaultCallTimeout = 30 * time.Second

// PlanSource pulls a Plan for a given date from an external system. Every
// implementation must return a Plan whose Source equals the configured
// plugin instance id.
type PlanSource interface {
	ID() string
	PullPlan(date model.Date) (model.Plan, error)
}

// SubmitOutcome reports the result of submitting a compiled Timesheet to an
// external audience.
type SubmitOutcome struct {
	Accepted bool
	Message  string
}

// TimesheetCompiler derives a Timesheet from a Log. Compilers must be pure
// with respect to a given version of the input Log. Every compiler
// implements Submit; compilers with no external audience implement it as a
// no-op that returns a zero SubmitOutcome (Accepted false).
type TimesheetCompiler interface {
	ID() string
	Compile(log model.Log, byID map[string]model.Intent) (model.Timesheet, error)
	Submit(ts model.Timesheet) (SubmitOutcome, error)
}

// Registry is the static, compile-time replacement for dynamic plugin
// discovery (REDESIGN FLAGS): every capability instance available to a
// Workspace is registered here up front instead of being scanned out of
// plugins/ at runtime.
type Registry struct {
	compilers map[string]TimesheetCompiler
	sources   map[string]PlanSource
}

// NewRegistry builds a Registry pre-populated with the built-in compilers
// (all, billable).
func NewRegistry() *Registry {
	r := &Registry{
		compilers: make(map[string]TimesheetCompiler),
		sources:   make(map[string]PlanSource),
	}
	r.RegisterCompiler(AllCompiler{})
	r.RegisterCompiler(BillableCompiler{})
	return r
}

// RegisterCompiler adds (or replaces) a TimesheetCompiler under its own id.
func (r *Registry) RegisterCompiler(c TimesheetCompiler) {
	r.compilers[c.ID()] = c
}

// RegisterSource adds (or replaces) a PlanSource under its own id.
func (r *Registry) RegisterSource(s PlanSource) {
	r.sources[s.ID()] = s
}

// Compiler looks up a registered TimesheetCompiler by id.
func (r *Registry) Compiler(id string) (TimesheetCompiler, bool) {
	c, ok := r.compilers[id]
	return c, ok
}

// Source looks up a registered PlanSource by id.
func (r *Registry) Source(id string) (PlanSource, bool) {
	s, ok := r.sources[id]
	return s, ok
}
