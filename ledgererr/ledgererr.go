// Package ledgererr defines the stable error-kind vocabulary the core
// surfaces to callers, in place of raw errors.New/fmt.Errorf throughout.
package ledgererr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a stable, user-facing error category.
type Kind string

const (
	RootNotFound          Kind = "RootNotFound"
	RootExists            Kind = "RootExists"
	NestedRoot            Kind = "NestedRoot"
	FileCorrupt           Kind = "FileCorrupt"
	DuplicateKey          Kind = "DuplicateKey"
	UnknownKey            Kind = "UnknownKey"
	LogInvalid            Kind = "LogInvalid"
	IntentIDCollision     Kind = "IntentIdCollision"
	RemoteIntentImmutable Kind = "RemoteIntentImmutable"
	IntentNotFound        Kind = "IntentNotFound"
	NoActiveSession       Kind = "NoActiveSession"
	SessionOrderViolation Kind = "SessionOrderViolation"
	FutureStart           Kind = "FutureStart"
	IdentityExists        Kind = "IdentityExists"
	IdentityNotFound      Kind = "IdentityNotFound"
	SignatureInvalid      Kind = "SignatureInvalid"
	PluginError           Kind = "PluginError"
	LockContention        Kind = "LockContention"
	DateParse             Kind = "DateParse"
)

// Error is the concrete error value every core operation returns. It carries
// a stable Kind, a human Message, and, where relevant, a file location.
type Error struct {
	Kind    Kind
	Message string
	Path    string
	Line    int
	cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		if e.Line > 0 {
			msg = fmt.Sprintf("%s (%s:%d)", msg, e.Path, e.Line)
		} else {
			msg = fmt.Sprintf("%s (%s)", msg, e.Path)
		}
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no location information.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that wraps a lower-level cause, attaching a stack via
// pkg/errors so the cause remains inspectable by callers that want it.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// At annotates an Error with a file path (and optional line) for user-facing
// location hints.
func (e *Error) At(path string, line int) *Error {
	e.Path = path
	e.Line = line
	return e
}

// Is reports whether err, or any error it wraps, is a *Error of the given
// Kind. *Error has no Is method, so errors.Is cannot compare kinds; use this.
func Is(err error, kind Kind) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind == kind
	}
	return false
}

// Plugin wraps a capability-raised failure.
func Plugin(plugin string, cause error) *Error {
	return Wrap(PluginError, cause, "plugin %q failed", plugin)
}
