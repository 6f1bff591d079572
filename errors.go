package scripting

import (
	"errors"
	"fmt"

	"github.com/risor-io/scripting/entry"
)

// Kind represents the stage of an evaluation that failed.
type Kind int

const (
	// KindCompilation indicates the compiler reported errors.
	KindCompilation Kind = iota + 1
	// KindResolution indicates a unit could not be found.
	KindResolution
	// KindNoEntry indicates the designated unit has no main entry.
	KindNoEntry
	// KindInvocation indicates the unit failed while running.
	KindInvocation
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCompilation:
		return "compilation failure"
	case KindResolution:
		return "resolution failure"
	case KindNoEntry:
		return "no entry found"
	case KindInvocation:
		return "invocation failure"
	default:
		return "failure"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrCompilation = errors.New("compilation failure")
	ErrResolution  = errors.New("resolution failure")
	ErrNoEntry     = errors.New("no entry found")
	ErrInvocation  = errors.New("invocation failure")
)

// Error is the failure returned by every Engine and CompiledScript
// operation.
type Error struct {
	Kind Kind
	// Unit is the unit involved, when one is known.
	Unit string
	Err  error
}

func (e *Error) Error() string {
	if e.Unit == "" || namesUnit(e.Err) {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Unit, e.Err)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (k Kind) sentinel() error {
	switch k {
	case KindCompilation:
		return ErrCompilation
	case KindResolution:
		return ErrResolution
	case KindNoEntry:
		return ErrNoEntry
	case KindInvocation:
		return ErrInvocation
	}
	return nil
}

func newError(kind Kind, unit string, err error) *Error {
	return &Error{Kind: kind, Unit: unit, Err: err}
}

// namesUnit reports whether err's message already carries the unit name.
func namesUnit(err error) bool {
	var invErr *entry.InvocationError
	return errors.As(err, &invErr) || errors.Is(err, entry.ErrNoEntry)
}
