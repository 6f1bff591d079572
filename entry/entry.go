// Package entry finds the conventional entry points of loaded units and
// invokes them.
//
// A unit's entry point is a top-level function named "main" that takes one
// parameter, the argument list. A unit may also define "setScriptContext",
// which takes the active script context and is called before main.
package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting/loader"
)

const (
	// MainName is the name of the main entry function.
	MainName = "main"

	// ContextSetterName is the name of the optional context setter.
	ContextSetterName = "setScriptContext"
)

var (
	// ErrNoEntry is returned when a unit has no usable entry function.
	ErrNoEntry = errors.New("no entry point")

	// ErrAccessDenied is returned when the policy forbids invoking the entry
	// of a non-public unit.
	ErrAccessDenied = errors.New("access denied")
)

// EntryPoint is a callable entry of one loaded unit.
type EntryPoint interface {
	Invoke(ctx context.Context, args ...object.Object) (object.Object, error)
}

// Policy controls which entries may be invoked.
type Policy struct {
	// AllowNonPublic permits invoking entries of non-public units.
	AllowNonPublic bool
}

// DefaultPolicy allows entries of non-public units, which is what script
// sources without a named unit compile to.
var DefaultPolicy = Policy{AllowNonPublic: true}

type function struct {
	unit *loader.Unit
	fn   *object.Function
}

func (f *function) Invoke(ctx context.Context, args ...object.Object) (object.Object, error) {
	return f.unit.Call(ctx, f.fn, args)
}

// HasMain reports whether the unit's compiled code declares a main function
// taking one parameter. The unit is not initialized.
func HasMain(unit *loader.Unit) bool {
	params, ok := unit.Declares(MainName)
	return ok && params == 1
}

// FindMain returns the unit's main entry. The unit is initialized first, and
// an initialization failure is returned as an *InvocationError.
func FindMain(ctx context.Context, unit *loader.Unit) (EntryPoint, error) {
	return find(ctx, unit, MainName)
}

// FindContextSetter returns the unit's context setter.
func FindContextSetter(ctx context.Context, unit *loader.Unit) (EntryPoint, error) {
	return find(ctx, unit, ContextSetterName)
}

func find(ctx context.Context, unit *loader.Unit, name string) (EntryPoint, error) {
	fn, ok, err := unit.Function(ctx, name)
	if err != nil {
		return nil, &InvocationError{Unit: unit.Name(), Entry: name, Err: err}
	}
	if !ok || len(fn.Parameters()) != 1 {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoEntry, unit.Name(), name)
	}
	return &function{unit: unit, fn: fn}, nil
}

// InvocationError reports a failure while running a unit: its module body,
// its context setter or its main entry.
type InvocationError struct {
	Unit  string
	Entry string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s.%s: %v", e.Unit, e.Entry, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
