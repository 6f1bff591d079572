package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting/loader"
)

// Invoke calls the unit's context setter with ctxObject, when both exist,
// and then its main entry with args as a list of strings. It returns main's
// result. Errors and panics raised by either call are returned as an
// *InvocationError that keeps the cause.
func Invoke(ctx context.Context, unit *loader.Unit, ctxObject object.Object, args []string, policy Policy) (object.Object, error) {
	if !unit.Exported() && !policy.AllowNonPublic {
		return nil, &InvocationError{Unit: unit.Name(), Entry: MainName, Err: ErrAccessDenied}
	}
	main, err := FindMain(ctx, unit)
	if err != nil {
		return nil, err
	}
	if ctxObject != nil {
		setter, err := FindContextSetter(ctx, unit)
		switch {
		case err == nil:
			if _, err := call(ctx, unit.Name(), ContextSetterName, setter, ctxObject); err != nil {
				return nil, err
			}
		case !errors.Is(err, ErrNoEntry):
			return nil, err
		}
	}
	return call(ctx, unit.Name(), MainName, main, Args(args))
}

// Args converts an argument list to the Risor list passed to main.
func Args(args []string) *object.List {
	items := make([]object.Object, 0, len(args))
	for _, arg := range args {
		items = append(items, object.NewString(arg))
	}
	return object.NewList(items)
}

func call(ctx context.Context, unit, name string, ep EntryPoint, args ...object.Object) (result object.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &InvocationError{Unit: unit, Entry: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = ep.Invoke(ctx, args...)
	if err != nil {
		return nil, &InvocationError{Unit: unit, Entry: name, Err: err}
	}
	if errObj, ok := result.(*object.Error); ok {
		return nil, &InvocationError{Unit: unit, Entry: name, Err: errObj.Value()}
	}
	return result, nil
}
