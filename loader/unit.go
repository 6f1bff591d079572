package loader

import (
	"context"
	"fmt"
	"go/token"
	"sync"

	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/vm"
)

// Unit is one loaded module. When a unit is invoked, its module body runs
// once, in a VM owned by the unit, the first time the unit is initialized.
// Units it imports are evaluated by that VM, once each.
type Unit struct {
	name     string
	code     *compiler.Code
	ns       *Namespace
	exported bool

	mu          sync.Mutex
	initialized bool
	initErr     error
	machine     *vm.VirtualMachine
}

func newUnit(name string, code *compiler.Code, ns *Namespace) *Unit {
	return &Unit{
		name:     name,
		code:     code,
		ns:       ns,
		exported: token.IsExported(name),
	}
}

// Name returns the unit name.
func (u *Unit) Name() string { return u.name }

// Exported reports whether the unit is public, which follows the Go rule for
// exported identifiers.
func (u *Unit) Exported() bool { return u.exported }

// Code returns the unit's compiled code.
func (u *Unit) Code() *compiler.Code { return u.code }

// Namespace returns the namespace that defined the unit.
func (u *Unit) Namespace() *Namespace { return u.ns }

func (u *Unit) String() string {
	return fmt.Sprintf("unit(%s)", u.name)
}

// Declares reports whether the unit's code defines a top-level function with
// the given name, and how many parameters it takes. It reads the compiled
// code and does not run the unit.
func (u *Unit) Declares(name string) (params int, ok bool) {
	if u.code == nil {
		return 0, false
	}
	global := false
	for _, g := range u.code.GlobalNames() {
		if g == name {
			global = true
			break
		}
	}
	if !global {
		return 0, false
	}
	for i := 0; i < u.code.ConstantsCount(); i++ {
		if fn, isFn := u.code.Constant(i).(*compiler.Function); isFn && fn.Name() == name {
			return fn.ParametersCount(), true
		}
	}
	return 0, false
}

// Initialized reports whether the unit's module body has run.
func (u *Unit) Initialized() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.initialized
}

// Initialize runs the module body once. Later calls return the first result.
// A unit that imports itself, directly or through other units, fails with
// ErrImportCycle.
func (u *Unit) Initialize(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.initialized {
		return u.initErr
	}
	machine := vm.New(u.code, vm.WithGlobals(u.ns.globals), vm.WithImporter(newSession(u)))
	err := machine.Run(ctx)
	u.initialized = true
	if err != nil {
		u.initErr = fmt.Errorf("initialize %s: %w", u.name, err)
		return u.initErr
	}
	u.machine = machine
	return nil
}

// Function returns the top-level function with the given name, initializing
// the unit first. The second result is false when the unit has no such
// global or the global is not a function.
func (u *Unit) Function(ctx context.Context, name string) (*object.Function, bool, error) {
	if err := u.Initialize(ctx); err != nil {
		return nil, false, err
	}
	obj, err := u.machine.Get(name)
	if err != nil {
		return nil, false, nil
	}
	fn, ok := obj.(*object.Function)
	return fn, ok, nil
}

// Call calls a function obtained from this unit. The unit must be
// initialized.
func (u *Unit) Call(ctx context.Context, fn *object.Function, args []object.Object) (object.Object, error) {
	u.mu.Lock()
	machine := u.machine
	u.mu.Unlock()
	if machine == nil {
		return nil, fmt.Errorf("unit %s is not initialized", u.name)
	}
	return machine.Call(ctx, fn, args)
}
