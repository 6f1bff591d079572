// Package loader defines compiled units in isolated namespaces.
//
// A Namespace holds the artifacts of one compilation and defines each of them
// at most once, on first use. Names it does not hold are delegated to a
// parent namespace and finally to an optional module path. Import
// statements inside a unit resolve through the same chain, and the VM of the
// importing unit evaluates each imported module once.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/risor-io/risor/builtins"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting/artifact"
	"github.com/risor-io/scripting/toolchain"
)

var (
	// ErrNotFound is returned when a unit is in neither the namespace, its
	// parent chain nor the module path.
	ErrNotFound = errors.New("unit not found")

	// ErrImportCycle is returned when units import each other while being
	// initialized.
	ErrImportCycle = errors.New("import cycle")
)

// Namespace is a scoped registry of loaded units. It is append-only: units
// are defined lazily and never removed.
type Namespace struct {
	parent     *Namespace
	artifacts  *artifact.Map
	modulePath string
	globals    map[string]any
	names      []string

	mu    sync.Mutex
	units map[string]*Unit
}

// NewRoot returns a namespace without artifacts or parent. Units compiled
// against the given globals run with them. An engine keeps one root
// namespace as the default parent of every namespace it creates.
func NewRoot(globals map[string]any) *Namespace {
	g := make(map[string]any, len(globals))
	for k, v := range globals {
		g[k] = v
	}
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)
	return &Namespace{
		artifacts: artifact.NewMap(nil, nil),
		globals:   g,
		names:     names,
		units:     map[string]*Unit{},
	}
}

var (
	defaultRootOnce sync.Once
	defaultRoot     *Namespace
)

// DefaultRoot returns the process-wide root namespace used by New when no
// parent is given. Its units run with the Risor builtins as globals.
func DefaultRoot() *Namespace {
	defaultRootOnce.Do(func() {
		globals := map[string]any{}
		for name, value := range builtins.Builtins() {
			globals[name] = value
		}
		defaultRoot = NewRoot(globals)
	})
	return defaultRoot
}

// New returns a namespace that defines units from artifacts. Names that are
// not in artifacts are resolved through parent, then through modulePath. A
// nil parent means DefaultRoot. The namespace inherits its parent's globals.
func New(artifacts *artifact.Map, modulePath string, parent *Namespace) *Namespace {
	if artifacts == nil {
		artifacts = artifact.NewMap(nil, nil)
	}
	if parent == nil {
		parent = DefaultRoot()
	}
	return &Namespace{
		parent:     parent,
		artifacts:  artifacts,
		modulePath: modulePath,
		globals:    parent.globals,
		names:      parent.names,
		units:      map[string]*Unit{},
	}
}

// Parent returns the parent namespace, or nil for a root namespace.
func (ns *Namespace) Parent() *Namespace {
	return ns.parent
}

// Artifacts returns the artifacts this namespace defines units from.
func (ns *Namespace) Artifacts() *artifact.Map {
	return ns.artifacts
}

// Globals returns the names of the globals units in this namespace run with.
func (ns *Namespace) Globals() []string {
	names := make([]string, len(ns.names))
	copy(names, ns.names)
	return names
}

// Defined returns the names of the units defined in this namespace so far,
// sorted.
func (ns *Namespace) Defined() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	names := make([]string, 0, len(ns.units))
	for name := range ns.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the named unit. The namespace's own artifacts are checked
// first, then the parent chain, then the module path. Resolving the same name
// again returns the same *Unit.
func (ns *Namespace) Resolve(ctx context.Context, name string) (*Unit, error) {
	if u, ok := ns.lookup(name); ok {
		return u, nil
	}
	if data, ok := ns.artifacts.Get(name); ok {
		code, err := compiler.UnmarshalCode(data)
		if err != nil {
			return nil, fmt.Errorf("define unit %q: %w", name, err)
		}
		return ns.define(name, code), nil
	}
	if ns.parent != nil {
		u, err := ns.parent.Resolve(ctx, name)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	u, err := ns.resolveModulePath(ctx, name)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// ResolveAll defines every unit in the namespace's artifacts and returns them
// in emission order.
func (ns *Namespace) ResolveAll(ctx context.Context) ([]*Unit, error) {
	names := ns.artifacts.Names()
	units := make([]*Unit, 0, len(names))
	for _, name := range names {
		u, err := ns.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// Define adds already compiled code to the namespace under name. If the name
// is already defined, the existing unit is returned and code is ignored.
func (ns *Namespace) Define(name string, code *compiler.Code) *Unit {
	return ns.define(name, code)
}

// Import implements importer.Importer. The returned module has not been
// evaluated; the importing VM runs its body.
func (ns *Namespace) Import(ctx context.Context, name string) (*object.Module, error) {
	u, err := ns.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return object.NewModule(name, u.code), nil
}

// session is the importer of one unit's VM. The VM caches every module it
// has evaluated, so a name reaching the importer twice is still being
// evaluated further up the import chain.
type session struct {
	ns *Namespace

	mu      sync.Mutex
	started map[string]bool
}

func newSession(u *Unit) *session {
	return &session{ns: u.ns, started: map[string]bool{u.name: true}}
}

func (s *session) Import(ctx context.Context, name string) (*object.Module, error) {
	s.mu.Lock()
	cycle := s.started[name]
	s.mu.Unlock()
	if cycle {
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, name)
	}
	module, err := s.ns.Import(ctx, name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.started[name] = true
	s.mu.Unlock()
	return module, nil
}

func (ns *Namespace) lookup(name string) (*Unit, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	u, ok := ns.units[name]
	return u, ok
}

// define stores a unit unless one with the same name already exists, in
// which case the existing unit wins.
func (ns *Namespace) define(name string, code *compiler.Code) *Unit {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if u, ok := ns.units[name]; ok {
		return u
	}
	u := newUnit(name, code, ns)
	ns.units[name] = u
	return u
}

func (ns *Namespace) resolveModulePath(ctx context.Context, name string) (*Unit, error) {
	if data, err := artifact.ModulePath(ns.modulePath).ReadArtifact(name); err == nil {
		code, err := compiler.UnmarshalCode(data)
		if err != nil {
			return nil, fmt.Errorf("define unit %q from module path: %w", name, err)
		}
		return ns.define(name, code), nil
	}
	for _, dir := range filepath.SplitList(ns.modulePath) {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name+toolchain.SourceExt)); err != nil {
			continue
		}
		imp := importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: ns.names,
			SourceDir:   dir,
			Extensions:  []string{toolchain.SourceExt},
		})
		module, err := imp.Import(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("compile module %q from %s: %w", name, dir, err)
		}
		return ns.define(name, module.Code()), nil
	}
	return nil, nil
}
