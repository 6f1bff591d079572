package scripting

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
)

// Scope identifies a set of bindings in a ScriptContext. Lower scopes are
// searched first.
type Scope int

const (
	// EngineScope holds attributes for one engine or one call.
	EngineScope Scope = 100
	// GlobalScope holds attributes shared by every engine using the context.
	GlobalScope Scope = 200
)

// Conventional attribute keys.
const (
	KeyFilename        = "script.filename"
	KeyArguments       = "arguments"
	KeySourcePath      = "sourcepath"
	KeyModulePath      = "modulepath"
	KeyMainUnit        = "mainUnit"
	KeyParentNamespace = "parentNamespace"
	KeyContext         = "context"
)

// Bindings is a set of named attributes.
type Bindings map[string]any

// ScriptContext carries attributes and I/O handles into an evaluation. It is
// owned by the caller and may be shared between calls and goroutines.
type ScriptContext struct {
	mu     sync.RWMutex
	scopes map[Scope]Bindings
	writer io.Writer
	errOut io.Writer
	reader io.Reader
}

// NewScriptContext returns a context with empty engine and global scopes
// that writes to os.Stdout and os.Stderr and reads from os.Stdin.
func NewScriptContext() *ScriptContext {
	return &ScriptContext{
		scopes: map[Scope]Bindings{
			EngineScope: {},
			GlobalScope: {},
		},
		writer: os.Stdout,
		errOut: os.Stderr,
		reader: os.Stdin,
	}
}

// Attribute returns the value of name from the lowest scope that has it.
func (sc *ScriptContext) Attribute(name string) (any, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	for _, scope := range sc.sortedScopes() {
		if v, ok := sc.scopes[scope][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// AttributeIn returns the value of name in one scope.
func (sc *ScriptContext) AttributeIn(name string, scope Scope) (any, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	v, ok := sc.scopes[scope][name]
	return v, ok
}

// SetAttribute sets name in the given scope, creating the scope if needed.
func (sc *ScriptContext) SetAttribute(name string, value any, scope Scope) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	b, ok := sc.scopes[scope]
	if !ok {
		b = Bindings{}
		sc.scopes[scope] = b
	}
	b[name] = value
}

// RemoveAttribute deletes name from the given scope.
func (sc *ScriptContext) RemoveAttribute(name string, scope Scope) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.scopes[scope], name)
}

// Bindings returns a copy of the attributes in one scope.
func (sc *ScriptContext) Bindings(scope Scope) Bindings {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	b := make(Bindings, len(sc.scopes[scope]))
	for k, v := range sc.scopes[scope] {
		b[k] = v
	}
	return b
}

// Scopes returns the scopes of the context in search order.
func (sc *ScriptContext) Scopes() []Scope {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sortedScopes()
}

func (sc *ScriptContext) sortedScopes() []Scope {
	scopes := make([]Scope, 0, len(sc.scopes))
	for s := range sc.scopes {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes
}

// StringAttribute returns the string attribute name, or "" when it is unset
// or not a string.
func (sc *ScriptContext) StringAttribute(name string) string {
	v, _ := sc.Attribute(name)
	s, _ := v.(string)
	return s
}

// Arguments returns the invocation argument list. A []any attribute is
// accepted when every element is a string.
func (sc *ScriptContext) Arguments() []string {
	v, _ := sc.Attribute(KeyArguments)
	switch args := v.(type) {
	case []string:
		out := make([]string, len(args))
		copy(out, args)
		return out
	case []any:
		out := make([]string, 0, len(args))
		for _, a := range args {
			s, ok := a.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// Writer returns the output writer.
func (sc *ScriptContext) Writer() io.Writer {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.writer
}

// SetWriter sets the output writer.
func (sc *ScriptContext) SetWriter(w io.Writer) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.writer = w
}

// ErrorWriter returns the writer for errors and compiler diagnostics.
func (sc *ScriptContext) ErrorWriter() io.Writer {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.errOut
}

// SetErrorWriter sets the error writer.
func (sc *ScriptContext) SetErrorWriter(w io.Writer) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.errOut = w
}

// Reader returns the input reader.
func (sc *ScriptContext) Reader() io.Reader {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.reader
}

// SetReader sets the input reader.
func (sc *ScriptContext) SetReader(r io.Reader) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.reader = r
}

type scriptContextKey struct{}

// WithScriptContext returns a copy of ctx carrying sc. Script builtins write
// to the writers of the ScriptContext found on their context.
func WithScriptContext(ctx context.Context, sc *ScriptContext) context.Context {
	return context.WithValue(ctx, scriptContextKey{}, sc)
}

// GetScriptContext returns the ScriptContext carried by ctx, if any.
func GetScriptContext(ctx context.Context) (*ScriptContext, bool) {
	sc, ok := ctx.Value(scriptContextKey{}).(*ScriptContext)
	return sc, ok
}
