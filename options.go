package scripting

import (
	"github.com/risor-io/scripting/config"
	"github.com/risor-io/scripting/toolchain"
	"github.com/rs/zerolog"
)

// Option describes a function used to configure an Engine.
type Option func(*options)

type options struct {
	globals               map[string]any
	withoutDefaultGlobals bool
	deprecated            map[string]string
	toolchain             toolchain.Toolchain
	logger                zerolog.Logger
	config                *config.Config
	context               *ScriptContext
	allowNonPublic        *bool
}

// WithGlobals provides global variables that are made available to scripts.
// This option is additive, so multiple WithGlobals options may be supplied.
// If the same key is supplied multiple times, the last supplied value is
// used.
func WithGlobals(globals map[string]any) Option {
	return func(o *options) {
		for k, v := range globals {
			o.globals[k] = v
		}
	}
}

// WithoutDefaultGlobals opts out of the default builtins and modules. The
// output builtins are still provided.
func WithoutDefaultGlobals() Option {
	return func(o *options) {
		o.withoutDefaultGlobals = true
	}
}

// WithDeprecated marks globals as deprecated. Uses are reported as compiler
// warnings carrying the given hint.
func WithDeprecated(deprecated map[string]string) Option {
	return func(o *options) {
		for k, v := range deprecated {
			o.deprecated[k] = v
		}
	}
}

// WithToolchain replaces the Risor toolchain. The toolchain must be safe for
// concurrent use.
func WithToolchain(tc toolchain.Toolchain) Option {
	return func(o *options) {
		o.toolchain = tc
	}
}

// WithLogger sets the logger used for evaluation phase transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig sets the values used when a script context leaves an attribute
// unset.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithContext sets the script context used by calls that pass nil.
func WithContext(sc *ScriptContext) Option {
	return func(o *options) {
		o.context = sc
	}
}

// WithAllowNonPublic sets whether entries of non-public units may run. It
// overrides the configured value.
func WithAllowNonPublic(allow bool) Option {
	return func(o *options) {
		o.allowNonPublic = &allow
	}
}
