package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/risor-io/scripting/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigName = ".risor-script.yaml"

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "risor-script",
		Short:         "Compile and run Risor scripts in memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is $HOME/"+defaultConfigName+")")
	pf.StringP("code", "c", "", "Code to evaluate")
	pf.Bool("stdin", false, "Read code from stdin")
	pf.String("sourcepath", "", "Directories holding imported sources")
	pf.String("modulepath", "", "Directories holding precompiled or source modules")
	pf.String("main", "", "Name of the unit to invoke")
	pf.Bool("allow-non-public", true, "Allow invoking entries of non-public units")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Bool("no-default-globals", false, "Disable the standard library")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.StringP("output", "o", "", "Output format (json, text)")

	v.BindPFlag("config", pf.Lookup("config"))
	v.BindPFlag("code", pf.Lookup("code"))
	v.BindPFlag("stdin", pf.Lookup("stdin"))
	v.BindPFlag(config.KeySourcePath, pf.Lookup("sourcepath"))
	v.BindPFlag(config.KeyModulePath, pf.Lookup("modulepath"))
	v.BindPFlag(config.KeyMainUnit, pf.Lookup("main"))
	v.BindPFlag(config.KeyAllowNonPublic, pf.Lookup("allow-non-public"))
	v.BindPFlag("no-color", pf.Lookup("no-color"))
	v.BindPFlag("no-default-globals", pf.Lookup("no-default-globals"))
	v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	v.BindPFlag("output", pf.Lookup("output"))

	root.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return outputFormatsCompletion, cobra.ShellCompDirectiveDefault
	})

	root.AddCommand(newRunCmd(v), newCompileCmd(v), newVersionCmd(v))
	return root
}

// loadConfig reads the config file and environment into v and applies the
// global flags.
func loadConfig(v *viper.Viper) (*config.Config, zerolog.Logger, error) {
	file := v.GetString("config")
	if file == "" {
		if home, err := homedir.Dir(); err == nil {
			candidate := filepath.Join(home, defaultConfigName)
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
			}
		}
	}
	cfg, err := config.Load(config.LoadOptions{File: file, Viper: v})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if v.GetBool("no-color") {
		color.NoColor = true
	}
	logger, err := newLogger(cfg.LogLevel, v.GetBool("no-color"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newLogger(level string, noColor bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor || !isTerminal(os.Stderr)}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func main() {
	cmd := newRootCmd(viper.New())
	if err := cmd.Execute(); err != nil {
		os.Exit(reportError(cmd.ErrOrStderr(), err))
	}
}
