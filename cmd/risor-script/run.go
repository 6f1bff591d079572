package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting"
	"github.com/risor-io/scripting/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newEngine(v *viper.Viper, cfg *config.Config, logger zerolog.Logger) (*scripting.Engine, error) {
	opts := []scripting.Option{
		scripting.WithConfig(cfg),
		scripting.WithLogger(logger),
	}
	if v.GetBool("no-default-globals") {
		opts = append(opts, scripting.WithoutDefaultGlobals())
	}
	return scripting.New(opts...)
}

func newScriptContext(cmd *cobra.Command, filename string, args []string) *scripting.ScriptContext {
	sc := scripting.NewScriptContext()
	sc.SetWriter(cmd.OutOrStdout())
	sc.SetErrorWriter(cmd.ErrOrStderr())
	sc.SetReader(cmd.InOrStdin())
	sc.SetAttribute(scripting.KeyArguments, args, scripting.EngineScope)
	if filename != "" {
		sc.SetAttribute(scripting.KeyFilename, filename, scripting.EngineScope)
	}
	return sc
}

type runOutput struct {
	ID      string        `json:"id"`
	Unit    string        `json:"unit,omitempty"`
	Invoked bool          `json:"invoked"`
	Value   object.Object `json:"value,omitempty"`
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run [file] [-- args...]",
		Short: "Compile a script, then invoke its entry point",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			files, scriptArgs := splitArgs(cmd, args)
			if len(files) > 1 {
				return errors.New("run accepts at most one file")
			}
			code, filename, err := getCode(v, cmd.InOrStdin(), files)
			if err != nil {
				return err
			}
			engine, err := newEngine(v, cfg, logger)
			if err != nil {
				return err
			}
			sc := newScriptContext(cmd, filename, scriptArgs)
			result, err := engine.Eval(cmd.Context(), code, sc)
			if err != nil {
				return err
			}
			output, err := formatResult(result, v.GetString("output"), v.GetBool("no-color"))
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), output)
			}
			return nil
		},
	}
}

func formatResult(result *scripting.Result, format string, noColor bool) (string, error) {
	if strings.ToLower(format) == "json" {
		out := runOutput{ID: result.ID.String(), Invoked: result.Invoked, Value: result.Value}
		if result.Unit != nil {
			out.Unit = result.Unit.Name()
		}
		return getOutput(out, format, noColor)
	}
	if result.Value == nil || result.Value == object.Nil {
		return "", nil
	}
	return getOutput(result.Value, format, noColor)
}

func newCompileCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a script and list its artifacts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			code, filename, err := getCode(v, cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			engine, err := newEngine(v, cfg, logger)
			if err != nil {
				return err
			}
			cs, err := engine.Compile(cmd.Context(), code, newScriptContext(cmd, filename, nil))
			if err != nil {
				return err
			}
			artifacts := cs.Artifacts()
			size := func(name string) int {
				data, _ := artifacts.Get(name)
				return len(data)
			}
			if strings.ToLower(v.GetString("output")) == "json" {
				sizes := make([]map[string]any, 0, artifacts.Len())
				for _, name := range artifacts.Names() {
					sizes = append(sizes, map[string]any{"name": name, "size": size(name)})
				}
				output, err := getOutput(sizes, "json", v.GetBool("no-color"))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			}
			bold := color.New(color.Bold).SprintFunc()
			for _, name := range artifacts.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", bold(name), size(name))
			}
			return nil
		},
	}
}

func newVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.ToLower(v.GetString("output")) == "json" {
				output, err := getOutput(map[string]any{
					"version": version,
					"commit":  commit,
					"date":    date,
				}, "json", v.GetBool("no-color"))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "risor-script %s (%s, %s)\n", version, commit, date)
			return nil
		},
	}
}
