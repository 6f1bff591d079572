package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/risor-io/scripting"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var red = color.New(color.FgRed).SprintFunc()

// reportError writes err to w and returns the process exit code for it.
// Script failures exit with a code naming the stage that failed.
func reportError(w io.Writer, err error) int {
	fmt.Fprintln(w, red(err.Error()))
	var scriptErr *scripting.Error
	if errors.As(err, &scriptErr) {
		return 1 + int(scriptErr.Kind)
	}
	return 1
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// splitArgs separates the file argument from the arguments meant for the
// script, which follow "--".
func splitArgs(cmd *cobra.Command, args []string) ([]string, []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, []string{}
	}
	return args[:dash], args[dash:]
}

// getCode determines what code is to be compiled. There are three
// possibilities: --code, --stdin or a path as the first argument. The
// second result is the file name, when there is one.
func getCode(v *viper.Viper, stdin io.Reader, args []string) (string, string, error) {
	codeSet := v.GetString("code") != ""
	stdinSet := v.GetBool("stdin")
	pathSupplied := len(args) > 0
	if pathSupplied && (codeSet || stdinSet) {
		return "", "", errors.New("multiple input sources specified")
	} else if codeSet && stdinSet {
		return "", "", errors.New("multiple input sources specified")
	}
	switch {
	case stdinSet:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	case pathSupplied:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	case codeSet:
		return v.GetString("code"), "", nil
	}
	return "", "", errors.New("no input: pass a file, --code or --stdin")
}

var outputFormatsCompletion = []string{"json", "text"}

func getOutput(result any, format string, noColor bool) (string, error) {
	switch strings.ToLower(format) {
	case "":
		// With an unspecified format, try to do the most helpful thing: print
		// nothing for nil, JSON when the result marshals, and the string form
		// otherwise.
		if result == nil {
			return "", nil
		}
		output, err := getOutputJSON(result, noColor)
		if err != nil {
			return fmt.Sprintf("%v", result), nil
		}
		return string(output), nil
	case "json":
		output, err := getOutputJSON(result, noColor)
		if err != nil {
			return "", err
		}
		return string(output), nil
	case "text":
		return fmt.Sprintf("%v", result), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func getOutputJSON(result any, noColor bool) ([]byte, error) {
	if noColor || color.NoColor {
		return json.MarshalIndent(result, "", "  ")
	}
	return prettyjson.Marshal(result)
}
