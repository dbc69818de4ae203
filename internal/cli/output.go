package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/types"
)

func printPlan(w io.Writer, plan types.InstallPlan) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(plan); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode plan").
			WithCause(err)
	}
	return encoder.Close()
}

// reportFailures prints failures in name order and returns an
// *unresolvedError if there were any.
func reportFailures(w io.Writer, failures map[string]error) error {
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "ERROR[%s]: %s\n", name, failures[name])
	}
	return &unresolvedError{count: len(failures)}
}

func printCommands(w io.Writer, commands [][]string) {
	for _, argv := range commands {
		quoted := make([]string, len(argv))
		for idx, arg := range argv {
			quoted[idx] = quoteArg(arg)
		}
		fmt.Fprintln(w, strings.Join(quoted, " "))
	}
}

func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>()*?`") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
