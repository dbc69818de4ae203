package app

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ijt/xylem/internal/core"
)

// failureHints suggests follow-up commands for failed resources and keys,
// in name order.
func failureHints(failures map[string]error) []string {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	slices.Sort(names)

	var hints []string
	for _, name := range names {
		failure := failures[name]
		var resolution *core.ResolutionError
		switch {
		case errors.As(failure, &resolution):
			hints = append(hints, fmt.Sprintf(
				"hint: run `xylem where-defined %s` to see which sources define it", resolution.Key,
			))
		case core.IsInvalidData(failure):
			hints = append(hints, fmt.Sprintf(
				"hint: %s references malformed rule data; check the source it names", name,
			))
		case core.NotFound(failure):
			hints = append(hints, fmt.Sprintf(
				"hint: %s was not found; run `xylem keys` or check the sources manifest", name,
			))
		}
	}
	return hints
}

// emitHints writes hint messages to w.
func emitHints(w io.Writer, hints []string) {
	if w == nil {
		return
	}
	for _, h := range hints {
		fmt.Fprintln(w, h)
	}
}
