package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/types"
)

// ResolutionError reports that a key has no usable rule for the current
// OS and version.  It is attributable to one key and never fatal to a
// batch.
type ResolutionError struct {
	Key       string
	Data      *types.RuleNode
	OSName    string
	OSVersion string
	Message   string
}

func newResolutionError(key string, data *types.RuleNode, osName string, osVersion string, format string, args ...any) *ResolutionError {
	return &ResolutionError{
		Key:       key,
		Data:      data,
		OSName:    osName,
		OSVersion: osVersion,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *ResolutionError) Error() string {
	pretty := "<no data>"
	if e.Data != nil {
		if out, err := yaml.Marshal(e.Data.Interface()); err == nil {
			pretty = strings.TrimRight(string(out), "\n")
		}
	}
	return fmt.Sprintf("%s\n\tkey        : %s\n\tOS name    : %s\n\tOS version : %s\n\tData: %s",
		e.Message, e.Key, e.OSName, e.OSVersion, pretty)
}

// InvalidDataError reports a structurally wrong rule document.
type InvalidDataError struct {
	Message string
	Origin  string
}

func newInvalidData(origin string, format string, args ...any) *InvalidDataError {
	return &InvalidDataError{Message: fmt.Sprintf(format, args...), Origin: origin}
}

func (e *InvalidDataError) Error() string {
	if e.Origin == "" {
		return "invalid data: " + e.Message
	}
	return fmt.Sprintf("invalid data in %s: %s", e.Origin, e.Message)
}

// CycleError reports that the dependency graph cannot be ordered.  Keys
// holds every key left unordered, sorted.
type CycleError struct {
	Keys []string
}

func (e *CycleError) Error() string {
	return "invalid dependency graph: cycle detected involving " + strings.Join(e.Keys, ", ")
}

// InternalError wraps failures that valid invariants should make
// impossible.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Cause.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInvalidData(origin string, message string) error {
	return newInvalidData(origin, "%s", message)
}

func IsResolutionError(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}

// IsInvalidData also accepts errbuilder errors coded CodeInvalidArgument,
// which is how adapters report unparseable documents.
func IsInvalidData(err error) bool {
	var target *InvalidDataError
	if errors.As(err, &target) {
		return true
	}
	return err != nil && errbuilder.CodeOf(err) == errbuilder.CodeInvalidArgument
}

func IsCycle(err error) bool {
	var target *CycleError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target *InternalError
	return errors.As(err, &target)
}
