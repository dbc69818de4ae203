package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

// PlanFileAdapter stores install plans as YAML files.
type PlanFileAdapter struct{}

func NewPlanFileAdapter() PlanFileAdapter {
	return PlanFileAdapter{}
}

func (a PlanFileAdapter) WritePlan(path string, plan types.InstallPlan) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("plan path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create plan directory").
				WithCause(err)
		}
	}
	data, err := yaml.Marshal(plan)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode plan").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write plan").
			WithCause(err)
	}
	return nil
}

func (a PlanFileAdapter) ReadPlan(path string) (types.InstallPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.InstallPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("plan file not found: %s", path)).
			WithCause(err)
	}
	var plan types.InstallPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return types.InstallPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse plan yaml").
			WithCause(err)
	}
	for idx, step := range plan.Steps {
		if strings.TrimSpace(step.InstallerKey) == "" {
			return types.InstallPlan{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("plan step %d has no installer", idx+1))
		}
	}
	return plan, nil
}

var (
	_ ports.PlanWriterPort = PlanFileAdapter{}
	_ ports.PlanReaderPort = PlanFileAdapter{}
)
