package app

import "github.com/ijt/xylem/internal/types"

// Target selects the rule sources, platform configuration and OS a use
// case runs against.
type Target struct {
	SourcesPath   string
	PlatformsPath string
	// OS overrides detection, formatted NAME:VERSION.
	OS string
}

type ResolveRequest struct {
	Target
	Resources []string
	Keys      []string
	// View is the view bare keys are resolved in.  Empty selects the
	// underlay.
	View     string
	All      bool
	Implicit bool
	PlanOut  string
}

type ResolveResult struct {
	Plan     types.InstallPlan
	Failures map[string]error
}

type InstallRequest struct {
	ResolveRequest
	// PlanIn replays a previously written plan instead of resolving.
	PlanIn          string
	DryRun          bool
	Reinstall       bool
	Interactive     bool
	ContinueOnError bool
}

type InstallResult struct {
	Plan     types.InstallPlan
	Commands [][]string
	Failures map[string]error
}

type RemoveRequest struct {
	ResolveRequest
	PlanIn      string
	DryRun      bool
	Interactive bool
}

type RemoveResult struct {
	Commands [][]string
	Failures map[string]error
}

type CheckRequest struct {
	ResolveRequest
}

type CheckResult struct {
	Missing  []types.InstallStep
	Failures map[string]error
}

type WhereDefinedRequest struct {
	SourcesPath string
	Key         string
}

type WhereDefinedResult struct {
	Sites  []types.DefinitionSite
	Errors []error
}

type KeysRequest struct {
	SourcesPath string
	Resources   []string
	Implicit    bool
}

type KeysResult struct {
	Keys []string
}

type WhatNeedsRequest struct {
	SourcesPath string
	Key         string
}

type WhatNeedsResult struct {
	Resources []string
	Errors    []error
}

type PlatformsRequest struct {
	PlatformsPath string
}

type PlatformSummary struct {
	OS          string
	Default     string
	Installers  []string
	VersionType types.VersionType
}

type PlatformsResult struct {
	Platforms []PlatformSummary
}
