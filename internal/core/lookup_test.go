package core

import (
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ijt/xylem/internal/types"
)

const baseRules = `
cmake:
  ubuntu: cmake
  debian: cmake
boost:
  ubuntu:
    apt: libboost-all-dev
python:
  ubuntu: {'22.04': python3, '20.04': python3.8}
numpy:
  ubuntu:
    pip:
      packages: [numpy]
      depends: [python]
`

func TestLookupResolve(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules).
		addResource("app", "base", "cmake", "python")
	installer := &countingInstaller{}
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, installer)

	resolution, err := lookup.Resolve(t.Context(), "python", "app", ic)
	require.NoError(t, err)
	assert.Equal(t, "apt", resolution.InstallerKey)
	assert.Equal(t, []string{"python3"}, resolution.Packages)

	resolution, err = lookup.Resolve(t.Context(), "numpy", "app", ic)
	require.NoError(t, err)
	assert.Equal(t, "pip", resolution.InstallerKey)
	assert.Equal(t, []string{"numpy"}, resolution.Packages)
	assert.Equal(t, []string{"python"}, resolution.Dependencies)
}

func TestLookupResolveCaches(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules).
		addResource("app", "base", "cmake")
	installer := &countingInstaller{}
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, installer)

	first, err := lookup.Resolve(t.Context(), "cmake", "app", ic)
	require.NoError(t, err)
	second, err := lookup.Resolve(t.Context(), "cmake", "app", ic)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, installer.resolves)
	assert.Equal(t, 1, loader.loads["base"])

	ic.SetOSOverride("debian", "12")
	resolution, err := lookup.Resolve(t.Context(), "cmake", "app", ic)
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake"}, resolution.Packages)
	assert.Equal(t, 2, installer.resolves)
}

func TestLookupResolveErrors(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules).
		addResource("app", "base").
		addResource("orphan", "")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	_, err := lookup.Resolve(t.Context(), "unknown", "app", ic)
	assert.True(t, IsResolutionError(err))
	assert.Contains(t, err.Error(), "Cannot locate definition for [unknown]")

	_, err = lookup.Resolve(t.Context(), "cmake", "orphan", ic)
	assert.True(t, IsResolutionError(err))

	_, err = lookup.Resolve(t.Context(), "cmake", "missing", ic)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	ic.SetOSOverride("plan9", "4")
	_, err = lookup.Resolve(t.Context(), "cmake", "app", ic)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "Unsupported OS [plan9]", resErr.Message)

	ic.SetOSOverride("ubuntu", "18.04")
	_, err = lookup.Resolve(t.Context(), "python", "app", ic)
	require.True(t, errors.As(err, &resErr))
	assert.Contains(t, resErr.Message, "OS version [18.04]")
}

func TestLookupUnsupportedInstaller(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", "tool:\n  ubuntu:\n    gem: rake\n").
		addResource("app", "base", "tool")
	ic := NewInstallerContext(stubOSDetector{name: "ubuntu", version: "22.04"})
	ic.SetInstaller("gem", &countingInstaller{})
	require.NoError(t, ic.AddOSInstallerKey("ubuntu", "gem"))
	ic.SetInstaller("gem", nil)

	_, err := NewLookup(nil, loader).Resolve(t.Context(), "tool", "app", ic)
	require.True(t, IsResolutionError(err))
	assert.Contains(t, err.Error(), "Unsupported installer [gem]")
}

func TestLookupViewPrecedence(t *testing.T) {
	loader := newStubLoader(t).
		addSource("core", "cmake: {ubuntu: from-core}\nninja: {ubuntu: from-core}\nmake: {ubuntu: from-core}\n").
		addSource("extra", "cmake: {ubuntu: from-extra}\nninja: {ubuntu: from-extra}\n").
		addSource("base", "cmake: {ubuntu: from-base}\n", "core").
		addSource("robot", "boost: {ubuntu: from-robot}\n", "extra", "base")
	lookup := NewLookup(nil, loader)

	view, err := lookup.View(t.Context(), "robot")
	require.NoError(t, err)
	assert.Equal(t, []string{"boost", "cmake", "make", "ninja"}, view.Keys())

	origins := map[string]string{}
	for _, key := range view.Keys() {
		def, ok := view.Lookup(key)
		require.True(t, ok)
		origins[key] = def.Origin
	}
	want := map[string]string{
		"boost": "robot.yaml",
		"cmake": "extra.yaml",
		"ninja": "extra.yaml",
		"make":  "core.yaml",
	}
	if diff := cmp.Diff(want, origins); diff != "" {
		t.Fatalf("unexpected origins (-want +got):\n%s", diff)
	}

	again, err := lookup.View(t.Context(), "robot")
	require.NoError(t, err)
	assert.Same(t, view, again)
	assert.Equal(t, 1, loader.loads["core"])
}

func TestLookupViewOwnRulesOverrideDependencies(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", "cmake: {ubuntu: from-base}\n").
		addSource("robot", "cmake: {ubuntu: from-robot}\n", "base")

	view, err := NewLookup(nil, loader).View(t.Context(), "robot")
	require.NoError(t, err)
	def, ok := view.Lookup("cmake")
	require.True(t, ok)
	assert.Equal(t, "robot.yaml", def.Origin)
}

func TestLookupViewSourceCycle(t *testing.T) {
	loader := newStubLoader(t).
		addSource("a", "x: {ubuntu: a}\n", "b").
		addSource("b", "y: {ubuntu: b}\n", "a")

	view, err := NewLookup(nil, loader).View(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, view.Keys())
}

func TestLookupInvalidSourceIsNotRetried(t *testing.T) {
	loader := newStubLoader(t).
		addInvalidSource("broken").
		addSource("robot", "cmake: {ubuntu: cmake}\n", "broken")
	lookup := NewLookup(nil, loader)

	_, err := lookup.View(t.Context(), "robot")
	require.True(t, IsInvalidData(err))

	_, err = lookup.View(t.Context(), "robot")
	require.True(t, IsInvalidData(err))
	assert.Equal(t, 1, loader.loads["broken"])
	assert.True(t, lookup.Database().IsLoaded("broken"))
}

func TestLookupResolveAll(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules).
		addResource("app", "base", "numpy", "cmake").
		addResource("lib", "base", "boost", "cmake")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	steps, failures, err := lookup.ResolveAll(t.Context(), []string{"app", "lib"}, ic, false)
	require.NoError(t, err)
	assert.Empty(t, failures)
	want := []types.InstallStep{
		{InstallerKey: "apt", Packages: []string{"libboost-all-dev", "cmake", "python3"}},
		{InstallerKey: "pip", Packages: []string{"numpy"}},
	}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
}

func TestLookupResolveAllIsolatesFailures(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules+"broken:\n  ubuntu:\n    apt:\n      packages: [broken]\n      depends: [nowhere]\n").
		addResource("good", "base", "cmake").
		addResource("bad", "base", "boost", "broken")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	steps, failures, err := lookup.ResolveAll(t.Context(), []string{"good", "bad", "ghost"}, ic, false)
	require.NoError(t, err)
	want := []types.InstallStep{{InstallerKey: "apt", Packages: []string{"libboost-all-dev", "cmake"}}}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
	require.Len(t, failures, 2)
	assert.True(t, IsResolutionError(failures["bad"]))
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(failures["ghost"]))
}

func TestLookupResolveAllKeepsSiblingKeys(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", baseRules+"broken:\n  ubuntu:\n    apt:\n      packages: [broken]\n      depends: [nowhere]\n").
		addResource("app", "base", "cmake", "undefined_key", "broken", "numpy")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	steps, failures, err := lookup.ResolveAll(t.Context(), []string{"app"}, ic, false)
	require.NoError(t, err)
	want := []types.InstallStep{
		{InstallerKey: "apt", Packages: []string{"cmake", "python3"}},
		{InstallerKey: "pip", Packages: []string{"numpy"}},
	}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
	require.Len(t, failures, 1)
	var resolution *ResolutionError
	require.True(t, errors.As(failures["app"], &resolution))
	assert.Equal(t, "undefined_key", resolution.Key)
}

func TestLookupResolveAllCycle(t *testing.T) {
	loader := newStubLoader(t).
		addSource("base", `
a:
  ubuntu:
    apt: {packages: [a], depends: [b]}
b:
  ubuntu:
    apt: {packages: [b], depends: [a]}
`).
		addResource("app", "base", "a")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	_, _, err := lookup.ResolveAll(t.Context(), []string{"app"}, ic, false)
	require.Error(t, err)
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b"}, cycle.Keys)
}

func TestLookupResolveKeys(t *testing.T) {
	loader := newStubLoader(t).addSource("base", baseRules)
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	steps, failures, err := lookup.ResolveKeys(t.Context(), []string{"numpy", "nothing"}, "base", ic)
	require.NoError(t, err)
	require.Contains(t, failures, "nothing")
	want := []types.InstallStep{
		{InstallerKey: "apt", Packages: []string{"python3"}},
		{InstallerKey: "pip", Packages: []string{"numpy"}},
	}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
}

func TestLookupUnderlay(t *testing.T) {
	loader := newStubLoader(t).
		addSource("first", "cmake: {ubuntu: first}\n").
		addInvalidSource("broken").
		addSource("second", "cmake: {ubuntu: second}\nninja: {ubuntu: ninja-build}\n")
	lookup := NewLookup(nil, loader)

	require.NoError(t, lookup.CreateUnderlay(t.Context()))
	require.Len(t, lookup.Errors(), 1)
	assert.True(t, IsInvalidData(lookup.Errors()[0]))

	view, err := lookup.View(t.Context(), types.UnderlayView)
	require.NoError(t, err)
	def, ok := view.Lookup("cmake")
	require.True(t, ok)
	assert.Equal(t, "first.yaml", def.Origin)
	_, ok = view.Lookup("ninja")
	assert.True(t, ok)
}

func TestLookupUnderlayRebuildDropsCachedResolutions(t *testing.T) {
	loader := newStubLoader(t).addSource("first", "cmake: {ubuntu: first}\n")
	lookup := NewLookup(nil, loader)
	ic := newTestContext(t, &countingInstaller{})

	require.NoError(t, lookup.CreateUnderlay(t.Context()))
	steps, _, err := lookup.ResolveKeys(t.Context(), []string{"cmake"}, types.UnderlayView, ic)
	require.NoError(t, err)
	assert.Equal(t, []types.InstallStep{{InstallerKey: "apt", Packages: []string{"first"}}}, steps)

	loader.addSource("second", "cmake: {ubuntu: second}\n")
	loader.order = []string{"second", "first"}
	require.NoError(t, lookup.CreateUnderlay(t.Context()))
	steps, _, err = lookup.ResolveKeys(t.Context(), []string{"cmake"}, types.UnderlayView, ic)
	require.NoError(t, err)
	assert.Equal(t, []types.InstallStep{{InstallerKey: "apt", Packages: []string{"second"}}}, steps)
}

func TestLookupViewsThatDefine(t *testing.T) {
	loader := newStubLoader(t).
		addSource("first", "cmake: {ubuntu: first}\n").
		addInvalidSource("broken").
		addSource("second", "cmake: {ubuntu: second}\nninja: {ubuntu: ninja-build}\n")
	lookup := NewLookup(nil, loader)

	sites, err := lookup.ViewsThatDefine(t.Context(), "cmake")
	require.NoError(t, err)
	want := []types.DefinitionSite{
		{View: "first", Origin: "first.yaml"},
		{View: "second", Origin: "second.yaml"},
	}
	if diff := cmp.Diff(want, sites); diff != "" {
		t.Fatalf("unexpected sites (-want +got):\n%s", diff)
	}
	assert.Len(t, lookup.Errors(), 1)
}

func TestLookupResourcesThatNeed(t *testing.T) {
	loader := newStubLoader(t).
		addResource("app", "", "cmake", "boost").
		addResource("lib", "", "boost").
		addResource("tool", "", "ninja")
	lookup := NewLookup(nil, loader)

	needs, err := lookup.ResourcesThatNeed(t.Context(), "boost")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "lib"}, needs)
}
