package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/types"
)

func parseRules(t *testing.T, doc string) map[string]types.RuleNode {
	t.Helper()
	var rules map[string]types.RuleNode
	require.NoError(t, yaml.Unmarshal([]byte(doc), &rules))
	return rules
}

func parseRule(t *testing.T, doc string) types.RuleNode {
	t.Helper()
	var rule types.RuleNode
	require.NoError(t, yaml.Unmarshal([]byte(doc), &rule))
	return rule
}

type stubSource struct {
	doc     string
	depends []string
	invalid bool
}

type stubResource struct {
	view string
	keys []string
}

// stubLoader serves sources and resources from memory and counts how often
// each source is read.
type stubLoader struct {
	t         *testing.T
	sources   map[string]stubSource
	order     []string
	resources map[string]stubResource
	loads     map[string]int
}

func newStubLoader(t *testing.T) *stubLoader {
	return &stubLoader{
		t:         t,
		sources:   map[string]stubSource{},
		resources: map[string]stubResource{},
		loads:     map[string]int{},
	}
}

func (l *stubLoader) addSource(name string, doc string, depends ...string) *stubLoader {
	l.sources[name] = stubSource{doc: doc, depends: depends}
	l.order = append(l.order, name)
	return l
}

func (l *stubLoader) addInvalidSource(name string) *stubLoader {
	l.sources[name] = stubSource{invalid: true}
	l.order = append(l.order, name)
	return l
}

func (l *stubLoader) addResource(name string, view string, keys ...string) *stubLoader {
	l.resources[name] = stubResource{view: view, keys: keys}
	return l
}

func (l *stubLoader) Keys(ctx context.Context, resource string, implicit bool) ([]string, error) {
	res, ok := l.resources[resource]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown resource: %s", resource))
	}
	return append([]string(nil), res.keys...), nil
}

func (l *stubLoader) LoadableResources(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(l.resources))
	for name := range l.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (l *stubLoader) LoadableViews(ctx context.Context) ([]string, error) {
	return append([]string(nil), l.order...), nil
}

func (l *stubLoader) ViewKey(ctx context.Context, resource string) (string, bool, error) {
	res, ok := l.resources[resource]
	if !ok {
		return "", false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown resource: %s", resource))
	}
	if res.view == "" {
		return "", false, nil
	}
	return res.view, true, nil
}

func (l *stubLoader) LoadView(ctx context.Context, viewKey string) (types.SourceEntry, error) {
	l.loads[viewKey]++
	source, ok := l.sources[viewKey]
	if !ok {
		return types.SourceEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown source: %s", viewKey))
	}
	if source.invalid {
		return types.SourceEntry{}, NewInvalidData(viewKey, "not a mapping")
	}
	return types.SourceEntry{
		Name:         viewKey,
		Rules:        parseRules(l.t, source.doc),
		Dependencies: source.depends,
		Origin:       viewKey + ".yaml",
	}, nil
}

type stubOSDetector struct {
	name     string
	version  string
	codename string
}

func (d stubOSDetector) Name(ctx context.Context) (string, error)     { return d.name, nil }
func (d stubOSDetector) Version(ctx context.Context) (string, error)  { return d.version, nil }
func (d stubOSDetector) Codename(ctx context.Context) (string, error) { return d.codename, nil }

// countingInstaller resolves string and list rules to their names and
// mapping rules to their "packages" field, counting Resolve calls.
type countingInstaller struct {
	resolves  int
	installed map[string]bool
}

func (i *countingInstaller) Resolve(ctx context.Context, rule types.RuleNode) ([]string, error) {
	i.resolves++
	switch rule.Kind {
	case types.RuleKindString:
		return strings.Fields(rule.Text), nil
	case types.RuleKindSequence:
		var out []string
		for _, item := range rule.Sequence {
			out = append(out, item.Text)
		}
		return out, nil
	case types.RuleKindMapping:
		packages, ok := rule.Get("packages")
		if !ok {
			return []string{}, nil
		}
		return i.Resolve(ctx, packages)
	default:
		return nil, NewInvalidData("", "bad rule")
	}
}

func (i *countingInstaller) Depends(ctx context.Context, rule types.RuleNode) ([]string, error) {
	depends, ok := rule.Get("depends")
	if !ok {
		return []string{}, nil
	}
	var out []string
	for _, item := range depends.Sequence {
		out = append(out, item.Text)
	}
	return out, nil
}

func (i *countingInstaller) Unique(resolutions ...[]string) []string {
	seen := map[string]struct{}{}
	for _, r := range resolutions {
		for _, item := range r {
			seen[item] = struct{}{}
		}
	}
	return sortedMapKeys(seen)
}

func (i *countingInstaller) IsInstalled(ctx context.Context, item string) (bool, error) {
	return i.installed[item], nil
}

func (i *countingInstaller) PackagesToInstall(ctx context.Context, resolved []string, reinstall bool) ([]string, error) {
	var out []string
	for _, item := range resolved {
		if reinstall || !i.installed[item] {
			out = append(out, item)
		}
	}
	return out, nil
}

func (i *countingInstaller) InstallCommands(ctx context.Context, resolved []string, interactive bool, reinstall bool) ([][]string, error) {
	return nil, nil
}

func (i *countingInstaller) RemoveCommands(ctx context.Context, resolved []string, interactive bool) ([][]string, error) {
	return nil, nil
}

// newTestContext registers ubuntu with apt (default) and pip, and debian
// with apt only, all backed by the same counting installer.
func newTestContext(t *testing.T, installer *countingInstaller) *InstallerContext {
	t.Helper()
	ic := NewInstallerContext(stubOSDetector{name: "ubuntu", version: "22.04", codename: "jammy"})
	ic.SetInstaller("apt", installer)
	ic.SetInstaller("pip", installer)
	require.NoError(t, ic.AddOSInstallerKey("ubuntu", "apt"))
	require.NoError(t, ic.AddOSInstallerKey("ubuntu", "pip"))
	require.NoError(t, ic.SetDefaultOSInstallerKey("ubuntu", "apt"))
	require.NoError(t, ic.AddOSInstallerKey("debian", "apt"))
	require.NoError(t, ic.SetDefaultOSInstallerKey("debian", "apt"))
	return ic
}

type stubPackageDetector struct {
	installed map[string]string
	calls     int
}

func (d *stubPackageDetector) Installed(ctx context.Context, names []string) (map[string]string, error) {
	d.calls++
	out := map[string]string{}
	for _, name := range names {
		if version, ok := d.installed[name]; ok {
			out[name] = version
		}
	}
	return out, nil
}

type stubFetcher struct {
	manifests map[string]types.BuildManifest
	fetches   int
	lastSum   string
}

func (f *stubFetcher) Fetch(ctx context.Context, uri string, md5sum string) (types.BuildManifest, error) {
	f.fetches++
	f.lastSum = md5sum
	manifest, ok := f.manifests[uri]
	if !ok {
		return types.BuildManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest not found: %s", uri))
	}
	return manifest, nil
}

type stubRunner struct {
	failing map[string]bool
	outputs [][]string
}

func (r *stubRunner) Run(ctx context.Context, argv []string) error {
	return r.record(argv)
}

func (r *stubRunner) Output(ctx context.Context, argv []string) ([]byte, error) {
	return nil, r.record(argv)
}

func (r *stubRunner) record(argv []string) error {
	r.outputs = append(r.outputs, argv)
	if r.failing[strings.Join(argv, " ")] {
		return fmt.Errorf("exit status 1")
	}
	return nil
}
