package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

// SourcesFileAdapter serves resources and rule sources declared in a
// sources manifest.  Source paths are relative to the manifest.
type SourcesFileAdapter struct {
	Path     string
	manifest types.SourcesManifest
	sources  map[string]types.SourceRef
}

func LoadSourcesFile(path string) (*SourcesFileAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("sources file not found: %s", path)).
			WithCause(err)
	}
	var manifest types.SourcesManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse sources yaml").
			WithCause(err)
	}
	return NewSourcesFileAdapter(path, manifest)
}

func NewSourcesFileAdapter(path string, manifest types.SourcesManifest) (*SourcesFileAdapter, error) {
	sources := map[string]types.SourceRef{}
	for _, source := range manifest.Sources {
		name := strings.TrimSpace(source.Name)
		if name == "" || name == types.UnderlayView {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid source name %q", source.Name))
		}
		if strings.TrimSpace(source.Path) == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("source %s has no path", name))
		}
		if _, dup := sources[name]; dup {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("source %s declared twice", name))
		}
		sources[name] = source
	}
	if manifest.Resources == nil {
		manifest.Resources = map[string]types.ResourceSpec{}
	}
	return &SourcesFileAdapter{Path: path, manifest: manifest, sources: sources}, nil
}

func (a *SourcesFileAdapter) resource(name string) (types.ResourceSpec, error) {
	resource, ok := a.manifest.Resources[name]
	if !ok {
		return types.ResourceSpec{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown resource: %s", name))
	}
	return resource, nil
}

// Keys returns the keys of resource in declared order.  With implicit the
// keys of every resource it transitively depends on follow, each key once.
func (a *SourcesFileAdapter) Keys(ctx context.Context, resource string, implicit bool) ([]string, error) {
	root, err := a.resource(resource)
	if err != nil {
		return nil, err
	}
	if !implicit {
		return uniqueInOrder(root.Keys), nil
	}

	var keys []string
	visited := map[string]struct{}{}
	var visit func(name string) error
	visit = func(name string) error {
		if _, ok := visited[name]; ok {
			return nil
		}
		visited[name] = struct{}{}
		spec, err := a.resource(name)
		if err != nil {
			return err
		}
		keys = append(keys, spec.Keys...)
		for _, dep := range spec.Depends {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(resource); err != nil {
		return nil, err
	}
	return uniqueInOrder(keys), nil
}

func (a *SourcesFileAdapter) LoadableResources(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(a.manifest.Resources))
	for name := range a.manifest.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *SourcesFileAdapter) LoadableViews(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(a.manifest.Sources))
	for _, source := range a.manifest.Sources {
		names = append(names, strings.TrimSpace(source.Name))
	}
	return names, nil
}

// ViewKey returns the resource's declared view or the underlay view.
func (a *SourcesFileAdapter) ViewKey(ctx context.Context, resource string) (string, bool, error) {
	spec, err := a.resource(resource)
	if err != nil {
		return "", false, err
	}
	if view := strings.TrimSpace(spec.View); view != "" {
		return view, true, nil
	}
	return types.UnderlayView, true, nil
}

// LoadView reads one rule source.  The underlay view is synthesized with no
// rules of its own and every declared source as dependency.
func (a *SourcesFileAdapter) LoadView(ctx context.Context, viewKey string) (types.SourceEntry, error) {
	if viewKey == types.UnderlayView {
		views, _ := a.LoadableViews(ctx)
		return types.SourceEntry{
			Name:         viewKey,
			Rules:        map[string]types.RuleNode{},
			Dependencies: views,
			Origin:       types.UnderlayView,
		}, nil
	}
	source, ok := a.sources[viewKey]
	if !ok {
		return types.SourceEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown source: %s", viewKey))
	}
	path := source.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(a.Path), path)
	}
	rules, err := ReadRulesFile(path)
	if err != nil {
		return types.SourceEntry{}, err
	}
	log.Debug().Str("source", viewKey).Str("path", path).Int("keys", len(rules)).Msg("rule source read")
	return types.SourceEntry{
		Name:         viewKey,
		Rules:        rules,
		Dependencies: append([]string(nil), source.Depends...),
		Origin:       path,
	}, nil
}

// ReadRulesFile parses a rules document.  An empty document has no rules;
// anything but a mapping at the top level is invalid.
func ReadRulesFile(path string) (map[string]types.RuleNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("rules file not found: %s", path)).
			WithCause(err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid data in %s: failed to parse rules yaml", path)).
			WithCause(err)
	}
	if len(doc.Content) == 0 {
		return map[string]types.RuleNode{}, nil
	}
	var root types.RuleNode
	if err := doc.Decode(&root); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid data in %s", path)).
			WithCause(err)
	}
	if !root.IsMapping() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid data in %s: top level must be a mapping, got %s", path, root.Kind))
	}
	return root.Mapping, nil
}

func uniqueInOrder(values []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

var _ ports.LoaderPort = (*SourcesFileAdapter)(nil)
