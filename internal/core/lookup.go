package core

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

type resolveCacheEntry struct {
	osName     string
	osVersion  string
	viewName   string
	resolution types.KeyResolution
}

// Lookup resolves dependency keys of resources into ordered install steps.
// Loaded sources, views and per-key resolutions are cached for the life of
// the Lookup, so changes on disk are not observed once loaded.  Not safe
// for concurrent use.
type Lookup struct {
	db           *Database
	loader       ports.LoaderPort
	viewCache    map[string]*View
	resolveCache map[string]resolveCacheEntry
	// errors collects single-source failures from whole-environment scans
	// such as ViewsThatDefine.  It only grows.
	errors []error
}

func NewLookup(db *Database, loader ports.LoaderPort) *Lookup {
	if db == nil {
		db = NewDatabase()
	}
	return &Lookup{
		db:           db,
		loader:       loader,
		viewCache:    map[string]*View{},
		resolveCache: map[string]resolveCacheEntry{},
	}
}

func (l *Lookup) Database() *Database {
	return l.db
}

func (l *Lookup) Errors() []error {
	return append([]error(nil), l.errors...)
}

func (l *Lookup) KeysFor(ctx context.Context, resource string, implicit bool) ([]string, error) {
	return l.loader.Keys(ctx, resource, implicit)
}

// ResourcesThatNeed lists the resources that directly require key.
func (l *Lookup) ResourcesThatNeed(ctx context.Context, key string) ([]string, error) {
	resources, err := l.loader.LoadableResources(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, resource := range resources {
		keys, err := l.KeysFor(ctx, resource, false)
		if err != nil {
			l.errors = append(l.errors, err)
			continue
		}
		for _, candidate := range keys {
			if candidate == key {
				out = append(out, resource)
				break
			}
		}
	}
	return out, nil
}

// ResolveAll resolves every key of every resource and returns the install
// steps in dependency order.  Each key is expanded on its own: a key that
// fails leaves none of its dependency subtree in the plan, while the other
// keys of the same resource stay.  The first failure of a resource is
// reported in the returned map; a cycle or an internal error aborts the
// whole call.
func (l *Lookup) ResolveAll(ctx context.Context, resources []string, installers *InstallerContext, implicit bool) ([]types.InstallStep, map[string]error, error) {
	graph := NewDependencyGraph()
	failures := map[string]error{}

	for _, resource := range resources {
		keys, err := l.KeysFor(ctx, resource, implicit)
		if err != nil {
			if isBatchFatal(err) {
				return nil, failures, err
			}
			failures[resource] = err
			continue
		}
		log.Ctx(ctx).Debug().Str("resource", resource).Strs("keys", keys).Msg("resource requires keys")

		resolve := func(key string) (types.KeyResolution, error) {
			return l.Resolve(ctx, key, resource, installers)
		}
		for _, key := range keys {
			err := l.expand(ctx, graph, []string{key}, resolve)
			if err == nil {
				continue
			}
			if isBatchFatal(err) {
				return nil, failures, err
			}
			if _, ok := failures[resource]; !ok {
				failures[resource] = err
			}
		}
	}

	steps, err := graph.InstallSteps()
	if err != nil {
		return nil, failures, err
	}
	log.Ctx(ctx).Debug().Int("keys", graph.Len()).Int("steps", len(steps)).Msg("resolve all completed")
	return steps, failures, nil
}

// ResolveKeys resolves bare keys against one view.  Failures are reported
// per key.
func (l *Lookup) ResolveKeys(ctx context.Context, keys []string, viewKey string, installers *InstallerContext) ([]types.InstallStep, map[string]error, error) {
	view, err := l.View(ctx, viewKey)
	if err != nil {
		return nil, nil, err
	}
	osName, osVersion, err := installers.OSNameAndVersion(ctx)
	if err != nil {
		return nil, nil, err
	}

	graph := NewDependencyGraph()
	failures := map[string]error{}
	for _, key := range keys {
		err := l.expand(ctx, graph, []string{key}, func(k string) (types.KeyResolution, error) {
			return l.ResolveInView(ctx, k, view, osName, osVersion, installers)
		})
		if err != nil {
			if isBatchFatal(err) {
				return nil, failures, err
			}
			failures[key] = err
		}
	}

	steps, err := graph.InstallSteps()
	if err != nil {
		return nil, failures, err
	}
	return steps, failures, nil
}

// expand resolves roots and every key they transitively depend on into
// graph.  Keys already in graph are not expanded again.  If any key fails,
// the nodes this call added are removed before returning the error.
func (l *Lookup) expand(ctx context.Context, graph *DependencyGraph, roots []string, resolve func(string) (types.KeyResolution, error)) error {
	visited := map[string]struct{}{}
	var added []string
	queue := append([]string(nil), roots...)

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		if graph.Has(key) {
			continue
		}

		resolution, err := resolve(key)
		if err != nil {
			for _, k := range added {
				graph.Remove(k)
			}
			return err
		}
		graph.Set(key, GraphNode{
			InstallerKey: resolution.InstallerKey,
			Packages:     resolution.Packages,
			Dependencies: resolution.Dependencies,
		})
		added = append(added, key)
		queue = append(queue, resolution.Dependencies...)
	}
	return nil
}

// Resolve resolves key within the view of resource for the context's OS.
func (l *Lookup) Resolve(ctx context.Context, key string, resource string, installers *InstallerContext) (types.KeyResolution, error) {
	osName, osVersion, err := installers.OSNameAndVersion(ctx)
	if err != nil {
		return types.KeyResolution{}, err
	}
	view, ok, err := l.ViewForResource(ctx, resource)
	if err != nil {
		return types.KeyResolution{}, err
	}
	if !ok {
		return types.KeyResolution{}, newResolutionError(key, nil, osName, osVersion,
			"[%s] does not have a view", resource)
	}
	return l.ResolveInView(ctx, key, view, osName, osVersion, installers)
}

// ResolveInView resolves key against view.  Results are cached per key and
// reused only for the same OS name, OS version and view.
func (l *Lookup) ResolveInView(ctx context.Context, key string, view *View, osName string, osVersion string, installers *InstallerContext) (types.KeyResolution, error) {
	definition, ok := view.Lookup(key)
	if !ok {
		return types.KeyResolution{}, newResolutionError(key, nil, osName, osVersion,
			"Cannot locate definition for [%s]", key)
	}

	if cached, ok := l.resolveCache[key]; ok &&
		cached.osName == osName && cached.osVersion == osVersion && cached.viewName == view.Name {
		log.Ctx(ctx).Debug().Str("key", key).Msg("resolution cache hit")
		return copyResolution(cached.resolution), nil
	}

	installerKeys, err := installers.OSInstallerKeys(osName)
	if err != nil {
		return types.KeyResolution{}, newResolutionError(key, &definition.Data, osName, osVersion,
			"Unsupported OS [%s]", osName)
	}
	defaultKey, err := installers.DefaultOSInstallerKey(osName)
	if err != nil {
		return types.KeyResolution{}, newResolutionError(key, &definition.Data, osName, osVersion,
			"Unsupported OS [%s]", osName)
	}
	installerKey, rule, err := definition.RuleForPlatform(osName, osVersion, installerKeys, defaultKey)
	if err != nil {
		return types.KeyResolution{}, err
	}

	installer, err := installers.Installer(installerKey)
	if err != nil {
		return types.KeyResolution{}, newResolutionError(key, &definition.Data, osName, osVersion,
			"Unsupported installer [%s]", installerKey)
	}
	packages, err := installer.Resolve(ctx, rule)
	if err != nil {
		return types.KeyResolution{}, withOrigin(err, definition.Origin)
	}
	dependencies, err := installer.Depends(ctx, rule)
	if err != nil {
		return types.KeyResolution{}, withOrigin(err, definition.Origin)
	}

	resolution := types.KeyResolution{
		InstallerKey: installerKey,
		Packages:     packages,
		Dependencies: dependencies,
	}
	l.resolveCache[key] = resolveCacheEntry{
		osName:     osName,
		osVersion:  osVersion,
		viewName:   view.Name,
		resolution: copyResolution(resolution),
	}
	return resolution, nil
}

func (l *Lookup) ViewForResource(ctx context.Context, resource string) (*View, bool, error) {
	viewKey, ok, err := l.loader.ViewKey(ctx, resource)
	if err != nil {
		return nil, false, err
	}
	if !ok || viewKey == "" {
		return nil, false, nil
	}
	view, err := l.View(ctx, viewKey)
	if err != nil {
		return nil, false, err
	}
	return view, true, nil
}

// View returns the view for viewKey, loading its source and the sources it
// depends on the first time.  Dependencies are merged depth-first in
// declared order, the first to declare a key winning; the view's own
// source is merged last and overrides them all.
func (l *Lookup) View(ctx context.Context, viewKey string) (*View, error) {
	if view, ok := l.viewCache[viewKey]; ok {
		return view, nil
	}
	if err := l.loadViewDependencies(ctx, viewKey); err != nil {
		return nil, err
	}
	if _, err := l.db.ViewDependencies(viewKey); err != nil {
		return nil, err
	}

	order, err := l.mergeOrder(viewKey)
	if err != nil {
		return nil, err
	}
	view := NewView(viewKey)
	for _, name := range order {
		entry, err := l.db.ViewData(name)
		if err != nil {
			return nil, &InternalError{Cause: err}
		}
		view.Merge(ctx, entry, false)
	}
	own, err := l.db.ViewData(viewKey)
	if err != nil {
		return nil, &InternalError{Cause: err}
	}
	view.Merge(ctx, own, true)

	log.Ctx(ctx).Debug().Str("view", viewKey).Strs("merged", order).Int("keys", len(view.defs)).Msg("view created")
	l.viewCache[viewKey] = view
	return view, nil
}

// mergeOrder lists the transitive dependency sources of viewKey in
// depth-first pre-order, each once, excluding viewKey itself.
func (l *Lookup) mergeOrder(viewKey string) ([]string, error) {
	seen := map[string]struct{}{viewKey: {}}
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		deps, err := l.db.ViewDependencies(name)
		if err != nil {
			if l.db.IsLoaded(name) {
				return newInvalidData(name, "source [%s] failed to load earlier", name)
			}
			return &InternalError{Cause: err}
		}
		for _, dep := range deps {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			if _, err := l.db.ViewData(dep); err != nil {
				if l.db.IsLoaded(dep) {
					return newInvalidData(dep, "source [%s] failed to load earlier", dep)
				}
				return &InternalError{Cause: err}
			}
			order = append(order, dep)
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(viewKey); err != nil {
		return nil, err
	}
	return order, nil
}

// loadViewDependencies loads viewKey and every source it depends on into
// the database, each at most once.  A source with invalid data is marked
// loaded so it is never retried.
func (l *Lookup) loadViewDependencies(ctx context.Context, viewKey string) error {
	if l.db.IsLoaded(viewKey) {
		return nil
	}
	entry, err := l.loader.LoadView(ctx, viewKey)
	if err != nil {
		if IsInvalidData(err) {
			l.db.MarkLoaded(viewKey)
		}
		return err
	}
	entry.Name = viewKey
	l.db.Put(entry)
	log.Ctx(ctx).Debug().Str("view", viewKey).Strs("dependencies", entry.Dependencies).Msg("source loaded")
	for _, dep := range entry.Dependencies {
		if err := l.loadViewDependencies(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

// LoadAllViews loads every loadable view.  Failures of single views are
// kept in Errors rather than returned.
func (l *Lookup) LoadAllViews(ctx context.Context) error {
	views, err := l.loader.LoadableViews(ctx)
	if err != nil {
		return err
	}
	for _, view := range views {
		if err := l.loadViewDependencies(ctx, view); err != nil {
			if isBatchFatal(err) {
				return err
			}
			l.errors = append(l.errors, err)
		}
	}
	return nil
}

// CreateUnderlay loads every loadable view and registers the underlay view
// over the ones that loaded, in loader order.
func (l *Lookup) CreateUnderlay(ctx context.Context) error {
	if err := l.LoadAllViews(ctx); err != nil {
		return err
	}
	views, err := l.loader.LoadableViews(ctx)
	if err != nil {
		return err
	}
	var loaded []string
	for _, view := range views {
		if _, err := l.db.ViewData(view); err == nil {
			loaded = append(loaded, view)
		}
	}
	l.db.SetViewData(types.UnderlayView, nil, loaded, types.UnderlayView)
	delete(l.viewCache, types.UnderlayView)
	for key, entry := range l.resolveCache {
		if entry.viewName == types.UnderlayView {
			delete(l.resolveCache, key)
		}
	}
	return nil
}

// ViewsThatDefine loads every available source and lists those that
// directly define key.  Load failures are collected in Errors.
func (l *Lookup) ViewsThatDefine(ctx context.Context, key string) ([]types.DefinitionSite, error) {
	if err := l.LoadAllViews(ctx); err != nil {
		return nil, err
	}
	var sites []types.DefinitionSite
	for _, name := range l.db.ViewNames() {
		entry, err := l.db.ViewData(name)
		if err != nil {
			return nil, &InternalError{Cause: err}
		}
		if _, ok := entry.Rules[key]; ok {
			sites = append(sites, types.DefinitionSite{View: name, Origin: entry.Origin})
		}
	}
	return sites, nil
}

func isBatchFatal(err error) bool {
	return IsInternal(err) || IsCycle(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func withOrigin(err error, origin string) error {
	var invalid *InvalidDataError
	if errors.As(err, &invalid) && invalid.Origin == "" {
		return &InvalidDataError{Message: invalid.Message, Origin: origin}
	}
	return err
}

func copyResolution(in types.KeyResolution) types.KeyResolution {
	return types.KeyResolution{
		InstallerKey: in.InstallerKey,
		Packages:     append([]string(nil), in.Packages...),
		Dependencies: append([]string(nil), in.Dependencies...),
	}
}

// NotFound reports whether err carries errbuilder's not-found code.
func NotFound(err error) bool {
	return errbuilder.CodeOf(err) == errbuilder.CodeNotFound
}
