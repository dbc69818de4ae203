package core

import (
	"fmt"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ijt/xylem/internal/types"
)

// Database caches the raw rule data of every source loaded so far.  It only
// grows: a source is loaded at most once per process, including sources
// whose load failed.
type Database struct {
	entries map[string]types.SourceEntry
	loaded  map[string]struct{}
}

func NewDatabase() *Database {
	return &Database{
		entries: map[string]types.SourceEntry{},
		loaded:  map[string]struct{}{},
	}
}

func (d *Database) IsLoaded(name string) bool {
	_, ok := d.loaded[name]
	return ok
}

// MarkLoaded records name as attempted so a failing source is not retried.
func (d *Database) MarkLoaded(name string) {
	d.loaded[name] = struct{}{}
}

func (d *Database) SetViewData(name string, rules map[string]types.RuleNode, dependencies []string, origin string) {
	if rules == nil {
		rules = map[string]types.RuleNode{}
	}
	d.entries[name] = types.SourceEntry{
		Name:         name,
		Rules:        rules,
		Dependencies: append([]string(nil), dependencies...),
		Origin:       origin,
	}
	d.MarkLoaded(name)
}

func (d *Database) Put(entry types.SourceEntry) {
	d.SetViewData(entry.Name, entry.Rules, entry.Dependencies, entry.Origin)
}

func (d *Database) ViewData(name string) (types.SourceEntry, error) {
	entry, ok := d.entries[name]
	if !ok {
		return types.SourceEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("view not loaded: %s", name))
	}
	return entry, nil
}

func (d *Database) ViewDependencies(name string) ([]string, error) {
	entry, err := d.ViewData(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), entry.Dependencies...), nil
}

// ViewNames returns the names of successfully loaded sources, sorted.
func (d *Database) ViewNames() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
