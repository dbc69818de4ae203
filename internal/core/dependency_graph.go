package core

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ijt/xylem/internal/types"
)

// GraphNode holds what one key resolved to and the keys it depends on.
type GraphNode struct {
	InstallerKey string
	Packages     []string
	Dependencies []string
}

// DependencyGraph orders resolved keys so that every key comes after the
// keys it depends on.
type DependencyGraph struct {
	nodes map[string]GraphNode
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{nodes: map[string]GraphNode{}}
}

func (g *DependencyGraph) Set(key string, node GraphNode) {
	g.nodes[key] = GraphNode{
		InstallerKey: node.InstallerKey,
		Packages:     append([]string(nil), node.Packages...),
		Dependencies: append([]string(nil), node.Dependencies...),
	}
}

func (g *DependencyGraph) Has(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

func (g *DependencyGraph) Node(key string) (GraphNode, bool) {
	node, ok := g.nodes[key]
	return node, ok
}

func (g *DependencyGraph) Remove(key string) {
	delete(g.nodes, key)
}

func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

func (g *DependencyGraph) Keys() []string {
	return sortedMapKeys(g.nodes)
}

// Order returns every key with dependencies ahead of their dependents,
// breaking ties by key name.  A cycle yields a *CycleError naming the keys
// that could not be ordered; an edge to an absent key yields an
// *InternalError.
func (g *DependencyGraph) Order() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for key, node := range g.nodes {
		seen := map[string]struct{}{}
		for _, dep := range node.Dependencies {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			if _, ok := g.nodes[dep]; !ok {
				return nil, &InternalError{Cause: fmt.Errorf("key [%s] depends on unresolved key [%s]", key, dep)}
			}
			remaining[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []string
	for key := range g.nodes {
		if remaining[key] == 0 {
			ready = append(ready, key)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		ordered = append(ordered, key)
		for _, dependent := range dependents[key] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
	}

	if len(ordered) != len(g.nodes) {
		var stuck []string
		for key := range g.nodes {
			if remaining[key] > 0 {
				stuck = append(stuck, key)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Keys: stuck}
	}
	return ordered, nil
}

// InstallSteps flattens the ordered graph into installer steps.  Keys that
// resolve to nothing are dropped, repeated steps are kept once, and
// neighbouring steps for the same installer are squashed together without
// repeating a package.
func (g *DependencyGraph) InstallSteps() ([]types.InstallStep, error) {
	ordered, err := g.Order()
	if err != nil {
		return nil, err
	}

	var unique []types.InstallStep
	for _, key := range ordered {
		node := g.nodes[key]
		if len(node.Packages) == 0 {
			continue
		}
		step := types.InstallStep{InstallerKey: node.InstallerKey, Packages: node.Packages}
		if containsStep(unique, step) {
			continue
		}
		unique = append(unique, step)
	}

	var squashed []types.InstallStep
	for _, step := range unique {
		last := len(squashed) - 1
		if last >= 0 && squashed[last].InstallerKey == step.InstallerKey {
			squashed[last].Packages = appendMissing(squashed[last].Packages, step.Packages)
			continue
		}
		squashed = append(squashed, types.InstallStep{
			InstallerKey: step.InstallerKey,
			Packages:     appendMissing(nil, step.Packages),
		})
	}
	return squashed, nil
}

// appendMissing appends the packages not already in dst, keeping order.
func appendMissing(dst []string, packages []string) []string {
	for _, pkg := range packages {
		if !slices.Contains(dst, pkg) {
			dst = append(dst, pkg)
		}
	}
	return dst
}

func containsStep(steps []types.InstallStep, step types.InstallStep) bool {
	for _, existing := range steps {
		if existing.InstallerKey == step.InstallerKey && slices.Equal(existing.Packages, step.Packages) {
			return true
		}
	}
	return false
}
