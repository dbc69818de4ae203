package types

// SourceEntry is the raw rule data of one source as ingested by a loader.
// Dependencies name the sources merged ahead of this one, in order.
type SourceEntry struct {
	Name         string
	Rules        map[string]RuleNode
	Dependencies []string
	Origin       string
}

// DefinitionSite records a source that directly defines a key.
type DefinitionSite struct {
	View   string
	Origin string
}

type SourceRef struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Depends []string `yaml:"depends,omitempty"`
}

type ResourceSpec struct {
	View    string   `yaml:"view,omitempty"`
	Keys    []string `yaml:"keys"`
	Depends []string `yaml:"depends,omitempty"`
}

// SourcesManifest is the top-level structure of a sources.yaml file.  Paths
// are relative to the manifest's directory.
type SourcesManifest struct {
	Sources   []SourceRef             `yaml:"sources"`
	Resources map[string]ResourceSpec `yaml:"resources"`
}

// BuildManifest describes how to build and detect a dependency installed
// from source.
type BuildManifest struct {
	URI                 string   `yaml:"uri,omitempty"`
	InstallScript       string   `yaml:"install-script"`
	CheckPresenceScript string   `yaml:"check-presence-script"`
	Depends             []string `yaml:"depends,omitempty"`
	ExecPath            string   `yaml:"exec-path,omitempty"`
}

// UnderlayView names the synthetic view that merges every loadable source,
// used by resources that declare no view of their own.
const UnderlayView = "*all*"
