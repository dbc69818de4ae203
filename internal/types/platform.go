package types

type InstallerKind string

const (
	InstallerKindPackageManager InstallerKind = "package_manager"
	InstallerKindSource         InstallerKind = "source"
)

// VersionType selects which OS detector value is used as the version key in
// rule documents.
type VersionType string

const (
	VersionTypeVersion  VersionType = "version"
	VersionTypeCodename VersionType = "codename"
)

type DetectorKind string

const (
	DetectorDpkg     DetectorKind = "dpkg"
	DetectorRPM      DetectorKind = "rpm"
	DetectorPacman   DetectorKind = "pacman"
	DetectorBrew     DetectorKind = "brew"
	DetectorPort     DetectorKind = "port"
	DetectorPip      DetectorKind = "pip"
	DetectorGem      DetectorKind = "gem"
	DetectorPortage  DetectorKind = "portage"
	DetectorCygcheck DetectorKind = "cygcheck"
)

type InstallerSpec struct {
	Kind            InstallerKind `yaml:"kind"`
	Install         []string      `yaml:"install,omitempty"`
	Remove          []string      `yaml:"remove,omitempty"`
	NonInteractive  []string      `yaml:"non_interactive,omitempty"`
	Sudo            bool          `yaml:"sudo,omitempty"`
	Detector        DetectorKind  `yaml:"detector,omitempty"`
	SupportsDepends bool          `yaml:"supports_depends,omitempty"`
	VersionScheme   VersionScheme `yaml:"version_scheme,omitempty"`
}

type OSSpec struct {
	Installers  []string    `yaml:"installers"`
	Default     string      `yaml:"default"`
	VersionType VersionType `yaml:"version_type,omitempty"`
}

// PlatformConfig declares every installer and which installers each OS may
// use.  OS variants are data over the same installer implementations.
type PlatformConfig struct {
	Installers map[string]InstallerSpec `yaml:"installers"`
	OS         map[string]OSSpec        `yaml:"os"`
}
