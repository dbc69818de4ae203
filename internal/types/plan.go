package types

// KeyResolution is what one dependency key resolves to on the current
// platform.
type KeyResolution struct {
	InstallerKey string
	Packages     []string
	Dependencies []string
}

// InstallStep is one ordered unit of an install plan: packages handed to a
// single installer.
type InstallStep struct {
	InstallerKey string   `yaml:"installer"`
	Packages     []string `yaml:"packages"`
}

// InstallPlan is a resolved, ordered plan for one platform.  Failures
// holds the message of every resource or key that could not be resolved.
type InstallPlan struct {
	OSName    string            `yaml:"os"`
	OSVersion string            `yaml:"os_version"`
	Steps     []InstallStep     `yaml:"steps"`
	Failures  map[string]string `yaml:"failures,omitempty"`
}
