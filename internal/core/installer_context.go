package core

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

type osOverride struct {
	name    string
	version string
}

// InstallerContext maps installer keys to installers and OS names to the
// installers they may use.  One context is built per run.
type InstallerContext struct {
	installers         map[string]ports.InstallerPort
	osInstallers       map[string][]string
	defaultOSInstaller map[string]string
	versionTypes       map[string]types.VersionType
	detector           ports.OSDetectorPort
	override           *osOverride
}

func NewInstallerContext(detector ports.OSDetectorPort) *InstallerContext {
	return &InstallerContext{
		installers:         map[string]ports.InstallerPort{},
		osInstallers:       map[string][]string{},
		defaultOSInstaller: map[string]string{},
		versionTypes:       map[string]types.VersionType{},
		detector:           detector,
	}
}

func (c *InstallerContext) SetOSOverride(name string, version string) {
	c.override = &osOverride{name: name, version: version}
}

func (c *InstallerContext) VersionType(osName string) types.VersionType {
	if vt, ok := c.versionTypes[osName]; ok {
		return vt
	}
	return types.VersionTypeVersion
}

func (c *InstallerContext) SetVersionType(osName string, versionType types.VersionType) error {
	if versionType != types.VersionTypeVersion && versionType != types.VersionTypeCodename {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("version type for %s must be version or codename, got %q", osName, versionType))
	}
	c.versionTypes[osName] = versionType
	return nil
}

// OSNameAndVersion returns the override if set, otherwise the detected OS
// name with its version number or codename depending on the OS's version
// type.
func (c *InstallerContext) OSNameAndVersion(ctx context.Context) (string, string, error) {
	if c.override != nil {
		return c.override.name, c.override.version, nil
	}
	if c.detector == nil {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no OS detector configured and no OS override set")
	}
	name, err := c.detector.Name(ctx)
	if err != nil {
		return "", "", err
	}
	var version string
	if c.VersionType(name) == types.VersionTypeCodename {
		version, err = c.detector.Codename(ctx)
	} else {
		version, err = c.detector.Version(ctx)
	}
	if err != nil {
		return "", "", err
	}
	return name, version, nil
}

// SetInstaller registers installer under key, replacing any previous one.
// A nil installer removes the key.
func (c *InstallerContext) SetInstaller(key string, installer ports.InstallerPort) {
	if installer == nil {
		delete(c.installers, key)
		return
	}
	log.Debug().Str("installer", key).Msg("registering installer")
	c.installers[key] = installer
}

func (c *InstallerContext) Installer(key string) (ports.InstallerPort, error) {
	installer, ok := c.installers[key]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown installer: %s", key))
	}
	return installer, nil
}

func (c *InstallerContext) InstallerKeys() []string {
	return sortedMapKeys(c.installers)
}

func (c *InstallerContext) OSKeys() []string {
	return sortedMapKeys(c.osInstallers)
}

// AddOSInstallerKey appends installerKey to the installers osName may use.
// The installer must already be registered.
func (c *InstallerContext) AddOSInstallerKey(osName string, installerKey string) error {
	if _, err := c.Installer(installerKey); err != nil {
		return err
	}
	if slices.Contains(c.osInstallers[osName], installerKey) {
		return nil
	}
	log.Debug().Str("installer", installerKey).Str("os", osName).Msg("adding installer to OS")
	c.osInstallers[osName] = append(c.osInstallers[osName], installerKey)
	return nil
}

// OSInstallerKeys returns a copy of osName's installer keys in priority
// order.
func (c *InstallerContext) OSInstallerKeys(osName string) ([]string, error) {
	keys, ok := c.osInstallers[osName]
	if !ok {
		return nil, unknownOS(osName)
	}
	return append([]string(nil), keys...), nil
}

// SetDefaultOSInstallerKey requires AddOSInstallerKey to have been called
// for the same pair first.
func (c *InstallerContext) SetDefaultOSInstallerKey(osName string, installerKey string) error {
	keys, ok := c.osInstallers[osName]
	if !ok {
		return unknownOS(osName)
	}
	if !slices.Contains(keys, installerKey) {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("installer [%s] is not associated with OS [%s]", installerKey, osName))
	}
	if _, err := c.Installer(installerKey); err != nil {
		return err
	}
	c.defaultOSInstaller[osName] = installerKey
	return nil
}

// DefaultOSInstallerKey returns "" when the OS is known but has no default.
func (c *InstallerContext) DefaultOSInstallerKey(osName string) (string, error) {
	if _, ok := c.osInstallers[osName]; !ok {
		return "", unknownOS(osName)
	}
	return c.defaultOSInstaller[osName], nil
}

func unknownOS(osName string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown OS: %s", osName))
}

func sortedMapKeys[V any](input map[string]V) []string {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
