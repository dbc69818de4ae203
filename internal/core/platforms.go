package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

// DetectorFactory returns the package detector for a detector kind.  A nil
// detector disables already-installed filtering for that installer.
type DetectorFactory func(kind types.DetectorKind) (ports.PackageDetectorPort, error)

// InstallerDeps are the system bindings shared by compiled installers.
type InstallerDeps struct {
	Detectors DetectorFactory
	Fetcher   ports.ManifestFetcherPort
	Runner    ports.CommandRunnerPort
	// NoSudo drops the sudo prefix, e.g. when already running as root.
	NoSudo bool
}

// ValidatePlatforms checks that every OS names declared installers and a
// default among its own.
func ValidatePlatforms(cfg types.PlatformConfig) error {
	if len(cfg.Installers) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("platform config declares no installers")
	}
	for _, key := range sortedMapKeys(cfg.Installers) {
		spec := cfg.Installers[key]
		if strings.TrimSpace(key) == "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("installer key must not be empty")
		}
		switch spec.Kind {
		case types.InstallerKindPackageManager:
			if len(spec.Install) == 0 {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("installer %s must declare an install command", key))
			}
		case types.InstallerKindSource:
		default:
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("installer %s has unknown kind %q", key, spec.Kind))
		}
		switch spec.VersionScheme {
		case types.VersionSchemeNone, types.VersionSchemeDeb, types.VersionSchemePEP440:
		default:
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("installer %s has unknown version scheme %q", key, spec.VersionScheme))
		}
	}
	for _, osName := range sortedMapKeys(cfg.OS) {
		osSpec := cfg.OS[osName]
		if strings.TrimSpace(osName) == "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("OS name must not be empty")
		}
		if len(osSpec.Installers) == 0 {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("OS %s must list installers", osName))
		}
		for _, key := range osSpec.Installers {
			if _, ok := cfg.Installers[key]; !ok {
				return errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg(fmt.Sprintf("OS %s uses unknown installer %s", osName, key))
			}
		}
		if osSpec.Default != "" && !slices.Contains(osSpec.Installers, osSpec.Default) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("default installer %s of OS %s is not among its installers", osSpec.Default, osName))
		}
	}
	return nil
}

// BuildInstallerContext compiles a platform config into a fresh
// InstallerContext.
func BuildInstallerContext(ctx context.Context, cfg types.PlatformConfig, detector ports.OSDetectorPort, deps InstallerDeps) (*InstallerContext, error) {
	if err := ValidatePlatforms(cfg); err != nil {
		return nil, err
	}
	ic := NewInstallerContext(detector)

	for _, key := range sortedMapKeys(cfg.Installers) {
		assert.NotEmpty(ctx, key, "installer key must be set")
		installer, err := buildInstaller(key, cfg.Installers[key], deps)
		if err != nil {
			return nil, err
		}
		ic.SetInstaller(key, installer)
	}
	for _, osName := range sortedMapKeys(cfg.OS) {
		assert.NotEmpty(ctx, osName, "OS name must be set")
		osSpec := cfg.OS[osName]
		for _, key := range osSpec.Installers {
			if err := ic.AddOSInstallerKey(osName, key); err != nil {
				return nil, err
			}
		}
		if osSpec.Default != "" {
			if err := ic.SetDefaultOSInstallerKey(osName, osSpec.Default); err != nil {
				return nil, err
			}
		}
		if osSpec.VersionType != "" {
			if err := ic.SetVersionType(osName, osSpec.VersionType); err != nil {
				return nil, err
			}
		}
	}
	log.Ctx(ctx).Debug().
		Int("installers", len(cfg.Installers)).
		Int("os", len(cfg.OS)).
		Msg("installer context built")
	return ic, nil
}

func buildInstaller(key string, spec types.InstallerSpec, deps InstallerDeps) (ports.InstallerPort, error) {
	switch spec.Kind {
	case types.InstallerKindSource:
		return NewSourceInstaller(key, deps.Fetcher, deps.Runner), nil
	default:
		var detector ports.PackageDetectorPort
		if spec.Detector != "" && deps.Detectors != nil {
			d, err := deps.Detectors(spec.Detector)
			if err != nil {
				return nil, err
			}
			detector = d
		}
		if deps.NoSudo {
			spec.Sudo = false
		}
		return NewPackageManagerInstaller(key, spec, detector), nil
	}
}
