package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ijt/xylem/internal/adapters"
	"github.com/ijt/xylem/internal/core"
	"github.com/ijt/xylem/internal/ports"
)

type Service struct {
	OpenSources    func(path string) (ports.LoaderPort, error)
	PlatformConfig ports.PlatformConfigPort
	OSDetector     ports.OSDetectorPort
	Runner         ports.CommandRunnerPort
	Fetcher        ports.ManifestFetcherPort
	Detectors      core.DetectorFactory
	PlanWriter     ports.PlanWriterPort
	PlanReader     ports.PlanReaderPort
	NoSudo         bool
	// Hints receives suggestions for failed keys.  Nil discards them.
	Hints io.Writer
}

func NewService() Service {
	runner := adapters.NewExecRunnerAdapter()
	plans := adapters.NewPlanFileAdapter()
	return Service{
		OpenSources: func(path string) (ports.LoaderPort, error) {
			loader, err := adapters.LoadSourcesFile(path)
			if err != nil {
				return nil, err
			}
			return loader, nil
		},
		PlatformConfig: adapters.NewPlatformsFileAdapter(),
		OSDetector:     adapters.NewOSReleaseAdapter(runner),
		Runner:         runner,
		Fetcher:        adapters.NewManifestFetcherAdapter(),
		Detectors:      adapters.NewDetectorFactory(runner),
		PlanWriter:     plans,
		PlanReader:     plans,
		NoSudo:         os.Geteuid() == 0,
		Hints:          os.Stderr,
	}
}

func (s Service) openLookup(path string) (*core.Lookup, ports.LoaderPort, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sources manifest path is required")
	}
	loader, err := s.OpenSources(path)
	if err != nil {
		return nil, nil, err
	}
	return core.NewLookup(nil, loader), loader, nil
}

func (s Service) installerContext(ctx context.Context, target Target) (*core.InstallerContext, error) {
	cfg, err := s.PlatformConfig.LoadPlatforms(target.PlatformsPath)
	if err != nil {
		return nil, err
	}
	ic, err := core.BuildInstallerContext(ctx, cfg, s.OSDetector, core.InstallerDeps{
		Detectors: s.Detectors,
		Fetcher:   s.Fetcher,
		Runner:    s.Runner,
		NoSudo:    s.NoSudo,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(target.OS) != "" {
		name, version, err := ParseOSOverride(target.OS)
		if err != nil {
			return nil, err
		}
		ic.SetOSOverride(name, version)
	}
	return ic, nil
}

// ParseOSOverride splits NAME:VERSION.  The version may be empty for
// rolling releases but the colon is required.
func ParseOSOverride(value string) (string, string, error) {
	name, version, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid OS override %q, expected NAME:VERSION", value))
	}
	return strings.TrimSpace(name), strings.TrimSpace(version), nil
}
