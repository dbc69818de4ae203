package core

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/shared"
	"github.com/ijt/xylem/internal/types"
)

// PackageManagerInstaller installs packages through a system or language
// package manager described by an InstallerSpec.  Rule bodies are either a
// string of space separated names, a list of names, or a mapping with a
// "packages" field (and "depends" when the installer supports it).
type PackageManagerInstaller struct {
	key      string
	spec     types.InstallerSpec
	detector ports.PackageDetectorPort
	cache    *versionCache
}

func NewPackageManagerInstaller(key string, spec types.InstallerSpec, detector ports.PackageDetectorPort) *PackageManagerInstaller {
	return &PackageManagerInstaller{
		key:      key,
		spec:     spec,
		detector: detector,
		cache:    newVersionCache(spec.VersionScheme),
	}
}

func (i *PackageManagerInstaller) Key() string {
	return i.key
}

func (i *PackageManagerInstaller) Resolve(ctx context.Context, rule types.RuleNode) ([]string, error) {
	switch rule.Kind {
	case types.RuleKindMapping:
		packages, ok := rule.Get("packages")
		if !ok {
			return []string{}, nil
		}
		return i.namesFrom(packages, "packages")
	case types.RuleKindString, types.RuleKindSequence:
		return i.namesFrom(rule, "rule")
	default:
		return nil, newInvalidData("", "invalid rule spec for installer [%s]: %s", i.key, rule.Kind)
	}
}

func (i *PackageManagerInstaller) Depends(ctx context.Context, rule types.RuleNode) ([]string, error) {
	if !i.spec.SupportsDepends || !rule.IsMapping() {
		return []string{}, nil
	}
	depends, ok := rule.Get("depends")
	if !ok {
		return []string{}, nil
	}
	return i.namesFrom(depends, "depends")
}

// namesFrom reads a space separated string or a list of names.
func (i *PackageManagerInstaller) namesFrom(node types.RuleNode, field string) ([]string, error) {
	switch node.Kind {
	case types.RuleKindString:
		return strings.Fields(node.Text), nil
	case types.RuleKindSequence:
		names := make([]string, 0, len(node.Sequence))
		for _, item := range node.Sequence {
			if item.Kind != types.RuleKindString && item.Kind != types.RuleKindScalar {
				return nil, newInvalidData("", "invalid %s entry for installer [%s]: %s", field, i.key, item.Kind)
			}
			if name := strings.TrimSpace(item.Text); name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	default:
		return nil, newInvalidData("", "invalid %s for installer [%s]: %s", field, i.key, node.Kind)
	}
}

func (i *PackageManagerInstaller) Unique(resolutions ...[]string) []string {
	seen := map[string]struct{}{}
	for _, resolved := range resolutions {
		for _, item := range resolved {
			seen[item] = struct{}{}
		}
	}
	return sortedMapKeys(seen)
}

// CanDetect reports whether installed state can be observed.  Without a
// detector every item is treated as missing.
func (i *PackageManagerInstaller) CanDetect() bool {
	return i.detector != nil
}

func (i *PackageManagerInstaller) IsInstalled(ctx context.Context, item string) (bool, error) {
	missing, err := i.PackagesToInstall(ctx, []string{item}, false)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// PackagesToInstall returns the resolved items that are not installed in a
// satisfying version, keeping their order.  With reinstall every item is
// returned.
func (i *PackageManagerInstaller) PackagesToInstall(ctx context.Context, resolved []string, reinstall bool) ([]string, error) {
	if reinstall || i.detector == nil || len(resolved) == 0 {
		return append([]string(nil), resolved...), nil
	}
	specs, names, err := i.parseAll(resolved)
	if err != nil {
		return nil, err
	}
	installed, err := i.detector.Installed(ctx, names)
	if err != nil {
		return nil, err
	}

	var missing []string
	for idx, item := range resolved {
		spec := specs[idx]
		version, ok := installed[i.detectName(spec.Name)]
		if ok {
			satisfied, err := i.cache.satisfies(version, spec.Constraints)
			if err != nil {
				return nil, err
			}
			if satisfied {
				continue
			}
		}
		missing = append(missing, item)
	}
	log.Ctx(ctx).Debug().Str("installer", i.key).Strs("missing", missing).Msg("checked installed packages")
	return missing, nil
}

func (i *PackageManagerInstaller) InstallCommands(ctx context.Context, resolved []string, interactive bool, reinstall bool) ([][]string, error) {
	if len(i.spec.Install) == 0 {
		return nil, newInvalidData("", "installer [%s] has no install command", i.key)
	}
	missing, err := i.PackagesToInstall(ctx, resolved, reinstall)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}
	args := make([]string, 0, len(missing))
	for _, item := range missing {
		spec, err := ParsePackageSpec(item, i.spec.VersionScheme)
		if err != nil {
			return nil, err
		}
		args = append(args, installArgument(item, spec, i.spec.VersionScheme))
	}
	return [][]string{i.command(i.spec.Install, interactive, args)}, nil
}

// RemoveCommands removes the resolved items that are installed.  Without
// a remove template the install command is reused with its "install"
// token replaced by "remove".
func (i *PackageManagerInstaller) RemoveCommands(ctx context.Context, resolved []string, interactive bool) ([][]string, error) {
	template := i.spec.Remove
	if len(template) == 0 {
		template = substituteToken(i.spec.Install, "install", "remove")
	}
	if len(template) == 0 {
		return nil, newInvalidData("", "installer [%s] has no remove command", i.key)
	}

	specs, names, err := i.parseAll(resolved)
	if err != nil {
		return nil, err
	}
	filter := i.detector != nil
	var installed map[string]string
	if filter && len(names) > 0 {
		installed, err = i.detector.Installed(ctx, names)
		if err != nil {
			return nil, err
		}
	}
	var present []string
	for _, spec := range specs {
		if filter {
			if _, ok := installed[i.detectName(spec.Name)]; !ok {
				continue
			}
		}
		if !slices.Contains(present, spec.Name) {
			present = append(present, spec.Name)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}
	return [][]string{i.command(template, interactive, present)}, nil
}

func (i *PackageManagerInstaller) command(template []string, interactive bool, args []string) []string {
	var argv []string
	if i.spec.Sudo {
		argv = append(argv, "sudo")
	}
	argv = append(argv, template...)
	if !interactive {
		argv = append(argv, i.spec.NonInteractive...)
	}
	return append(argv, args...)
}

func (i *PackageManagerInstaller) parseAll(resolved []string) ([]types.PackageSpec, []string, error) {
	specs := make([]types.PackageSpec, 0, len(resolved))
	seen := map[string]struct{}{}
	var names []string
	for _, item := range resolved {
		spec, err := ParsePackageSpec(item, i.spec.VersionScheme)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
		name := i.detectName(spec.Name)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return specs, names, nil
}

// detectName matches the key the detector reports names under.
func (i *PackageManagerInstaller) detectName(name string) string {
	if i.spec.Detector == types.DetectorPip {
		return shared.NormalizePipName(name)
	}
	return name
}

func substituteToken(argv []string, from string, to string) []string {
	out := make([]string, len(argv))
	for idx, token := range argv {
		if token == from {
			token = to
		}
		out[idx] = token
	}
	return out
}
