package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

// SourceInstaller builds software from a build manifest referenced by uri.
// Rule bodies are mappings with "uri", optional "md5sum" and optional
// "depends".  The resolved items are the manifest uris, suffixed with
// "#md5=<sum>" when the rule pins a checksum so plans replayed later
// verify the same manifest.
type SourceInstaller struct {
	key       string
	fetcher   ports.ManifestFetcherPort
	runner    ports.CommandRunnerPort
	manifests map[string]types.BuildManifest
}

func NewSourceInstaller(key string, fetcher ports.ManifestFetcherPort, runner ports.CommandRunnerPort) *SourceInstaller {
	return &SourceInstaller{
		key:       key,
		fetcher:   fetcher,
		runner:    runner,
		manifests: map[string]types.BuildManifest{},
	}
}

func (i *SourceInstaller) Key() string {
	return i.key
}

func (i *SourceInstaller) Resolve(ctx context.Context, rule types.RuleNode) ([]string, error) {
	uri, md5sum, err := i.ruleFields(rule)
	if err != nil {
		return nil, err
	}
	if _, err := i.manifest(ctx, uri, md5sum); err != nil {
		return nil, err
	}
	return []string{sourceItem(uri, md5sum)}, nil
}

// Depends returns the keys the rule depends on followed by those the
// manifest depends on, each once.
func (i *SourceInstaller) Depends(ctx context.Context, rule types.RuleNode) ([]string, error) {
	uri, md5sum, err := i.ruleFields(rule)
	if err != nil {
		return nil, err
	}
	var depends []string
	if node, ok := rule.Get("depends"); ok {
		switch node.Kind {
		case types.RuleKindString:
			depends = append(depends, strings.Fields(node.Text)...)
		case types.RuleKindSequence:
			for _, item := range node.Sequence {
				if item.Kind != types.RuleKindString {
					return nil, newInvalidData("", "source depends entries must be strings, got %s", item.Kind)
				}
				depends = append(depends, item.Text)
			}
		default:
			return nil, newInvalidData("", "source depends must be a list, got %s", node.Kind)
		}
	}
	manifest, err := i.manifest(ctx, uri, md5sum)
	if err != nil {
		return nil, err
	}
	depends = append(depends, manifest.Depends...)

	seen := map[string]struct{}{}
	out := []string{}
	for _, dep := range depends {
		if _, ok := seen[dep]; ok || dep == "" {
			continue
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}
	return out, nil
}

func (i *SourceInstaller) ruleFields(rule types.RuleNode) (string, string, error) {
	if !rule.IsMapping() {
		return "", "", newInvalidData("", "source rule must be a mapping, got %s", rule.Kind)
	}
	uri, ok := rule.Get("uri")
	if !ok || !uri.IsString() || strings.TrimSpace(uri.Text) == "" {
		return "", "", newInvalidData("", "source rule needs a uri string")
	}
	var md5sum string
	if sum, ok := rule.Get("md5sum"); ok {
		if !sum.IsString() {
			return "", "", newInvalidData("", "source md5sum must be a string")
		}
		md5sum = strings.TrimSpace(sum.Text)
	}
	return strings.TrimSpace(uri.Text), md5sum, nil
}

// manifest fetches a build manifest once per uri and checksum.
func (i *SourceInstaller) manifest(ctx context.Context, uri string, md5sum string) (types.BuildManifest, error) {
	cacheKey := sourceItem(uri, md5sum)
	if manifest, ok := i.manifests[cacheKey]; ok {
		return manifest, nil
	}
	if i.fetcher == nil {
		return types.BuildManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("installer [%s] cannot fetch manifests", i.key))
	}
	manifest, err := i.fetcher.Fetch(ctx, uri, md5sum)
	if err != nil {
		return types.BuildManifest{}, err
	}
	if manifest.URI == "" {
		manifest.URI = uri
	}
	i.manifests[cacheKey] = manifest
	log.Ctx(ctx).Debug().Str("uri", uri).Msg("build manifest fetched")
	return manifest, nil
}

func (i *SourceInstaller) Unique(resolutions ...[]string) []string {
	seen := map[string]struct{}{}
	for _, resolved := range resolutions {
		for _, item := range resolved {
			seen[item] = struct{}{}
		}
	}
	return sortedMapKeys(seen)
}

func (i *SourceInstaller) CanDetect() bool {
	return true
}

// IsInstalled runs the manifest's check-presence script.  A manifest
// without one is never installed.
func (i *SourceInstaller) IsInstalled(ctx context.Context, item string) (bool, error) {
	uri, md5sum := splitSourceItem(item)
	manifest, err := i.manifest(ctx, uri, md5sum)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(manifest.CheckPresenceScript) == "" {
		return false, nil
	}
	if _, err := i.runner.Output(ctx, []string{"sh", "-c", manifest.CheckPresenceScript}); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return true, nil
}

func (i *SourceInstaller) PackagesToInstall(ctx context.Context, resolved []string, reinstall bool) ([]string, error) {
	if reinstall {
		return append([]string(nil), resolved...), nil
	}
	var missing []string
	for _, item := range resolved {
		installed, err := i.IsInstalled(ctx, item)
		if err != nil {
			return nil, err
		}
		if !installed {
			missing = append(missing, item)
		}
	}
	return missing, nil
}

func (i *SourceInstaller) InstallCommands(ctx context.Context, resolved []string, interactive bool, reinstall bool) ([][]string, error) {
	missing, err := i.PackagesToInstall(ctx, resolved, reinstall)
	if err != nil {
		return nil, err
	}
	var commands [][]string
	for _, item := range missing {
		uri, md5sum := splitSourceItem(item)
		manifest, err := i.manifest(ctx, uri, md5sum)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(manifest.InstallScript) == "" {
			return nil, newInvalidData(item, "build manifest has no install-script")
		}
		script := manifest.InstallScript
		if manifest.ExecPath != "" {
			script = fmt.Sprintf("cd %s && %s", shellQuote(manifest.ExecPath), script)
		}
		commands = append(commands, []string{"sh", "-c", script})
	}
	return commands, nil
}

func (i *SourceInstaller) RemoveCommands(ctx context.Context, resolved []string, interactive bool) ([][]string, error) {
	if len(resolved) == 0 {
		return nil, nil
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("installer [%s] does not support removal", i.key))
}

const sourceChecksumMarker = "#md5="

func sourceItem(uri string, md5sum string) string {
	if md5sum == "" {
		return uri
	}
	return uri + sourceChecksumMarker + md5sum
}

// splitSourceItem returns the manifest uri and pinned checksum of a
// resolved source item.
func splitSourceItem(item string) (string, string) {
	if idx := strings.LastIndex(item, sourceChecksumMarker); idx >= 0 {
		return item[:idx], item[idx+len(sourceChecksumMarker):]
	}
	return item, ""
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
