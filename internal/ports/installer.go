package ports

import (
	"context"

	"github.com/ijt/xylem/internal/types"
)

// InstallerPort turns rule bodies into opaque package identifiers for one
// packaging ecosystem and produces the commands that install them.
type InstallerPort interface {
	Resolve(ctx context.Context, rule types.RuleNode) ([]string, error)

	// Depends returns dependency keys declared in the rule body.  Only
	// installers whose package manager does not track dependencies return
	// anything.
	Depends(ctx context.Context, rule types.RuleNode) ([]string, error)

	// Unique merges several resolutions into one sorted, duplicate-free list.
	Unique(resolutions ...[]string) []string

	IsInstalled(ctx context.Context, item string) (bool, error)

	PackagesToInstall(ctx context.Context, resolved []string, reinstall bool) ([]string, error)

	InstallCommands(ctx context.Context, resolved []string, interactive bool, reinstall bool) ([][]string, error)

	RemoveCommands(ctx context.Context, resolved []string, interactive bool) ([][]string, error)
}

// PackageDetectorPort reports which of the named packages are present on
// the system, mapped to their installed version.  Absent packages are
// left out of the result.  The version may be empty when the package
// manager does not report one.
type PackageDetectorPort interface {
	Installed(ctx context.Context, names []string) (map[string]string, error)
}

// ManifestFetcherPort retrieves the build manifest behind a source rule.
// An empty checksum skips verification.
type ManifestFetcherPort interface {
	Fetch(ctx context.Context, uri string, md5sum string) (types.BuildManifest, error)
}
