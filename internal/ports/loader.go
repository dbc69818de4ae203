package ports

import (
	"context"

	"github.com/ijt/xylem/internal/types"
)

// LoaderPort discovers resources and the rule sources that back them.
type LoaderPort interface {
	// Keys returns the dependency keys resource needs.  With implicit set,
	// keys of the resources it depends on are included too.
	Keys(ctx context.Context, resource string, implicit bool) ([]string, error)

	LoadableResources(ctx context.Context) ([]string, error)

	LoadableViews(ctx context.Context) ([]string, error)

	// ViewKey returns the view a resource resolves its keys in, or false if
	// the resource has none.
	ViewKey(ctx context.Context, resource string) (string, bool, error)

	// LoadView reads one source.  It fails with a not-found error if the
	// source does not exist and with invalid data if it cannot be parsed.
	LoadView(ctx context.Context, viewKey string) (types.SourceEntry, error)
}
