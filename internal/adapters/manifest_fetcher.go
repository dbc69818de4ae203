package adapters

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/shared"
	"github.com/ijt/xylem/internal/types"
)

// ManifestFetcherAdapter reads build manifests from local paths, file://
// or http(s):// uris.
type ManifestFetcherAdapter struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

func NewManifestFetcherAdapter() ManifestFetcherAdapter {
	return ManifestFetcherAdapter{
		Timeout:    defaultHTTPTimeout,
		Retries:    defaultHTTPRetries,
		RetryDelay: defaultHTTPRetryDelay,
	}
}

func (a ManifestFetcherAdapter) Fetch(ctx context.Context, uri string, md5sum string) (types.BuildManifest, error) {
	data, err := a.read(ctx, uri)
	if err != nil {
		return types.BuildManifest{}, err
	}
	if md5sum != "" {
		sum := md5.Sum(data)
		actual := hex.EncodeToString(sum[:])
		if !strings.EqualFold(actual, strings.TrimSpace(md5sum)) {
			return types.BuildManifest{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", uri, md5sum, actual))
		}
	}
	var manifest types.BuildManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return types.BuildManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid build manifest %s", uri)).
			WithCause(err)
	}
	manifest.URI = uri
	log.Debug().Str("uri", uri).Msg("build manifest read")
	return manifest, nil
}

func (a ManifestFetcherAdapter) read(ctx context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme == "" {
		return readLocal(uri)
	}
	switch parsed.Scheme {
	case "file":
		return readLocal(parsed.Path)
	case "http", "https":
		return a.download(ctx, uri)
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported manifest uri scheme: %s", parsed.Scheme))
	}
}

func (a ManifestFetcherAdapter) download(ctx context.Context, uri string) ([]byte, error) {
	resp, err := doRequest(ctx, uri, normalizeHTTPConfig(a.Timeout, a.Retries, a.RetryDelay))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read manifest response").
			WithCause(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest not found: %s", uri)).
			WithCause(shared.HTTPStatusError(resp.StatusCode, uri))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("manifest download failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, uri, strings.TrimSpace(string(body))))
	}
	return body, nil
}

func readLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest not found: %s", path)).
			WithCause(err)
	}
	return data, nil
}

var _ ports.ManifestFetcherPort = ManifestFetcherAdapter{}
