package app

import (
	"context"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ijt/xylem/internal/core"
	"github.com/ijt/xylem/internal/types"
)

// WhereDefined lists every source that directly defines a key.  Sources
// that fail to load are returned in Errors and do not stop the scan.
func (s Service) WhereDefined(ctx context.Context, req WhereDefinedRequest) (WhereDefinedResult, error) {
	if err := requireKey(req.Key); err != nil {
		return WhereDefinedResult{}, err
	}
	lookup, _, err := s.openLookup(req.SourcesPath)
	if err != nil {
		return WhereDefinedResult{}, err
	}
	sites, err := lookup.ViewsThatDefine(ctx, req.Key)
	if err != nil {
		return WhereDefinedResult{}, err
	}
	return WhereDefinedResult{Sites: sites, Errors: lookup.Errors()}, nil
}

// Keys lists the keys the given resources need, in first-seen order.
func (s Service) Keys(ctx context.Context, req KeysRequest) (KeysResult, error) {
	if len(req.Resources) == 0 {
		return KeysResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no resources given")
	}
	lookup, _, err := s.openLookup(req.SourcesPath)
	if err != nil {
		return KeysResult{}, err
	}
	var keys []string
	for _, resource := range req.Resources {
		resourceKeys, err := lookup.KeysFor(ctx, resource, req.Implicit)
		if err != nil {
			return KeysResult{}, err
		}
		for _, key := range resourceKeys {
			if !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
	}
	return KeysResult{Keys: keys}, nil
}

// WhatNeeds lists the resources that directly need a key.
func (s Service) WhatNeeds(ctx context.Context, req WhatNeedsRequest) (WhatNeedsResult, error) {
	if err := requireKey(req.Key); err != nil {
		return WhatNeedsResult{}, err
	}
	lookup, _, err := s.openLookup(req.SourcesPath)
	if err != nil {
		return WhatNeedsResult{}, err
	}
	resources, err := lookup.ResourcesThatNeed(ctx, req.Key)
	if err != nil {
		return WhatNeedsResult{}, err
	}
	return WhatNeedsResult{Resources: resources, Errors: lookup.Errors()}, nil
}

// Platforms summarizes the installers each OS may use.
func (s Service) Platforms(ctx context.Context, req PlatformsRequest) (PlatformsResult, error) {
	cfg, err := s.PlatformConfig.LoadPlatforms(req.PlatformsPath)
	if err != nil {
		return PlatformsResult{}, err
	}
	if err := core.ValidatePlatforms(cfg); err != nil {
		return PlatformsResult{}, err
	}
	names := make([]string, 0, len(cfg.OS))
	for name := range cfg.OS {
		names = append(names, name)
	}
	slices.Sort(names)

	result := PlatformsResult{}
	for _, name := range names {
		spec := cfg.OS[name]
		versionType := spec.VersionType
		if versionType == "" {
			versionType = types.VersionTypeVersion
		}
		result.Platforms = append(result.Platforms, PlatformSummary{
			OS:          name,
			Default:     spec.Default,
			Installers:  slices.Clone(spec.Installers),
			VersionType: versionType,
		})
	}
	return result, nil
}

func requireKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("key is required")
	}
	return nil
}
