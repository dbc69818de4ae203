package core

import (
	"github.com/ijt/xylem/internal/types"
)

// Definition is the raw rule data of a single dependency key as declared
// by one source.
type Definition struct {
	Key    string
	Data   types.RuleNode
	Origin string
}

func NewDefinition(key string, data types.RuleNode, origin string) *Definition {
	if origin == "" {
		origin = "<dynamic>"
	}
	return &Definition{Key: key, Data: data, Origin: origin}
}

// RuleForPlatform selects the installer key and rule body for an OS.
//
// The OS entry is first searched for an installer key (in installerKeys
// order).  Failing that it is read as an OS version entry, whose value may
// again name an installer.  A match at the first level skips the version
// lookup entirely.  defaultKey is returned when no installer is named.
func (d *Definition) RuleForPlatform(osName string, osVersion string, installerKeys []string, defaultKey string) (string, types.RuleNode, error) {
	if !d.Data.IsMapping() {
		return "", types.RuleNode{}, newInvalidData(d.Origin, "rule for [%s] must be a mapping", d.Key)
	}
	data, ok := d.Data.Get(osName)
	if !ok {
		return "", types.RuleNode{}, newResolutionError(d.Key, &d.Data, osName, osVersion,
			"No definition of [%s] for OS [%s]", d.Key, osName)
	}

	installerKey := defaultKey
	if data.IsMapping() {
		if key, body, found := matchInstaller(data, installerKeys); found {
			installerKey, data = key, body
		} else {
			versioned, ok := data.Get(osVersion)
			if !ok {
				return "", types.RuleNode{}, newResolutionError(d.Key, &d.Data, osName, osVersion,
					"No definition of [%s] for OS version [%s]", d.Key, osVersion)
			}
			data = versioned
			if key, body, found := matchInstaller(data, installerKeys); found {
				installerKey, data = key, body
			}
		}
	}

	switch data.Kind {
	case types.RuleKindMapping, types.RuleKindSequence, types.RuleKindString:
		return installerKey, data, nil
	default:
		return "", types.RuleNode{}, newInvalidData(d.Origin,
			"OS rule for [%s:%s] must be a mapping, string, or sequence, got %s", d.Key, osName, data.Kind)
	}
}

func matchInstaller(data types.RuleNode, installerKeys []string) (string, types.RuleNode, bool) {
	if !data.IsMapping() {
		return "", types.RuleNode{}, false
	}
	for _, key := range installerKeys {
		if body, ok := data.Get(key); ok {
			return key, body, true
		}
	}
	return "", types.RuleNode{}, false
}
