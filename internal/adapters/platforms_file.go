package adapters

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

//go:embed platforms.yaml
var defaultPlatforms []byte

// PlatformsFileAdapter loads installer and OS declarations.  An empty path
// selects the built-in set.
type PlatformsFileAdapter struct{}

func NewPlatformsFileAdapter() PlatformsFileAdapter {
	return PlatformsFileAdapter{}
}

func (a PlatformsFileAdapter) LoadPlatforms(path string) (types.PlatformConfig, error) {
	data := defaultPlatforms
	origin := "built-in platforms"
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return types.PlatformConfig{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("platforms file not found: %s", path)).
				WithCause(err)
		}
		data, origin = content, path
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var cfg types.PlatformConfig
	if err := decoder.Decode(&cfg); err != nil {
		return types.PlatformConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse %s", origin)).
			WithCause(err)
	}
	return cfg, nil
}

var _ ports.PlatformConfigPort = PlatformsFileAdapter{}
