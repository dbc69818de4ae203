package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ijt/xylem/internal/types"
)

func TestPlatformsFileAdapterDefaults(t *testing.T) {
	cfg, err := NewPlatformsFileAdapter().LoadPlatforms("")
	require.NoError(t, err)

	apt, ok := cfg.Installers["apt"]
	require.True(t, ok)
	assert.Equal(t, types.InstallerKindPackageManager, apt.Kind)
	assert.Equal(t, types.DetectorDpkg, apt.Detector)
	assert.Equal(t, types.VersionSchemeDeb, apt.VersionScheme)
	assert.Equal(t, types.InstallerKindSource, cfg.Installers["source"].Kind)
	assert.True(t, cfg.Installers["pip"].SupportsDepends)

	ubuntu, ok := cfg.OS["ubuntu"]
	require.True(t, ok)
	assert.Equal(t, "apt", ubuntu.Default)
	assert.Equal(t, types.VersionTypeCodename, cfg.OS["osx"].VersionType)

	for name, osSpec := range cfg.OS {
		assert.Contains(t, osSpec.Installers, osSpec.Default, "os %s", name)
		for _, key := range osSpec.Installers {
			_, declared := cfg.Installers[key]
			assert.True(t, declared, "os %s uses undeclared installer %s", name, key)
		}
	}
}

func TestPlatformsFileAdapterCustom(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "platforms.yaml")
	require.NoError(t, os.WriteFile(custom, []byte(`installers:
  nix:
    kind: package_manager
    install: [nix-env, -i]
os:
  nixos:
    installers: [nix]
    default: nix
`), 0644))
	adapter := NewPlatformsFileAdapter()

	cfg, err := adapter.LoadPlatforms(custom)
	require.NoError(t, err)
	assert.Equal(t, []string{"nix-env", "-i"}, cfg.Installers["nix"].Install)
	assert.Len(t, cfg.OS, 1)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("installers:\n  nix:\n    kind: package_manager\n    flavour: x\n"), 0644))
	_, err = adapter.LoadPlatforms(unknown)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = adapter.LoadPlatforms(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}
