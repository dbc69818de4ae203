package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ubuntuOSRelease = `PRETTY_NAME="Ubuntu 22.04.4 LTS"
NAME="Ubuntu"
VERSION_ID="22.04"
VERSION="22.04.4 LTS (Jammy Jellyfish)"
VERSION_CODENAME=jammy
ID=ubuntu
ID_LIKE=debian
UBUNTU_CODENAME=jammy
`

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		want     osInfo
		wantErr  bool
		wantCode errbuilder.ErrCode
	}{
		{
			name:    "ubuntu",
			content: ubuntuOSRelease,
			want:    osInfo{name: "ubuntu", version: "22.04", codename: "jammy"},
		},
		{
			name:    "mint alias",
			content: "ID=linuxmint\nVERSION_ID=\"21.3\"\nUBUNTU_CODENAME=jammy\n",
			want:    osInfo{name: "mint", version: "21.3", codename: "jammy"},
		},
		{
			name:    "rolling release",
			content: "NAME=\"Arch Linux\"\nID=arch\n",
			want:    osInfo{name: "arch"},
		},
		{
			name:     "missing id",
			content:  "NAME=Mystery\n",
			wantErr:  true,
			wantCode: errbuilder.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOSRelease([]byte(tt.content))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errbuilder.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOSReleaseAdapterLinux(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte(ubuntuOSRelease), 0644))

	adapter := &OSReleaseAdapter{Path: path, GOOS: "linux"}
	name, err := adapter.Name(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ubuntu", name)
	version, err := adapter.Version(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "22.04", version)
	codename, err := adapter.Codename(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "jammy", codename)

	require.NoError(t, os.Remove(path))
	name, err = adapter.Name(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ubuntu", name)
}

func TestOSReleaseAdapterMissingFile(t *testing.T) {
	adapter := &OSReleaseAdapter{Path: filepath.Join(t.TempDir(), "absent"), GOOS: "linux"}
	_, err := adapter.Name(t.Context())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestOSReleaseAdapterMacOS(t *testing.T) {
	runner := &cannedRunner{output: "14.2.1\n"}
	adapter := &OSReleaseAdapter{GOOS: "darwin", Runner: runner}

	name, err := adapter.Name(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "osx", name)
	version, err := adapter.Version(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "14", version)
	codename, err := adapter.Codename(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "sonoma", codename)
	assert.Equal(t, []string{"sw_vers", "-productVersion"}, runner.argv)

	assert.Equal(t, osInfo{name: "osx", version: "10.15", codename: "catalina"}, macOSInfo("10.15.7"))
}

func TestOSReleaseAdapterUnsupported(t *testing.T) {
	adapter := &OSReleaseAdapter{GOOS: "windows"}
	_, err := adapter.Name(t.Context())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}
