package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ijt/xylem/internal/types"
)

type cannedRunner struct {
	output string
	err    error
	argv   []string
}

func (r *cannedRunner) Run(ctx context.Context, argv []string) error {
	r.argv = argv
	return r.err
}

func (r *cannedRunner) Output(ctx context.Context, argv []string) ([]byte, error) {
	r.argv = argv
	return []byte(r.output), r.err
}

func TestCommandDetectorAdapterParsers(t *testing.T) {
	tests := []struct {
		name   string
		kind   types.DetectorKind
		output string
		names  []string
		want   map[string]string
	}{
		{
			name:   "dpkg",
			kind:   types.DetectorDpkg,
			output: "cmake\tinstall ok installed\t3.22.1-1ubuntu1\nninja-build\tdeinstall ok config-files\t1.10.1-1\n",
			names:  []string{"cmake", "ninja-build", "boost"},
			want:   map[string]string{"cmake": "3.22.1-1ubuntu1"},
		},
		{
			name:   "rpm",
			kind:   types.DetectorRPM,
			output: "cmake\t3.27.7-1.fc39\npackage boost-devel is not installed\n",
			names:  []string{"cmake", "boost-devel"},
			want:   map[string]string{"cmake": "3.27.7-1.fc39"},
		},
		{
			name:   "pacman",
			kind:   types.DetectorPacman,
			output: "cmake 3.28.1-1\n",
			names:  []string{"cmake", "ninja"},
			want:   map[string]string{"cmake": "3.28.1-1"},
		},
		{
			name:   "brew",
			kind:   types.DetectorBrew,
			output: "cmake 3.27.0 3.28.1\n",
			names:  []string{"cmake"},
			want:   map[string]string{"cmake": "3.28.1"},
		},
		{
			name:   "port",
			kind:   types.DetectorPort,
			output: "The following ports are currently installed:\n  cmake @3.28.1_0 (active)\n  boost @1.76.0_0\n",
			names:  []string{"cmake", "boost"},
			want:   map[string]string{"cmake": "3.28.1_0"},
		},
		{
			name:   "pip",
			kind:   types.DetectorPip,
			output: `[{"name": "NumPy", "version": "1.26.4"}, {"name": "ruamel.yaml", "version": "0.17.21"}]`,
			names:  []string{"numpy", "ruamel-yaml", "scipy"},
			want:   map[string]string{"numpy": "1.26.4", "ruamel-yaml": "0.17.21"},
		},
		{
			name:   "gem",
			kind:   types.DetectorGem,
			output: "*** LOCAL GEMS ***\n\nrake (13.1.0, default: 13.0.6)\nbundler (default: 2.4.10)\n",
			names:  []string{"rake", "bundler", "rails"},
			want:   map[string]string{"rake": "13.1.0", "bundler": "2.4.10"},
		},
		{
			name:   "portage",
			kind:   types.DetectorPortage,
			output: "dev-lang/python-3.11.5-r1\ndev-util/cmake-3.27.7\n",
			names:  []string{"dev-lang/python", "dev-util/cmake", "dev-util/ninja"},
			want:   map[string]string{"dev-lang/python": "3.11.5-r1", "dev-util/cmake": "3.27.7"},
		},
		{
			name:   "cygcheck",
			kind:   types.DetectorCygcheck,
			output: "Cygwin Package Information\nPackage              Version\ncmake                3.25.3-1\n",
			names:  []string{"cmake", "ninja"},
			want:   map[string]string{"cmake": "3.25.3-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &cannedRunner{output: tt.output}
			detector, err := NewCommandDetectorAdapter(tt.kind, runner)
			require.NoError(t, err)

			got, err := detector.Installed(t.Context(), tt.names)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected installed set (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandDetectorAdapterAppendsNames(t *testing.T) {
	runner := &cannedRunner{}
	detector, err := NewCommandDetectorAdapter(types.DetectorDpkg, runner)
	require.NoError(t, err)

	_, err = detector.Installed(t.Context(), []string{"cmake", "boost"})
	require.NoError(t, err)
	assert.Equal(t, "dpkg-query", runner.argv[0])
	assert.Equal(t, []string{"cmake", "boost"}, runner.argv[len(runner.argv)-2:])
}

func TestCommandDetectorAdapterErrors(t *testing.T) {
	_, err := NewCommandDetectorAdapter(types.DetectorKind("zypp"), &cannedRunner{})
	require.Error(t, err)

	tolerant := &cannedRunner{output: "cmake\tinstall ok installed\t3.22\n", err: errors.New("exit status 1")}
	dpkg, err := NewCommandDetectorAdapter(types.DetectorDpkg, tolerant)
	require.NoError(t, err)
	got, err := dpkg.Installed(t.Context(), []string{"cmake", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cmake": "3.22"}, got)

	strict := &cannedRunner{err: errors.New("pip: not found")}
	pip, err := NewCommandDetectorAdapter(types.DetectorPip, strict)
	require.NoError(t, err)
	_, err = pip.Installed(t.Context(), []string{"numpy"})
	require.Error(t, err)

	garbage := &cannedRunner{output: "not json"}
	pip, err = NewCommandDetectorAdapter(types.DetectorPip, garbage)
	require.NoError(t, err)
	_, err = pip.Installed(t.Context(), []string{"numpy"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestCommandDetectorAdapterNoNames(t *testing.T) {
	runner := &cannedRunner{err: errors.New("should not run")}
	detector, err := NewCommandDetectorAdapter(types.DetectorDpkg, runner)
	require.NoError(t, err)
	got, err := detector.Installed(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Nil(t, runner.argv)
}

func TestNewDetectorFactory(t *testing.T) {
	factory := NewDetectorFactory(&cannedRunner{})
	detector, err := factory(types.DetectorPacman)
	require.NoError(t, err)
	assert.IsType(t, CommandDetectorAdapter{}, detector)

	_, err = factory(types.DetectorKind("nope"))
	require.Error(t, err)
}
