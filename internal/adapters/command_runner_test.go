package adapters

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerAdapterOutput(t *testing.T) {
	runner := ExecRunnerAdapter{Dir: t.TempDir()}

	output, err := runner.Output(t.Context(), []string{"sh", "-c", "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(output))

	_, err = runner.Output(t.Context(), []string{"sh", "-c", "echo oops >&2; exit 3"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestExecRunnerAdapterRun(t *testing.T) {
	runner := NewExecRunnerAdapter()
	require.NoError(t, runner.Run(t.Context(), []string{"true"}))
	require.Error(t, runner.Run(t.Context(), []string{"false"}))
}

func TestExecRunnerAdapterEmptyCommand(t *testing.T) {
	runner := NewExecRunnerAdapter()
	for _, argv := range [][]string{nil, {""}} {
		_, err := runner.Output(t.Context(), argv)
		require.Error(t, err)
		assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	}
}
