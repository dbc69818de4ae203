package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/shared"
)

// ExecRunnerAdapter runs commands on the host.
type ExecRunnerAdapter struct {
	Dir string
}

func NewExecRunnerAdapter() ExecRunnerAdapter {
	return ExecRunnerAdapter{}
}

func (a ExecRunnerAdapter) Run(ctx context.Context, argv []string) error {
	cmd, err := a.command(ctx, argv)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.Debug().Strs("argv", argv).Msg("running command")
	if err := cmd.Run(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("command failed: %s", strings.Join(argv, " "))).
			WithCause(err)
	}
	return nil
}

func (a ExecRunnerAdapter) Output(ctx context.Context, argv []string) ([]byte, error) {
	cmd, err := a.command(ctx, argv)
	if err != nil {
		return nil, err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return output, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("command failed: %s", strings.Join(argv, " "))).
			WithCause(shared.CommandError([]byte(stderr.String()), err))
	}
	return output, nil
}

func (a ExecRunnerAdapter) command(ctx context.Context, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = a.Dir
	return cmd, nil
}

var _ ports.CommandRunnerPort = ExecRunnerAdapter{}
