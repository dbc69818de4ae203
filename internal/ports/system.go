package ports

import "context"

// OSDetectorPort identifies the running operating system.
type OSDetectorPort interface {
	Name(ctx context.Context) (string, error)
	Version(ctx context.Context) (string, error)
	Codename(ctx context.Context) (string, error)
}

// CommandRunnerPort executes external commands.
type CommandRunnerPort interface {
	// Run executes argv attached to the caller's terminal.
	Run(ctx context.Context, argv []string) error

	// Output executes argv and returns its standard output.
	Output(ctx context.Context, argv []string) ([]byte, error)
}
