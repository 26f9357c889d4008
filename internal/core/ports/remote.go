package ports

import (
	"context"

	"github.com/melih/containerpilot/internal/core/domain"
)

// RemoteExecutor runs shell commands on the managed host.
type RemoteExecutor interface {
	// EnsureConnected establishes the connection if there is none.
	EnsureConnected(ctx context.Context) error
	// Run executes cmd. A non-zero exit status is reported in the result, not as an error.
	Run(ctx context.Context, cmd string) (domain.CommandResult, error)
	// RunTTY executes cmd with a pseudo-terminal attached; stderr arrives on stdout.
	RunTTY(ctx context.Context, cmd string) (domain.CommandResult, error)
}
