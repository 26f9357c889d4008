package ports

import (
	"context"

	"github.com/melih/containerpilot/internal/core/domain"
)

// ContainerRuntime is the set of docker verbs the managed host understands.
// Implementations talk to exactly one host and do not cache.
type ContainerRuntime interface {
	// Connect makes sure the host is reachable before a verb is issued.
	Connect(ctx context.Context) error
	ListContainers(ctx context.Context) ([]domain.Container, error)
	ListImages(ctx context.Context) ([]domain.Image, error)
	// RunContainer starts a detached SSH container publishing port on 22 and returns its ID.
	RunContainer(ctx context.Context, name string, port int) (string, domain.CommandResult, error)
	RemoveContainer(ctx context.Context, id string) (domain.CommandResult, error)
	RemoveImage(ctx context.Context, id string) (domain.CommandResult, error)
	ContainerLogs(ctx context.Context, id string, tail int) (string, error)
	InstallDocker(ctx context.Context) (domain.CommandResult, error)
	AddUserToDockerGroup(ctx context.Context, username string) (domain.CommandResult, error)
}

// ContainerService defines the provisioning operations exposed to the
// presentation layer (HTTP API and CLI).
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	ListImages(ctx context.Context) ([]domain.Image, error)
	CreateContainer(ctx context.Context, name string) (domain.ActionResult, error)
	DeleteContainer(ctx context.Context, id string) (domain.ActionResult, error)
	DeleteImage(ctx context.Context, id string) (domain.ActionResult, error)
	InstallDocker(ctx context.Context) (domain.ActionResult, error)
	// GetContainerLogs returns the last tail log lines; tail <= 0 uses the configured default.
	GetContainerLogs(ctx context.Context, id string, tail int) (string, error)
}

// ViewRevalidator is told when a listing the presentation layer caches has changed.
type ViewRevalidator interface {
	Revalidate(views ...domain.View)
}
