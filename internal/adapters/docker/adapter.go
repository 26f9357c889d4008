package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

// Remote commands. The listing commands are sent verbatim; everything that
// takes a parameter is assembled with shellquote.Join.
const (
	listContainersCmd = `docker ps -a --format "{{json .}}"`
	listImagesCmd     = `docker images --format "{{json .}}"`
	installDockerCmd  = `curl -fsSL https://get.docker.com -o get-docker.sh && sudo sh get-docker.sh`
)

// Adapter implements ports.ContainerRuntime by running the docker CLI on the
// managed host through a ports.RemoteExecutor.
type Adapter struct {
	exec   ports.RemoteExecutor
	image  string
	logger zerolog.Logger
}

var _ ports.ContainerRuntime = (*Adapter)(nil)

// NewAdapter creates a new Docker adapter that provisions containers from image.
func NewAdapter(exec ports.RemoteExecutor, image string, logger zerolog.Logger) *Adapter {
	return &Adapter{
		exec:   exec,
		image:  image,
		logger: logger.With().Str("component", "docker").Logger(),
	}
}

// Connect establishes the session to the managed host if needed.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.exec.EnsureConnected(ctx)
}

// ListContainers returns every container on the host, running or not, in the order docker reports them.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	out, err := a.list(ctx, listContainersCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return parseContainers(out, a.logger), nil
}

// ListImages returns the images present on the host.
func (a *Adapter) ListImages(ctx context.Context) ([]domain.Image, error) {
	out, err := a.list(ctx, listImagesCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return parseImages(out, a.logger), nil
}

func (a *Adapter) list(ctx context.Context, cmd string) (string, error) {
	if err := a.exec.EnsureConnected(ctx); err != nil {
		return "", err
	}
	res, err := a.exec.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		a.logger.Error().Str("cmd", cmd).Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("docker listing failed")
		return "", domain.ClassifyDockerFailure(res)
	}
	return res.Stdout, nil
}

// RunContainer starts a detached container named name with host port mapped to 22.
func (a *Adapter) RunContainer(ctx context.Context, name string, port int) (string, domain.CommandResult, error) {
	cmd := shellquote.Join("docker", "run", "-d", "--name", name, "-p", strconv.Itoa(port)+":22", a.image)
	res, err := a.exec.Run(ctx, cmd)
	if err != nil {
		return "", res, err
	}
	if res.ExitCode != 0 {
		return "", res, domain.ClassifyDockerFailure(res)
	}
	return strings.TrimSpace(res.Stdout), res, nil
}

// RemoveContainer force-removes a container. A non-zero exit is returned in the
// result only; callers decide whether it matters.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) (domain.CommandResult, error) {
	return a.exec.Run(ctx, shellquote.Join("docker", "rm", "-f", id))
}

// RemoveImage force-removes an image, with the same contract as RemoveContainer.
func (a *Adapter) RemoveImage(ctx context.Context, id string) (domain.CommandResult, error) {
	return a.exec.Run(ctx, shellquote.Join("docker", "rmi", "-f", id))
}

// ContainerLogs returns the last tail lines a container wrote to stdout and stderr.
func (a *Adapter) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	cmd := shellquote.Join("docker", "logs", "--tail", strconv.Itoa(tail), id)
	res, err := a.exec.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", domain.ClassifyDockerFailure(res)
	}
	return res.Stdout + res.Stderr, nil
}

// InstallDocker runs the upstream convenience script. It needs a terminal
// because sudo refuses to run without one on many distributions.
func (a *Adapter) InstallDocker(ctx context.Context) (domain.CommandResult, error) {
	res, err := a.exec.RunTTY(ctx, installDockerCmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		if isPrivilegeFailure(res.Stdout + res.Stderr) {
			return res, domain.NewPrivilegeError(res.Stdout + res.Stderr)
		}
		return res, domain.NewRemoteCommandError(strings.TrimSpace(res.Stdout + res.Stderr))
	}
	return res, nil
}

// AddUserToDockerGroup lets username talk to the docker daemon without sudo.
func (a *Adapter) AddUserToDockerGroup(ctx context.Context, username string) (domain.CommandResult, error) {
	return a.exec.Run(ctx, shellquote.Join("sudo", "usermod", "-aG", "docker", username))
}

func isPrivilegeFailure(output string) bool {
	return strings.Contains(output, "a terminal is required") ||
		strings.Contains(output, "a password is required") ||
		strings.Contains(output, "no tty present")
}
