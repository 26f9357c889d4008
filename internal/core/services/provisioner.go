// Package services composes the docker runtime into the provisioning verbs
// offered by the API and the CLI.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/docker/docker/daemon/names"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

const defaultLogsTail = 200

// Options tune the provisioner.
type Options struct {
	// BasePort is the allocation floor; the first container gets BasePort+1.
	BasePort int
	// LogsTail is the number of log lines returned when the caller asks for none.
	LogsTail int
	// Username is added to the docker group after installing Docker. Empty skips it.
	Username string
	// InstallTimeout bounds the Docker installation when the caller set no deadline.
	InstallTimeout time.Duration
}

// Provisioner implements ports.ContainerService.
type Provisioner struct {
	runtime ports.ContainerRuntime
	views   ports.ViewRevalidator
	opts    Options
	logger  zerolog.Logger
}

var _ ports.ContainerService = (*Provisioner)(nil)

func NewProvisioner(runtime ports.ContainerRuntime, views ports.ViewRevalidator, opts Options, logger zerolog.Logger) *Provisioner {
	if opts.BasePort == 0 {
		opts.BasePort = domain.DefaultBasePort
	}
	if opts.LogsTail <= 0 {
		opts.LogsTail = defaultLogsTail
	}
	return &Provisioner{
		runtime: runtime,
		views:   views,
		opts:    opts,
		logger:  logger.With().Str("component", "provisioner").Logger(),
	}
}

// ListContainers returns the live container inventory. Errors always propagate.
func (p *Provisioner) ListContainers(ctx context.Context) ([]domain.Container, error) {
	return p.runtime.ListContainers(ctx)
}

// ListImages returns the live image inventory. Errors always propagate.
func (p *Provisioner) ListImages(ctx context.Context) ([]domain.Image, error) {
	return p.runtime.ListImages(ctx)
}

// CreateContainer starts a new SSH container called name on the lowest free port.
// Validation, duplicate names and classified remote failures are returned as a
// failed result; only unclassified errors are returned as an error.
func (p *Provisioner) CreateContainer(ctx context.Context, name string) (domain.ActionResult, error) {
	op := p.begin("create_container")
	op.logger = op.logger.With().Str("name", name).Logger()

	if err := validateName(name); err != nil {
		return op.fail(err)
	}

	op.to(stateEnsuringConnection)
	existing, err := p.runtime.ListContainers(ctx)
	if err != nil {
		return op.fail(err)
	}
	if lo.ContainsBy(existing, func(c domain.Container) bool { return c.Name == name }) {
		return op.fail(domain.NewDuplicateNameError(name))
	}
	port := domain.NextAvailablePort(existing, p.opts.BasePort)

	op.to(stateExecuting)
	id, res, err := p.runtime.RunContainer(ctx, name, port)
	if err != nil {
		return op.fail(err)
	}

	result := domain.ActionResult{Success: true, ID: id, Name: name, Port: port}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		op.logger.Warn().Str("stderr", stderr).Msg("docker run wrote to stderr")
		result.Warning = stderr
	}

	// docker run may have pulled the image.
	p.views.Revalidate(domain.ViewContainers, domain.ViewImages)
	op.succeed()
	return result, nil
}

// DeleteContainer force-removes a container. Remote failures do not fail the
// operation; they come back as a warning.
func (p *Provisioner) DeleteContainer(ctx context.Context, id string) (domain.ActionResult, error) {
	return p.remove(ctx, p.begin("delete_container"), id, "Container ID is required.",
		p.runtime.RemoveContainer, domain.ViewContainers)
}

// DeleteImage force-removes an image, with the same contract as DeleteContainer.
func (p *Provisioner) DeleteImage(ctx context.Context, id string) (domain.ActionResult, error) {
	return p.remove(ctx, p.begin("delete_image"), id, "Image ID is required.",
		p.runtime.RemoveImage, domain.ViewImages)
}

type removeFunc func(ctx context.Context, id string) (domain.CommandResult, error)

func (p *Provisioner) remove(ctx context.Context, op *operation, id, missing string, rm removeFunc, view domain.View) (domain.ActionResult, error) {
	op.logger = op.logger.With().Str("id", id).Logger()
	if strings.TrimSpace(id) == "" {
		return op.fail(domain.NewValidationError(missing))
	}

	op.to(stateEnsuringConnection)
	if err := p.runtime.Connect(ctx); err != nil {
		return op.fail(err)
	}

	op.to(stateExecuting)
	res, err := rm(ctx, id)
	p.views.Revalidate(view)
	if err != nil {
		return op.fail(err)
	}

	result := domain.ActionResult{Success: true, ID: id}
	if res.ExitCode != 0 {
		warning := strings.TrimSpace(res.Stderr)
		if warning == "" {
			warning = fmt.Sprintf("remote command exited with status %d", res.ExitCode)
		}
		op.logger.Warn().Int("exit_code", res.ExitCode).Str("stderr", warning).Msg("remove failed, ignoring")
		result.Warning = warning
	}
	op.succeed()
	return result, nil
}

// InstallDocker installs Docker on the managed host and, when a username is
// configured, adds it to the docker group.
func (p *Provisioner) InstallDocker(ctx context.Context) (domain.ActionResult, error) {
	op := p.begin("install_docker")

	if _, ok := ctx.Deadline(); !ok && p.opts.InstallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.InstallTimeout)
		defer cancel()
	}

	op.to(stateEnsuringConnection)
	if err := p.runtime.Connect(ctx); err != nil {
		return op.fail(err)
	}

	op.to(stateExecuting)
	if _, err := p.runtime.InstallDocker(ctx); err != nil {
		return op.fail(err)
	}

	if p.opts.Username != "" {
		res, err := p.runtime.AddUserToDockerGroup(ctx, p.opts.Username)
		switch {
		case err != nil:
			op.logger.Warn().Err(err).Str("user", p.opts.Username).Msg("usermod failed, ignoring")
		case res.ExitCode != 0:
			op.logger.Warn().Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Str("user", p.opts.Username).Msg("usermod failed, ignoring")
		}
	}

	p.views.Revalidate(domain.ViewContainers, domain.ViewImages)
	op.succeed()
	return domain.Succeeded(), nil
}

// GetContainerLogs returns the last tail lines of a container's output.
func (p *Provisioner) GetContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", domain.NewValidationError("Container ID is required.")
	}
	if tail <= 0 {
		tail = p.opts.LogsTail
	}
	if err := p.runtime.Connect(ctx); err != nil {
		return "", err
	}
	return p.runtime.ContainerLogs(ctx, id, tail)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("Client name cannot be empty.")
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return domain.NewValidationError("Client name cannot contain spaces.")
	}
	if !names.RestrictedNamePattern.MatchString(name) {
		return domain.NewValidationError(fmt.Sprintf(
			"Client name %q is invalid: use at least two characters from [a-zA-Z0-9_.-], starting with a letter or digit.", name))
	}
	return nil
}

type state string

const (
	stateIdle               state = "idle"
	stateEnsuringConnection state = "ensuring_connection"
	stateExecuting          state = "executing"
	stateSucceeded          state = "succeeded"
	stateFailed             state = "failed"
)

// operation tracks one invocation through its states for the debug log.
type operation struct {
	logger zerolog.Logger
	state  state
}

func (p *Provisioner) begin(name string) *operation {
	op := &operation{
		logger: p.logger.With().Str("op", name).Str("op_id", uuid.NewString()).Logger(),
		state:  stateIdle,
	}
	op.logger.Debug().Str("state", string(op.state)).Msg("operation started")
	return op
}

func (o *operation) to(s state) {
	o.logger.Debug().Str("from", string(o.state)).Str("to", string(s)).Msg("state transition")
	o.state = s
}

func (o *operation) succeed() {
	o.to(stateSucceeded)
}

// fail ends the operation. Classified errors become a failed result; anything
// else is returned for the caller to report as a generic failure.
func (o *operation) fail(err error) (domain.ActionResult, error) {
	o.to(stateFailed)
	if domain.IsClassified(err) {
		o.logger.Info().Err(err).Str("kind", string(domain.KindOf(err))).Msg("operation failed")
		return domain.Failed(err), nil
	}
	o.logger.Error().Err(err).Msg("operation failed")
	return domain.ActionResult{}, err
}
