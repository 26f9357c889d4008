package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

const genericFailure = "The remote host could not be reached or returned an unexpected error."

type ContainerHandler struct {
	service ports.ContainerService
	builder ports.BuilderService
	logger  zerolog.Logger
}

func NewContainerHandler(service ports.ContainerService, builder ports.BuilderService, logger zerolog.Logger) *ContainerHandler {
	return &ContainerHandler{
		service: service,
		builder: builder,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.Context())
	if err != nil {
		return h.sendError(c, err)
	}
	return c.JSON(containers)
}

func (h *ContainerHandler) ListImages(c *fiber.Ctx) error {
	images, err := h.service.ListImages(c.Context())
	if err != nil {
		return h.sendError(c, err)
	}
	return c.JSON(images)
}

type CreateContainerRequest struct {
	Name string `json:"name"`
}

func (h *ContainerHandler) CreateContainer(c *fiber.Ctx) error {
	var req CreateContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	res, err := h.service.CreateContainer(c.Context(), req.Name)
	if err != nil {
		return h.sendError(c, err)
	}
	return h.sendResult(c, res, fiber.StatusCreated)
}

func (h *ContainerHandler) DeleteContainer(c *fiber.Ctx) error {
	res, err := h.service.DeleteContainer(c.Context(), c.Params("id"))
	if err != nil {
		return h.sendError(c, err)
	}
	return h.sendResult(c, res, fiber.StatusOK)
}

func (h *ContainerHandler) DeleteImage(c *fiber.Ctx) error {
	res, err := h.service.DeleteImage(c.Context(), c.Params("id"))
	if err != nil {
		return h.sendError(c, err)
	}
	return h.sendResult(c, res, fiber.StatusOK)
}

func (h *ContainerHandler) InstallDocker(c *fiber.Ctx) error {
	res, err := h.service.InstallDocker(c.Context())
	if err != nil {
		return h.sendError(c, err)
	}
	return h.sendResult(c, res, fiber.StatusOK)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	tail := 0
	if raw := c.Query("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "tail must be a non-negative integer",
			})
		}
		tail = n
	}

	logs, err := h.service.GetContainerLogs(c.Context(), c.Params("id"), tail)
	if err != nil {
		return h.sendError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(logs)
}

type BuildImageRequest struct {
	RepoURL string `json:"repo_url"`
	Ref     string `json:"ref"`
	Image   string `json:"image"`
}

// BuildImage blocks until the remote build finishes.
func (h *ContainerHandler) BuildImage(c *fiber.Ctx) error {
	var req BuildImageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	image, err := h.builder.BuildImage(c.Context(), req.RepoURL, req.Ref, req.Image)
	if err != nil {
		return h.sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"image":   image,
	})
}

// sendResult renders a structured result. Failed results get the status of their kind.
func (h *ContainerHandler) sendResult(c *fiber.Ctx, res domain.ActionResult, okStatus int) error {
	if res.Success {
		return c.Status(okStatus).JSON(res)
	}
	return c.Status(statusForKind(res.Kind)).JSON(res)
}

// sendError renders errors that were not turned into a result. Unclassified
// errors are logged and reported as a generic failure.
func (h *ContainerHandler) sendError(c *fiber.Ctx, err error) error {
	if domain.IsClassified(err) {
		res := domain.Failed(err)
		return c.Status(statusForKind(res.Kind)).JSON(res)
	}
	h.logger.Error().Err(err).
		Str("path", c.Path()).
		Interface("request_id", c.Locals(requestIDKey)).
		Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(domain.ActionResult{Error: genericFailure})
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindDuplicateName:
		return fiber.StatusConflict
	case domain.KindPrivilege:
		return fiber.StatusForbidden
	case domain.KindDockerMissing:
		return fiber.StatusServiceUnavailable
	case domain.KindConfiguration, domain.KindKeyNotFound, domain.KindAuthentication, domain.KindRemoteCommand:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
