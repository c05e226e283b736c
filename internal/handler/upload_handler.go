package handler

import (
	"bytes"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/jobs"
	"github.com/autoeval/autoeval-go-api/internal/middleware"
	"github.com/autoeval/autoeval-go-api/internal/observability"
	"github.com/autoeval/autoeval-go-api/internal/ratelimit"
	"github.com/autoeval/autoeval-go-api/internal/service"
	"github.com/autoeval/autoeval-go-api/internal/utils"
)

const (
	taskUpload     = "upload"
	taskBulkUpload = "bulk-upload"
)

// UploadHandler accepts scanned sheet uploads and hands them to the worker.
type UploadHandler struct {
	service    service.UploadService
	enqueuer   jobs.Enqueuer
	limiter    *ratelimit.Limiter
	maxArchive int64
	logger     zerolog.Logger
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(svc service.UploadService, enqueuer jobs.Enqueuer, limiter *ratelimit.Limiter, maxArchiveMB int, logger zerolog.Logger) *UploadHandler {
	if maxArchiveMB <= 0 {
		maxArchiveMB = 100
	}
	return &UploadHandler{
		service:    svc,
		enqueuer:   enqueuer,
		limiter:    limiter,
		maxArchive: int64(maxArchiveMB) * 1024 * 1024,
		logger:     logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register attaches upload endpoints to the router group.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/sheet", h.uploadSheet)
	router.Post("/bulk", h.uploadBulk)
}

func (h *UploadHandler) uploadSheet(c *fiber.Ctx) error {
	number, err := assignmentNumberFromForm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignmentNumber")
	}

	req := dto.UploadSheetRequest{
		RollNo:           c.FormValue("rollNo"),
		CourseName:       c.FormValue("courseName"),
		SheetType:        c.FormValue("sheetType"),
		AssignmentNumber: number,
	}
	if err := h.service.ValidateSheetRequest(c.Context(), req); err != nil {
		return h.handleError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	files, err := h.service.ReadFiles(form.File["files"])
	if err != nil {
		return h.handleError(c, err)
	}

	if !h.limiter.TryAcquire(req.RollNo, req.CourseName, taskUpload, extraKey(req.AssignmentNumber)) {
		observability.RateLimitRejections().WithLabelValues(taskUpload).Inc()
		return utils.SendError(c, fiber.StatusTooManyRequests, "upload already requested recently")
	}

	task, err := jobs.NewUploadSheetTask(req, files, middleware.UsernameFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	if err := h.enqueuer.Enqueue(c.Context(), task); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendAccepted(c, "upload queued")
}

func (h *UploadHandler) uploadBulk(c *fiber.Ctx) error {
	number, err := assignmentNumberFromForm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignmentNumber")
	}

	req := dto.BulkUploadRequest{
		CourseName:       c.FormValue("courseName"),
		SheetType:        c.FormValue("sheetType"),
		AssignmentNumber: number,
	}
	if err := h.service.ValidateBulkRequest(c.Context(), req); err != nil {
		return h.handleError(c, err)
	}

	header, err := c.FormFile("archive")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "archive file required")
	}
	if header.Size > h.maxArchive {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return utils.SendError(c, fiber.StatusBadRequest, "archive exceeds maximum allowed size")
	}

	handle, err := header.Open()
	if err != nil {
		return h.internalError(c, err)
	}
	defer func() { _ = handle.Close() }()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, h.maxArchive+1)); err != nil {
		return h.internalError(c, err)
	}
	if int64(buf.Len()) > h.maxArchive {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return utils.SendError(c, fiber.StatusBadRequest, "archive exceeds maximum allowed size")
	}

	teacher := middleware.UsernameFromContext(c)
	if !h.limiter.TryAcquire(teacher, req.CourseName, taskBulkUpload, extraKey(req.AssignmentNumber)) {
		observability.RateLimitRejections().WithLabelValues(taskBulkUpload).Inc()
		return utils.SendError(c, fiber.StatusTooManyRequests, "bulk upload already requested recently")
	}

	task, err := jobs.NewUploadBulkTask(req, buf.Bytes(), teacher)
	if err != nil {
		return h.internalError(c, err)
	}
	if err := h.enqueuer.Enqueue(c.Context(), task); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendAccepted(c, "bulk upload queued")
}

func (h *UploadHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrInvalidSheetType),
		errors.Is(err, service.ErrAssignmentNumberRequired),
		errors.Is(err, service.ErrNoFiles),
		errors.Is(err, service.ErrUploadTooLarge),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *UploadHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("upload request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
