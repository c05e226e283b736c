package handler

import (
	"errors"

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
	taskEvaluate     = "evaluate"
	taskBulkEvaluate = "bulk-evaluate"
)

// EvaluationHandler accepts evaluation jobs and answers score queries.
type EvaluationHandler struct {
	service  service.EvaluationService
	enqueuer jobs.Enqueuer
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(svc service.EvaluationService, enqueuer jobs.Enqueuer, limiter *ratelimit.Limiter, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:  svc,
		enqueuer: enqueuer,
		limiter:  limiter,
		logger:   logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches evaluation endpoints to the router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/sheet", h.evaluateSheet)
	router.Post("/course", h.evaluateCourse)
	router.Get("/scores", h.scores)
	router.Get("/answers", h.answers)
}

func (h *EvaluationHandler) evaluateSheet(c *fiber.Ctx) error {
	var req dto.EvaluateSheetRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.ValidateSheetRequest(c.Context(), req); err != nil {
		return h.handleError(c, err)
	}

	if !h.limiter.TryAcquire(req.StudentUsername, req.CourseName, taskEvaluate, extraKey(req.AssignmentNumber)) {
		observability.RateLimitRejections().WithLabelValues(taskEvaluate).Inc()
		return utils.SendError(c, fiber.StatusTooManyRequests, "evaluation already requested recently")
	}

	task, err := jobs.NewEvaluateSheetTask(req, middleware.UsernameFromContext(c))
	if err != nil {
		return h.internalError(c, err)
	}
	if err := h.enqueuer.Enqueue(c.Context(), task); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendAccepted(c, "evaluation queued")
}

func (h *EvaluationHandler) evaluateCourse(c *fiber.Ctx) error {
	var req dto.BulkEvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.ValidateCourseRequest(c.Context(), req); err != nil {
		return h.handleError(c, err)
	}

	teacher := middleware.UsernameFromContext(c)
	if !h.limiter.TryAcquire(teacher, req.CourseName, taskBulkEvaluate, extraKey(req.AssignmentNumber)) {
		observability.RateLimitRejections().WithLabelValues(taskBulkEvaluate).Inc()
		return utils.SendError(c, fiber.StatusTooManyRequests, "bulk evaluation already requested recently")
	}

	task, err := jobs.NewEvaluateCourseTask(req, teacher)
	if err != nil {
		return h.internalError(c, err)
	}
	if err := h.enqueuer.Enqueue(c.Context(), task); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendAccepted(c, "bulk evaluation queued")
}

func (h *EvaluationHandler) scores(c *fiber.Ctx) error {
	req, err := sheetQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scores, err := h.service.Scores(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores retrieved", scores)
}

func (h *EvaluationHandler) answers(c *fiber.Ctx) error {
	req, err := sheetQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	answers, err := h.service.ParsedAnswers(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answers retrieved", answers)
}

func sheetQuery(c *fiber.Ctx) (dto.EvaluateSheetRequest, error) {
	number, err := assignmentNumberFromQuery(c)
	if err != nil {
		return dto.EvaluateSheetRequest{}, errors.New("invalid assignmentNumber")
	}
	req := dto.EvaluateSheetRequest{
		StudentUsername:  c.Query("studentUsername"),
		CourseName:       c.Query("courseName"),
		SheetType:        c.Query("sheetType"),
		AssignmentNumber: number,
	}
	if req.StudentUsername == "" || req.CourseName == "" || req.SheetType == "" {
		return dto.EvaluateSheetRequest{}, errors.New("studentUsername, courseName and sheetType are required")
	}
	return req, nil
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrInvalidSheetType),
		errors.Is(err, service.ErrAssignmentNumberRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrEnrolmentNotFound),
		errors.Is(err, service.ErrQuestionPaperNotFound),
		errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *EvaluationHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("evaluation request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
