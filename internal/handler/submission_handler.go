package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ujian-go-api/internal/dto"
	"github.com/noah-isme/ujian-go-api/internal/grading"
	"github.com/noah-isme/ujian-go-api/internal/middleware"
	"github.com/noah-isme/ujian-go-api/internal/models"
	"github.com/noah-isme/ujian-go-api/internal/service"
	"github.com/noah-isme/ujian-go-api/internal/utils"
)

// SubmissionHandler manages submission lifecycle endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	workflow    service.WorkflowService
	autograde   service.AutogradeService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(submissions service.SubmissionService, workflow service.WorkflowService, autograde service.AutogradeService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		workflow:    workflow,
		autograde:   autograde,
		validator:   validator,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterAssessmentRoutes attaches the creation and listing routes under
// an assessment.
func (h *SubmissionHandler) RegisterAssessmentRoutes(router fiber.Router) {
	router.Post("/:id/submissions", h.create)
	router.Get("/:id/submissions", h.listMine)
}

// Register attaches the submission routes to the provided router group.
// Grading-side transitions are double-gated: the rbac middleware rejects
// early and the workflow service enforces the same rule for non-HTTP
// callers.
func (h *SubmissionHandler) Register(router fiber.Router) {
	staffOnly := middleware.RequireRole("teacher", "admin")

	router.Get("/:id", h.get)
	router.Get("/:id/grade", h.grade)
	router.Get("/:id/questions/:questionID/answer", h.latestAnswer)
	router.Post("/:id/answers", h.saveAnswer)
	router.Patch("/:id/finalise", h.transition(models.EventFinalise))
	router.Patch("/:id/publish", staffOnly, h.transition(models.EventPublish))
	router.Patch("/:id/unsubmit", staffOnly, h.transition(models.EventUnsubmit))
	router.Post("/:id/autograde", staffOnly, h.dispatchAutograde)
}

// RegisterTaskRoutes attaches grading task progress routes.
func (h *SubmissionHandler) RegisterTaskRoutes(router fiber.Router) {
	router.Get("/:handle", h.taskStatus)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.SubmissionCreateRequest{AssessmentID: assessmentID}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
		payload.AssessmentID = assessmentID
	}

	submission, err := h.submissions.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.ListMine(c.UserContext(), assessmentID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.submissions.Grade(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade computed", fiber.Map{"submission_id": id, "grade": grade})
}

func (h *SubmissionHandler) latestAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID, err := parseUintParam(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	answer, err := h.submissions.LatestAnswer(c.UserContext(), id, questionID)
	if err != nil {
		return h.handleError(c, err)
	}
	if answer == nil {
		return utils.SendError(c, fiber.StatusNotFound, "no answer for question")
	}

	return utils.SendSuccess(c, "answer retrieved", answer)
}

func (h *SubmissionHandler) saveAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.submissions.SaveAnswer(c.UserContext(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer saved", answer)
}

func (h *SubmissionHandler) transition(event models.SubmissionEvent) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		submission, err := h.workflow.Transition(c.UserContext(), id, event, actorFromContext(c))
		if err != nil {
			return h.handleError(c, err)
		}

		requestLogger(h.logger, c).Info().
			Uint("submission_id", id).
			Str("event", string(event)).
			Msg("transition applied")

		return utils.SendSuccess(c, "submission transitioned", submission)
	}
}

func (h *SubmissionHandler) dispatchAutograde(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	task, err := h.autograde.Dispatch(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading scheduled", task)
}

func (h *SubmissionHandler) taskStatus(c *fiber.Ctx) error {
	handle := c.Params("handle")
	if handle == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "task handle is required")
	}

	task, err := h.autograde.TaskStatus(c.UserContext(), handle)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task status retrieved", task)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var creationIssues *service.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAssessmentNotFound),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateSubmission):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &creationIssues):
		details := make([]string, 0, len(creationIssues.Issues))
		for _, issue := range creationIssues.Issues {
			details = append(details, issue.Error())
		}
		return utils.SendErrorWithDetails(c, fiber.StatusUnprocessableEntity, "submission rejected", details)
	case errors.Is(err, grading.ErrUnknownKind), errors.Is(err, grading.ErrInvalidPayload):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("unhandled submission error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
