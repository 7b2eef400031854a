package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/model"
	"github.com/nexlearn/mocktest/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	testService    service.TestService
	attemptService service.AttemptService
}

func NewAttemptController(ts service.TestService, as service.AttemptService) *AttemptController {
	return &AttemptController{
		testService:    ts,
		attemptService: as,
	}
}

// GetAllTests godoc
// @Summary (User) List all available tests
// @Description Get the catalogue of tests a candidate can attempt.
// @Tags User - Tests & Attempts
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *AttemptController) GetAllTests(ctx *gin.Context) {
	tests, err := c.testService.GetAllTests()
	if err != nil {
		log.Error().Err(err).Msg("GetAllTests: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to retrieve tests"})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestDetails godoc
// @Summary (User) Get details of a specific test
// @Description Section outline, durations and marking scheme for the pre-attempt screen. Answer keys are never included.
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *AttemptController) GetTestDetails(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	test, err := c.testService.GetTestDetails(testID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// StartOrResumeAttempt godoc
// @Summary (User) Start a test attempt, or resume the open one
// @Description At most one non-submitted attempt exists per user and test; a second start resumes it with server-side state (remaining time, responses, section index).
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param body body dto.StartAttemptDTO true "Identity of the candidate"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/attempts [post]
func (c *AttemptController) StartOrResumeAttempt(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.StartAttemptDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}
	state, err := c.attemptService.StartOrResume(testID, req.UserID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// GetAttemptState godoc
// @Summary (User) Get the full state of an attempt
// @Description Everything a client needs to render or resume: remaining-time tuple, current section with derived question statuses, and frozen section results.
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttemptState(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	state, err := c.attemptService.GetState(attemptID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// VisitQuestion godoc
// @Summary (User) Record navigation onto a question
// @Description Marks the question at the given index of the active section as visited. Out-of-range indexes are rejected without any state change.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param body body dto.VisitQuestionDTO true "Question index within the active section"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 400 {object} dto.ErrorResponse "Index out of range"
// @Failure 409 {object} dto.ErrorResponse "Attempt already submitted"
// @Router /attempts/{attempt_id}/visit [post]
func (c *AttemptController) VisitQuestion(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.VisitQuestionDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}
	state, err := c.attemptService.VisitQuestion(attemptID, *req.QuestionIndex)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// SaveResponse godoc
// @Summary (User) Save or overwrite an answer
// @Description Last-write-wins per question. A null selected_answer clears the answer but keeps the review flag and visited state. The answer is durable once this returns 200.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param body body dto.SaveResponseDTO true "Answer state"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 400 {object} dto.ErrorResponse "Question not in the active section"
// @Failure 409 {object} dto.ErrorResponse "Attempt already submitted"
// @Router /attempts/{attempt_id}/responses [put]
func (c *AttemptController) SaveResponse(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.SaveResponseDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}
	state, err := c.attemptService.SaveResponse(attemptID, req)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// ToggleMark godoc
// @Summary (User) Toggle marked-for-review on a question
// @Description Idempotent toggle, independent of whether an answer is present.
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param question_id path int true "Question ID"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 409 {object} dto.ErrorResponse "Attempt already submitted"
// @Router /attempts/{attempt_id}/responses/{question_id}/mark [post]
func (c *AttemptController) ToggleMark(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	questionID, ok := pathID(ctx, "question_id")
	if !ok {
		return
	}
	state, err := c.attemptService.ToggleMark(attemptID, questionID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// ClearResponse godoc
// @Summary (User) Clear an answer
// @Description Removes the selected answer; the review flag and visited state survive.
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param question_id path int true "Question ID"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 409 {object} dto.ErrorResponse "Attempt already submitted"
// @Router /attempts/{attempt_id}/responses/{question_id} [delete]
func (c *AttemptController) ClearResponse(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	questionID, ok := pathID(ctx, "question_id")
	if !ok {
		return
	}
	state, err := c.attemptService.ClearResponse(attemptID, questionID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// CompleteSection godoc
// @Summary (User) Complete the current section
// @Description Freezes the section's result and advances to the next section, or submits if it was the last. Idempotent: retrying for an already-frozen section succeeds without double-counting.
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param section_index path int true "Section index (idempotency key)"
// @Success 200 {object} dto.AttemptStateDTO
// @Failure 409 {object} dto.ErrorResponse "Attempt already submitted"
// @Failure 422 {object} dto.ErrorResponse "Section index does not match the attempt state"
// @Router /attempts/{attempt_id}/sections/{section_index}/complete [post]
func (c *AttemptController) CompleteSection(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	sectionIndex, err := strconv.Atoi(ctx.Param("section_index"))
	if err != nil || sectionIndex < 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid section index", Code: "validation"})
		return
	}
	state, err := c.attemptService.CompleteSection(attemptID, sectionIndex, model.TriggerManual)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, state)
}

// SubmitAttempt godoc
// @Summary (User) Submit the attempt
// @Description Finalizes the attempt: the current section is captured, all section results are aggregated into the FinalResult. Idempotent; a repeat returns the recorded result.
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.FinalResultDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	result, err := c.attemptService.Submit(attemptID, model.TriggerManual)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetAttemptResult godoc
// @Summary (User) Get the final result of a submitted attempt
// @Tags User - Tests & Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.FinalResultDTO
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 422 {object} dto.ErrorResponse "Attempt not submitted yet"
// @Router /attempts/{attempt_id}/result [get]
func (c *AttemptController) GetAttemptResult(ctx *gin.Context) {
	attemptID, ok := pathID(ctx, "attempt_id")
	if !ok {
		return
	}
	result, err := c.attemptService.Result(attemptID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetUserAttempts godoc
// @Summary (User) List a user's attempts for a test
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Param user_id query int true "User ID"
// @Success 200 {array} dto.AttemptSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid User ID format"
// @Router /tests/{test_id}/my-attempts [get]
func (c *AttemptController) GetUserAttempts(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(ctx.Query("user_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid User ID format in query", Code: "validation"})
		return
	}
	attempts, err := c.attemptService.ListAttempts(testID, uint(userID))
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name + " format", Code: "validation"})
		return 0, false
	}
	return uint(val), true
}

// respondServiceError maps service sentinels to HTTP codes and stable
// reason codes. "already_submitted" tells the client to redirect to the
// result view instead of retrying.
func respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotFound), errors.Is(err, service.ErrAttemptNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, service.ErrAlreadySubmitted):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "already_submitted"})
	case errors.Is(err, service.ErrIndexOutOfRange), errors.Is(err, service.ErrQuestionNotInSection):
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, service.ErrSectionMismatch), errors.Is(err, service.ErrAttemptNotFinal):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Code: "state_conflict"})
	case errors.Is(err, service.ErrTestHasNoQuestions):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Code: "empty_test"})
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}
