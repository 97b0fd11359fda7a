package student

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/middleware"
	"github.com/xX-youssuf-Xx/student-portal/internal/service"
)

type StudentTestController struct {
	testService       service.TestService
	submissionService service.SubmissionService
	rankService       service.RankService
	cfg               *config.Config
}

func NewStudentTestController(
	testService service.TestService,
	submissionService service.SubmissionService,
	rankService service.RankService,
	cfg *config.Config,
) *StudentTestController {
	return &StudentTestController{
		testService:       testService,
		submissionService: submissionService,
		rankService:       rankService,
		cfg:               cfg,
	}
}

// GetAvailableTests godoc
// @Summary (Student) List currently available tests
// @Description Tests matching the student's grade and group whose window contains now, with submission status attached.
// @Tags Student - Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AvailableTestDTO
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *StudentTestController) GetAvailableTests(ctx *gin.Context) {
	studentID, ok := middleware.SubjectID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing student identity"})
		return
	}
	tests, err := c.testService.AvailableTests(studentID)
	if err != nil {
		respondServiceError(ctx, err, "Failed to list available tests")
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestQuestions godoc
// @Summary (Student) Get the sanitized question payload for a test
// @Description Answer keys are stripped. Returns 404 both for unknown tests and for tests the student may not see.
// @Tags Student - Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestQuestionsDTO
// @Failure 404 {object} dto.ErrorResponse "Not found"
// @Router /tests/{test_id}/questions [get]
func (c *StudentTestController) GetTestQuestions(ctx *gin.Context) {
	studentID, testID, ok := c.identity(ctx)
	if !ok {
		return
	}
	questions, err := c.testService.TestQuestions(testID, studentID)
	if err != nil {
		respondServiceError(ctx, err, "Failed to load test questions")
		return
	}
	ctx.JSON(http.StatusOK, questions)
}

// StartTest godoc
// @Summary (Student) Start a test
// @Description Creates the student's empty draft submission if none exists. Idempotent.
// @Tags Student - Submissions
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/start [post]
func (c *StudentTestController) StartTest(ctx *gin.Context) {
	studentID, testID, ok := c.identity(ctx)
	if !ok {
		return
	}
	sub, err := c.submissionService.Start(testID, studentID)
	if err != nil {
		respondServiceError(ctx, err, "Failed to start test")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// SubmitTest godoc
// @Summary (Student) Submit draft or final answers
// @Tags Student - Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param submission body dto.SubmitTestRequest true "Answer payload"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid payload"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/submit [post]
func (c *StudentTestController) SubmitTest(ctx *gin.Context) {
	studentID, testID, ok := c.identity(ctx)
	if !ok {
		return
	}
	var req dto.SubmitTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	sub, err := c.submissionService.Submit(testID, studentID, req.Answers, req.IsDraft)
	if err != nil {
		respondServiceError(ctx, err, "Failed to submit test")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// UploadBubbleSheet godoc
// @Summary (Student) Upload a scanned physical answer sheet
// @Description Stores the sheet file and records an ungraded submission pointing at it.
// @Tags Student - Submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param sheet formData file true "Scanned sheet image or PDF"
// @Param notes formData string false "Free-form note for the grader"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 400 {object} dto.ErrorResponse "Missing file"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/bubble-sheet [post]
func (c *StudentTestController) UploadBubbleSheet(ctx *gin.Context) {
	studentID, testID, ok := c.identity(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("sheet")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Missing sheet file", Details: []string{err.Error()}})
		return
	}
	var form dto.UploadBubbleSheetRequest
	_ = ctx.ShouldBind(&form)

	dir := filepath.Join(c.cfg.Upload.Dir, "sheets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store sheet"})
		return
	}
	dest := filepath.Join(dir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := ctx.SaveUploadedFile(file, dest); err != nil {
		log.Error().Err(err).Str("dest", dest).Msg("UploadBubbleSheet: failed to save file")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store sheet"})
		return
	}

	sub, err := c.submissionService.UploadBubbleSheet(testID, studentID, dest, form.Notes)
	if err != nil {
		respondServiceError(ctx, err, "Failed to record sheet submission")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// GetMyRank godoc
// @Summary (Student) Get competition rank for a test
// @Description Rank is -1 when the student has no scored submission; total counts all scored submissions.
// @Tags Student - Submissions
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.RankDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests/{test_id}/rank [get]
func (c *StudentTestController) GetMyRank(ctx *gin.Context) {
	studentID, testID, ok := c.identity(ctx)
	if !ok {
		return
	}
	rank, err := c.rankService.GetStudentRank(testID, studentID)
	if err != nil {
		respondServiceError(ctx, err, "Failed to compute rank")
		return
	}
	ctx.JSON(http.StatusOK, rank)
}

func (c *StudentTestController) identity(ctx *gin.Context) (studentID, testID uint, ok bool) {
	studentID, found := middleware.SubjectID(ctx)
	if !found {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing student identity"})
		return 0, 0, false
	}
	raw, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid test ID format"})
		return 0, 0, false
	}
	return studentID, uint(raw), true
}

func respondServiceError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Not found"})
	case errors.Is(err, service.ErrValidation):
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	default:
		log.Error().Err(err).Msg(fallback)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: fallback, Details: []string{err.Error()}})
	}
}
