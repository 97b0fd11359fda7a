package admin

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/service"
)

type AdminGradingController struct {
	submissionService service.SubmissionService
	batchService      service.BatchGradingService
	cfg               *config.Config
}

func NewAdminGradingController(
	submissionService service.SubmissionService,
	batchService service.BatchGradingService,
	cfg *config.Config,
) *AdminGradingController {
	return &AdminGradingController{
		submissionService: submissionService,
		batchService:      batchService,
		cfg:               cfg,
	}
}

// GetTestSubmissions godoc
// @Summary (Admin) List all submissions for a test
// @Description Sorted by score descending with ungraded submissions last.
// @Tags Admin - Grading
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/submissions [get]
func (c *AdminGradingController) GetTestSubmissions(ctx *gin.Context) {
	id, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	subs, err := c.submissionService.GetTestSubmissions(id)
	if err != nil {
		respondServiceError(ctx, err, "Failed to list submissions")
		return
	}
	ctx.JSON(http.StatusOK, subs)
}

// GradeSubmission godoc
// @Summary (Admin) Set a submission's score directly
// @Description A direct override: no recomputation from the answer key.
// @Tags Admin - Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission_id path int true "Submission ID"
// @Param grade body dto.GradeSubmissionRequest true "Score and optional comment"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Submission not found"
// @Router /admin/submissions/{submission_id}/grade [post]
func (c *AdminGradingController) GradeSubmission(ctx *gin.Context) {
	id, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	var req dto.GradeSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	sub, err := c.submissionService.Grade(id, *req.Score, req.Comment)
	if err != nil {
		respondServiceError(ctx, err, "Failed to grade submission")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// SetManualGrades godoc
// @Summary (Admin) Assign per-question fractional grades
// @Description Recomputes the score as the weighted merge of MCQ auto-grading and the manual fractions.
// @Tags Admin - Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission_id path int true "Submission ID"
// @Param grades body dto.ManualGradesRequest true "Fractions 0..1 keyed by question id"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Submission not found"
// @Router /admin/submissions/{submission_id}/manual-grades [post]
func (c *AdminGradingController) SetManualGrades(ctx *gin.Context) {
	id, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	var req dto.ManualGradesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	sub, err := c.submissionService.SetManualGrades(id, req.Grades, req.Comment)
	if err != nil {
		respondServiceError(ctx, err, "Failed to set manual grades")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// UpdateSubmissionAnswers godoc
// @Summary (Admin) Correct detected bubble answers
// @Description Overwrites the detected answer map, keeps image metadata and rescores against the key.
// @Tags Admin - Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission_id path int true "Submission ID"
// @Param answers body dto.UpdateAnswersRequest true "Corrected answer map"
// @Success 200 {object} dto.SubmissionDTO
// @Failure 404 {object} dto.ErrorResponse "Submission not found"
// @Router /admin/submissions/{submission_id}/answers [put]
func (c *AdminGradingController) UpdateSubmissionAnswers(ctx *gin.Context) {
	id, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	var req dto.UpdateAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	sub, err := c.submissionService.UpdateDetectedAnswers(id, req.Answers, req.Comment)
	if err != nil {
		respondServiceError(ctx, err, "Failed to update submission answers")
		return
	}
	ctx.JSON(http.StatusOK, sub)
}

// DeleteSubmission godoc
// @Summary (Admin) Delete a submission
// @Description Removes the row transactionally, then best-effort deletes referenced files.
// @Tags Admin - Grading
// @Produce json
// @Security BearerAuth
// @Param submission_id path int true "Submission ID"
// @Success 204 "Deleted"
// @Failure 404 {object} dto.ErrorResponse "Submission not found"
// @Router /admin/submissions/{submission_id} [delete]
func (c *AdminGradingController) DeleteSubmission(ctx *gin.Context) {
	id, ok := pathID(ctx, "submission_id")
	if !ok {
		return
	}
	if err := c.submissionService.Delete(id); err != nil {
		respondServiceError(ctx, err, "Failed to delete submission")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// BatchGrade godoc
// @Summary (Admin) Batch-grade scanned physical sheets
// @Description Matches uploaded images to students, runs the detector per student and upserts graded submissions. Always returns a per-student result list; partial success is normal.
// @Tags Admin - Grading
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param n_questions formData int true "Question count (1-55)"
// @Param student_ids formData string true "Ordered, comma-separated student ids"
// @Param names_as_ids formData bool false "Require file names to carry student ids"
// @Param sheets formData file true "Sheet images (repeatable)"
// @Success 200 {object} dto.BatchResultDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input or file/student mismatch"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/batch-grade [post]
func (c *AdminGradingController) BatchGrade(ctx *gin.Context) {
	testID, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}

	nQuestions, err := strconv.Atoi(ctx.PostForm("n_questions"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid n_questions"})
		return
	}
	studentIDs, err := parseStudentIDs(ctx.PostForm("student_ids"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid student_ids", Details: []string{err.Error()}})
		return
	}
	namesAsIDs, _ := strconv.ParseBool(ctx.PostForm("names_as_ids"))

	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid multipart form", Details: []string{err.Error()}})
		return
	}

	dir := filepath.Join(c.cfg.Upload.Dir, "batch", "incoming", uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store uploaded sheets"})
		return
	}

	var files []service.BatchFile
	for _, fh := range form.File["sheets"] {
		dest := filepath.Join(dir, filepath.Base(fh.Filename))
		if err := ctx.SaveUploadedFile(fh, dest); err != nil {
			log.Error().Err(err).Str("file", fh.Filename).Msg("BatchGrade: failed to save uploaded sheet")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to store uploaded sheets"})
			return
		}
		files = append(files, service.BatchFile{Name: fh.Filename, Path: dest})
	}

	result, err := c.batchService.GradePhysicalBatch(ctx.Request.Context(), service.BatchRequest{
		TestID:     testID,
		NQuestions: nQuestions,
		StudentIDs: studentIDs,
		Files:      files,
		NamesAsIDs: namesAsIDs,
	})
	if err != nil {
		respondServiceError(ctx, err, "Batch grading failed")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func parseStudentIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
