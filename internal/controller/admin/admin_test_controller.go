package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/service"
)

type AdminTestController struct {
	adminTestService service.AdminTestService
}

func NewAdminTestController(adminTestService service.AdminTestService) *AdminTestController {
	return &AdminTestController{adminTestService: adminTestService}
}

// CreateTest godoc
// @Summary (Admin) Create a test
// @Description The correct_answers payload must match the schema implied by test_type.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test body dto.CreateTestRequest true "Test definition"
// @Success 201 {object} dto.TestDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.CreateTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateTest: failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	test, err := c.adminTestService.CreateTest(req)
	if err != nil {
		respondServiceError(ctx, err, "Failed to create test")
		return
	}
	ctx.JSON(http.StatusCreated, test)
}

// ListTests godoc
// @Summary (Admin) List all tests
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.TestDTO
// @Router /admin/tests [get]
func (c *AdminTestController) ListTests(ctx *gin.Context) {
	tests, err := c.adminTestService.ListTests()
	if err != nil {
		respondServiceError(ctx, err, "Failed to list tests")
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTest godoc
// @Summary (Admin) Get one test with its answer key and images
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id} [get]
func (c *AdminTestController) GetTest(ctx *gin.Context) {
	id, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	test, err := c.adminTestService.GetTest(id)
	if err != nil {
		respondServiceError(ctx, err, "Failed to load test")
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// UpdateTest godoc
// @Summary (Admin) Update a test
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param test body dto.UpdateTestRequest true "Fields to update"
// @Success 200 {object} dto.TestDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id} [put]
func (c *AdminTestController) UpdateTest(ctx *gin.Context) {
	id, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.UpdateTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	test, err := c.adminTestService.UpdateTest(id, req)
	if err != nil {
		respondServiceError(ctx, err, "Failed to update test")
		return
	}
	ctx.JSON(http.StatusOK, test)
}

// DeleteTest godoc
// @Summary (Admin) Delete a test and its images
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 204 "Deleted"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id} [delete]
func (c *AdminTestController) DeleteTest(ctx *gin.Context) {
	id, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	if err := c.adminTestService.DeleteTest(id); err != nil {
		respondServiceError(ctx, err, "Failed to delete test")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ReplaceTestImages godoc
// @Summary (Admin) Replace a test's ordered question-page images
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param images body []dto.TestImageRequest true "Ordered images"
// @Success 200 {object} dto.TestDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/images [put]
func (c *AdminTestController) ReplaceTestImages(ctx *gin.Context) {
	id, ok := pathID(ctx, "test_id")
	if !ok {
		return
	}
	var req []dto.TestImageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	test, err := c.adminTestService.ReplaceTestImages(id, req)
	if err != nil {
		respondServiceError(ctx, err, "Failed to replace test images")
		return
	}
	ctx.JSON(http.StatusOK, test)
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	raw, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(raw), true
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
