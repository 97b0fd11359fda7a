package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"github.com/xX-youssuf-Xx/student-portal/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminTestService is the administrator's side of test management. It
// validates that the answer key's shape matches the chosen test type up
// front; a mismatched key would otherwise silently score every submission 0.
type AdminTestService interface {
	CreateTest(req dto.CreateTestRequest) (*dto.TestDTO, error)
	UpdateTest(id uint, req dto.UpdateTestRequest) (*dto.TestDTO, error)
	DeleteTest(id uint) error
	GetTest(id uint) (*dto.TestDTO, error)
	ListTests() ([]dto.TestDTO, error)
	ReplaceTestImages(id uint, images []dto.TestImageRequest) (*dto.TestDTO, error)
}

type adminTestService struct {
	testRepo  repository.TestRepository
	imageRepo repository.TestImageRepository
	cfg       *config.Config
}

func NewAdminTestService(testRepo repository.TestRepository, imageRepo repository.TestImageRepository, cfg *config.Config) AdminTestService {
	return &adminTestService{testRepo: testRepo, imageRepo: imageRepo, cfg: cfg}
}

func (s *adminTestService) CreateTest(req dto.CreateTestRequest) (*dto.TestDTO, error) {
	if err := validateWindow(req.StartTime, req.EndTime, s.cfg.Location()); err != nil {
		return nil, err
	}
	if err := validateKeyShape(req.TestType, req.CorrectAnswers); err != nil {
		return nil, err
	}
	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrValidation)
	}

	viewType := req.ViewType
	if viewType == "" {
		viewType = model.ViewTypeImmediate
	}

	test := model.Test{
		Title:            req.Title,
		Grade:            req.Grade,
		StudentGroup:     req.StudentGroup,
		TestType:         req.TestType,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		DurationMinutes:  req.DurationMinutes,
		CorrectAnswers:   datatypes.JSON(req.CorrectAnswers),
		ViewType:         viewType,
		ViewPermission:   req.ViewPermission,
		ShowGradeOutside: req.ShowGradeOutside,
	}
	for i, img := range req.Images {
		test.Images = append(test.Images, model.TestImage{ImagePath: img.ImagePath, DisplayOrder: i})
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Msg("CreateTest: database error")
		return nil, fmt.Errorf("database error creating test: %w", err)
	}
	return s.GetTest(test.ID)
}

func (s *adminTestService) UpdateTest(id uint, req dto.UpdateTestRequest) (*dto.TestDTO, error) {
	test, err := s.findTest(id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Grade != nil {
		test.Grade = *req.Grade
	}
	if req.StudentGroup != nil {
		test.StudentGroup = req.StudentGroup
	}
	if req.StartTime != nil {
		test.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		test.EndTime = *req.EndTime
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = req.DurationMinutes
	}
	if len(req.CorrectAnswers) > 0 {
		if err := validateKeyShape(test.TestType, req.CorrectAnswers); err != nil {
			return nil, err
		}
		test.CorrectAnswers = datatypes.JSON(req.CorrectAnswers)
	}
	if req.ViewType != nil {
		test.ViewType = *req.ViewType
	}
	if req.ViewPermission != nil {
		test.ViewPermission = *req.ViewPermission
	}
	if req.ShowGradeOutside != nil {
		test.ShowGradeOutside = *req.ShowGradeOutside
	}

	if err := validateWindow(test.StartTime, test.EndTime, s.cfg.Location()); err != nil {
		return nil, err
	}
	if err := s.testRepo.Update(test); err != nil {
		return nil, fmt.Errorf("database error updating test %d: %w", id, err)
	}
	return s.GetTest(id)
}

func (s *adminTestService) DeleteTest(id uint) error {
	if _, err := s.findTest(id); err != nil {
		return err
	}
	if err := s.testRepo.Delete(id); err != nil {
		return fmt.Errorf("database error deleting test %d: %w", id, err)
	}
	return nil
}

func (s *adminTestService) GetTest(id uint) (*dto.TestDTO, error) {
	test, err := s.testRepo.FindByIDWithImages(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", id, err)
	}
	return testToDTO(test), nil
}

func (s *adminTestService) ListTests() ([]dto.TestDTO, error) {
	tests, err := s.testRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("error fetching tests: %w", err)
	}
	out := make([]dto.TestDTO, 0, len(tests))
	for i := range tests {
		out = append(out, *testToDTO(&tests[i]))
	}
	return out, nil
}

func (s *adminTestService) ReplaceTestImages(id uint, images []dto.TestImageRequest) (*dto.TestDTO, error) {
	if _, err := s.findTest(id); err != nil {
		return nil, err
	}
	rows := make([]model.TestImage, 0, len(images))
	for _, img := range images {
		rows = append(rows, model.TestImage{ImagePath: img.ImagePath})
	}
	if err := s.imageRepo.ReplaceForTest(id, rows); err != nil {
		return nil, fmt.Errorf("database error replacing images for test %d: %w", id, err)
	}
	return s.GetTest(id)
}

func (s *adminTestService) findTest(id uint) (*model.Test, error) {
	test, err := s.testRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", id, err)
	}
	return test, nil
}

func testToDTO(test *model.Test) *dto.TestDTO {
	var out dto.TestDTO
	if err := copier.Copy(&out, test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("error copying test to DTO")
	}
	out.CorrectAnswers = []byte(test.CorrectAnswers)
	return &out
}

func validateWindow(start, end string, loc *time.Location) error {
	st, err := time.ParseInLocation(model.WallClockLayout, start, loc)
	if err != nil {
		return fmt.Errorf("%w: start_time must match %q", ErrValidation, model.WallClockLayout)
	}
	en, err := time.ParseInLocation(model.WallClockLayout, end, loc)
	if err != nil {
		return fmt.Errorf("%w: end_time must match %q", ErrValidation, model.WallClockLayout)
	}
	if !en.After(st) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}
	return nil
}

// validateKeyShape rejects a correct_answers payload whose schema does not
// match the test type. An empty key is allowed; scoring then degenerates
// to 0.
func validateKeyShape(testType string, key []byte) error {
	if len(key) == 0 {
		return nil
	}
	switch testType {
	case model.TestTypeMCQ:
		if _, err := model.ParseMCQKey(key); err != nil {
			return fmt.Errorf("%w: correct_answers does not match the MCQ schema: %v", ErrValidation, err)
		}
	case model.TestTypeBubbleSheet, model.TestTypePhysicalSheet:
		if _, err := model.ParseBubbleKey(key); err != nil {
			return fmt.Errorf("%w: correct_answers does not match the answer-map schema: %v", ErrValidation, err)
		}
	default:
		return fmt.Errorf("%w: unknown test type %q", ErrValidation, testType)
	}
	return nil
}
