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
	"gorm.io/gorm"
)

// TestService resolves which tests a student may currently see and serves
// the sanitized question payload. "Does not exist" and "not authorized" are
// both surfaced as ErrNotFound so callers cannot tell hidden tests apart
// from missing ones.
type TestService interface {
	AvailableTests(studentID uint) ([]dto.AvailableTestDTO, error)
	TestQuestions(testID, studentID uint) (*dto.TestQuestionsDTO, error)
}

type testService struct {
	testRepo       repository.TestRepository
	studentRepo    repository.StudentRepository
	submissionRepo repository.SubmissionRepository
	cfg            *config.Config
}

func NewTestService(
	testRepo repository.TestRepository,
	studentRepo repository.StudentRepository,
	submissionRepo repository.SubmissionRepository,
	cfg *config.Config,
) TestService {
	return &testService{
		testRepo:       testRepo,
		studentRepo:    studentRepo,
		submissionRepo: submissionRepo,
		cfg:            cfg,
	}
}

func (s *testService) AvailableTests(studentID uint) ([]dto.AvailableTestDTO, error) {
	student, err := s.studentRepo.FindByID(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching student %d: %w", studentID, err)
	}

	tests, err := s.testRepo.FindByGradeAndGroup(student.Grade, student.StudentGroup)
	if err != nil {
		log.Error().Err(err).Uint("studentID", studentID).Msg("AvailableTests: repository error")
		return nil, fmt.Errorf("error fetching tests: %w", err)
	}

	now := time.Now().In(s.cfg.Location())
	out := make([]dto.AvailableTestDTO, 0, len(tests))
	for i := range tests {
		test := &tests[i]
		if !s.windowContains(test, now) {
			continue
		}
		submitted, err := s.submissionRepo.ExistsForTestAndStudent(test.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("error checking submission for test %d: %w", test.ID, err)
		}
		var item dto.AvailableTestDTO
		if err := copier.Copy(&item, test); err != nil {
			return nil, fmt.Errorf("error preparing test listing: %w", err)
		}
		item.IsSubmitted = submitted
		out = append(out, item)
	}
	return out, nil
}

func (s *testService) TestQuestions(testID, studentID uint) (*dto.TestQuestionsDTO, error) {
	student, err := s.studentRepo.FindByID(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching student %d: %w", studentID, err)
	}

	test, err := s.testRepo.FindByIDWithImages(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}

	if !s.visibleToStudent(test, student) {
		return nil, ErrNotFound
	}

	submitted, err := s.submissionRepo.ExistsForTestAndStudent(testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("error checking submission: %w", err)
	}
	if submitted && test.ViewType != model.ViewTypeImmediate && !test.ViewPermission {
		return nil, ErrNotFound
	}

	resp := &dto.TestQuestionsDTO{
		ID:              test.ID,
		Title:           test.Title,
		TestType:        test.TestType,
		StartTime:       test.StartTime,
		EndTime:         test.EndTime,
		DurationMinutes: test.DurationMinutes,
	}
	for _, img := range test.Images {
		resp.Images = append(resp.Images, dto.TestImageDTO{
			ID:           img.ID,
			ImagePath:    img.ImagePath,
			DisplayOrder: img.DisplayOrder,
		})
	}

	// Only the MCQ key has per-question structure worth sending; for sheet
	// tests the key is never exposed in any form.
	if test.TestType == model.TestTypeMCQ {
		key, err := model.ParseMCQKey(test.CorrectAnswers)
		if err != nil {
			log.Warn().Err(err).Uint("testID", testID).Msg("TestQuestions: malformed MCQ key, serving no questions")
		} else {
			for _, q := range key.Questions {
				resp.Questions = append(resp.Questions, dto.SanitizedQuestionDTO{
					ID:      string(q.ID),
					Type:    q.Type,
					Options: q.Options,
				})
			}
		}
	}
	return resp, nil
}

func (s *testService) visibleToStudent(test *model.Test, student *model.Student) bool {
	if test.Grade != student.Grade {
		return false
	}
	if test.StudentGroup != nil {
		if student.StudentGroup == nil || *test.StudentGroup != *student.StudentGroup {
			return false
		}
	}
	return s.windowContains(test, time.Now().In(s.cfg.Location()))
}

// windowContains treats the [start, end] window as inclusive. Tests with
// unparsable window strings are never available.
func (s *testService) windowContains(test *model.Test, now time.Time) bool {
	start, end, err := test.Window(s.cfg.Location())
	if err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Msg("unparsable test window")
		return false
	}
	return !now.Before(start) && !now.After(end)
}
