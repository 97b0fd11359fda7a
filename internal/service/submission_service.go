package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"github.com/xX-youssuf-Xx/student-portal/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionService owns the per-(test, student) submission record and its
// draft -> submitted -> graded lifecycle. Every write path funnels through
// the composite-unique-index upsert so a (test, student) pair can never end
// up with two rows, even under concurrent duplicate requests.
type SubmissionService interface {
	Start(testID, studentID uint) (*dto.SubmissionDTO, error)
	Submit(testID, studentID uint, answers json.RawMessage, isDraft bool) (*dto.SubmissionDTO, error)
	UploadBubbleSheet(testID, studentID uint, filePath, notes string) (*dto.SubmissionDTO, error)
	Grade(submissionID uint, score float64, comment *string) (*dto.SubmissionDTO, error)
	SetManualGrades(submissionID uint, grades map[string]float64, comment *string) (*dto.SubmissionDTO, error)
	UpdateDetectedAnswers(submissionID uint, answers map[string]string, comment *string) (*dto.SubmissionDTO, error)
	Delete(submissionID uint) error
	GetTestSubmissions(testID uint) ([]dto.SubmissionDTO, error)
}

type submissionService struct {
	testRepo       repository.TestRepository
	submissionRepo repository.SubmissionRepository
	scoring        ScoringService
}

func NewSubmissionService(
	testRepo repository.TestRepository,
	submissionRepo repository.SubmissionRepository,
	scoring ScoringService,
) SubmissionService {
	return &submissionService{
		testRepo:       testRepo,
		submissionRepo: submissionRepo,
		scoring:        scoring,
	}
}

// Start creates the empty draft row for (test, student) if none exists and
// returns the row either way. Calling it twice never creates a second row
// and never loses answers already saved on the first one.
func (s *submissionService) Start(testID, studentID uint) (*dto.SubmissionDTO, error) {
	test, err := s.findTest(testID)
	if err != nil {
		return nil, err
	}

	fresh := &model.Submission{
		TestID:    testID,
		StudentID: studentID,
		Answers:   datatypes.JSON([]byte(`{}`)),
	}
	if err := s.submissionRepo.CreateIfAbsent(fresh); err != nil {
		return nil, fmt.Errorf("error starting test %d for student %d: %w", testID, studentID, err)
	}

	sub, err := s.submissionRepo.FindByTestAndStudent(testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("error reloading submission: %w", err)
	}
	return s.toStudentDTO(test, sub), nil
}

// Submit saves answers for (test, student). A draft only ever creates a row;
// the final submit is the overwrite path and triggers auto-grading for MCQ
// and BUBBLE_SHEET tests whose key is present. PHYSICAL_SHEET submissions
// are never auto-graded here. Once a row exists, further submits are
// rejected after the test's duration has elapsed since it was created.
func (s *submissionService) Submit(testID, studentID uint, answers json.RawMessage, isDraft bool) (*dto.SubmissionDTO, error) {
	test, err := s.findTest(testID)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: empty answers payload", ErrValidation)
	}
	if !json.Valid(answers) {
		return nil, fmt.Errorf("%w: unparseable answers payload", ErrValidation)
	}

	existing, err := s.submissionRepo.FindByTestAndStudent(testID, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("error checking existing submission: %w", err)
		}
		existing = nil
	}
	if err := checkDuration(test, existing); err != nil {
		return nil, err
	}

	if isDraft {
		draft := &model.Submission{
			TestID:    testID,
			StudentID: studentID,
			Answers:   datatypes.JSON(answers),
		}
		if err := s.submissionRepo.CreateIfAbsent(draft); err != nil {
			return nil, fmt.Errorf("error saving draft: %w", err)
		}
		sub, err := s.submissionRepo.FindByTestAndStudent(testID, studentID)
		if err != nil {
			return nil, fmt.Errorf("error reloading draft: %w", err)
		}
		return s.toStudentDTO(test, sub), nil
	}

	sub := &model.Submission{
		TestID:    testID,
		StudentID: studentID,
		Answers:   datatypes.JSON(answers),
	}

	// An existing row keeps its grading state unless this submit re-grades.
	if existing != nil {
		sub.Score = existing.Score
		sub.Graded = existing.Graded
		sub.ManualGrades = existing.ManualGrades
		sub.TeacherComment = existing.TeacherComment
	}

	if test.AutoGradable() && len(test.CorrectAnswers) > 0 {
		score := s.scoring.Score(test.TestType, test.CorrectAnswers, answers)
		sub.Score = &score
		sub.Graded = true
	}

	if err := s.submissionRepo.Upsert(sub); err != nil {
		return nil, fmt.Errorf("error saving submission: %w", err)
	}

	saved, err := s.submissionRepo.FindByTestAndStudent(testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("error reloading submission: %w", err)
	}
	log.Info().Uint("testID", testID).Uint("studentID", studentID).
		Bool("graded", saved.Graded).Msg("submission saved")
	return s.toStudentDTO(test, saved), nil
}

// UploadBubbleSheet records an uploaded physical answer sheet as a final
// submission with no extracted answers yet; grading happens later, manually
// or through a batch run.
func (s *submissionService) UploadBubbleSheet(testID, studentID uint, filePath, notes string) (*dto.SubmissionDTO, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"file_path":         filePath,
		"extracted_answers": map[string]string{},
		"notes":             notes,
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding sheet payload: %w", err)
	}
	return s.Submit(testID, studentID, payload, false)
}

// Grade is the teacher's direct override: it sets the score as given with no
// recomputation.
func (s *submissionService) Grade(submissionID uint, score float64, comment *string) (*dto.SubmissionDTO, error) {
	sub, err := s.findSubmission(submissionID)
	if err != nil {
		return nil, err
	}

	sub.Score = &score
	sub.Graded = true
	if comment != nil {
		sub.TeacherComment = comment
	}
	if err := s.submissionRepo.Save(sub); err != nil {
		return nil, fmt.Errorf("error grading submission %d: %w", submissionID, err)
	}
	return submissionToDTO(sub), nil
}

// SetManualGrades stores per-question fractional grades and recomputes the
// score as the weighted merge of automatic MCQ grading and the manual
// fractions.
func (s *submissionService) SetManualGrades(submissionID uint, grades map[string]float64, comment *string) (*dto.SubmissionDTO, error) {
	sub, err := s.findSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	test, err := s.findTest(sub.TestID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(model.ManualGrades{Grades: grades})
	if err != nil {
		return nil, fmt.Errorf("error encoding manual grades: %w", err)
	}
	sub.ManualGrades = datatypes.JSON(raw)

	score := s.scoring.ScoreWithManualOverrides(test, sub)
	sub.Score = &score
	sub.Graded = true
	if comment != nil {
		sub.TeacherComment = comment
	}
	if err := s.submissionRepo.Save(sub); err != nil {
		return nil, fmt.Errorf("error saving manual grades for submission %d: %w", submissionID, err)
	}
	return submissionToDTO(sub), nil
}

// UpdateDetectedAnswers corrects the detected answer map after the fact,
// preserving stored image-path metadata, and rescores against the key.
func (s *submissionService) UpdateDetectedAnswers(submissionID uint, answers map[string]string, comment *string) (*dto.SubmissionDTO, error) {
	sub, err := s.findSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	test, err := s.findTest(sub.TestID)
	if err != nil {
		return nil, err
	}

	merged, err := model.ReplaceAnswerMap(sub.Answers, answers)
	if err != nil {
		return nil, fmt.Errorf("error merging corrected answers: %w", err)
	}
	sub.Answers = datatypes.JSON(merged)

	score := s.scoring.Score(test.TestType, test.CorrectAnswers, sub.Answers)
	sub.Score = &score
	sub.Graded = true
	if comment != nil {
		sub.TeacherComment = comment
	}
	if err := s.submissionRepo.Save(sub); err != nil {
		return nil, fmt.Errorf("error saving corrected answers for submission %d: %w", submissionID, err)
	}
	return submissionToDTO(sub), nil
}

// Delete removes the row in its own transaction, then best-effort deletes
// any files the stored answers reference. The committed row deletion is the
// authoritative success signal; file errors are only logged.
func (s *submissionService) Delete(submissionID uint) error {
	sub, err := s.findSubmission(submissionID)
	if err != nil {
		return err
	}
	paths := model.FilePointers(sub.Answers)

	if err := s.submissionRepo.DeleteTransactional(submissionID); err != nil {
		return fmt.Errorf("error deleting submission %d: %w", submissionID, err)
	}

	cleanupFiles(paths)
	return nil
}

func (s *submissionService) GetTestSubmissions(testID uint) ([]dto.SubmissionDTO, error) {
	if _, err := s.findTest(testID); err != nil {
		return nil, err
	}
	subs, err := s.submissionRepo.FindAllByTest(testID)
	if err != nil {
		return nil, fmt.Errorf("error fetching submissions for test %d: %w", testID, err)
	}
	out := make([]dto.SubmissionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, *submissionToDTO(&subs[i]))
	}
	return out, nil
}

func (s *submissionService) findTest(testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}
	return test, nil
}

func (s *submissionService) findSubmission(id uint) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching submission %d: %w", id, err)
	}
	return sub, nil
}

// checkDuration rejects work on an already started submission once the
// test's duration has elapsed since the row was created. Tests without a
// duration never expire this way; the availability window still applies.
func checkDuration(test *model.Test, existing *model.Submission) error {
	if existing == nil || test.DurationMinutes == nil {
		return nil
	}
	allowed := time.Duration(*test.DurationMinutes) * time.Minute
	if time.Since(existing.CreatedAt) > allowed {
		return fmt.Errorf("%w: the %d-minute working time for this test has elapsed", ErrValidation, *test.DurationMinutes)
	}
	return nil
}

// toStudentDTO is the student-facing mapping: the score is withheld while
// the test's view policy does not allow the student to see it.
func (s *submissionService) toStudentDTO(test *model.Test, sub *model.Submission) *dto.SubmissionDTO {
	out := submissionToDTO(sub)
	if !test.ScoreVisibleInPortal() {
		out.Score = nil
	}
	return out
}

func submissionToDTO(sub *model.Submission) *dto.SubmissionDTO {
	var out dto.SubmissionDTO
	if err := copier.Copy(&out, sub); err != nil {
		log.Error().Err(err).Uint("submissionID", sub.ID).Msg("error copying submission to DTO")
	}
	out.Answers = json.RawMessage(sub.Answers)
	out.ManualGrades = json.RawMessage(sub.ManualGrades)
	if sub.Student.ID != 0 {
		out.StudentName = sub.Student.Name
	}
	return &out
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("failed to delete submission file")
		}
	}
}
