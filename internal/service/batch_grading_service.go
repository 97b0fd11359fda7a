package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"github.com/xX-youssuf-Xx/student-portal/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxBatchQuestions bounds the question count a detection run accepts.
const MaxBatchQuestions = 55

// BatchFile is one uploaded sheet image, already saved to disk.
type BatchFile struct {
	Name string
	Path string
}

// BatchRequest describes one batch grading run over scanned physical sheets.
type BatchRequest struct {
	TestID     uint
	NQuestions int
	// StudentIDs is the ordered list used for positional matching.
	StudentIDs []uint
	Files      []BatchFile
	// NamesAsIDs requires a strict bijection between the digits in each file
	// name and the provided student ids.
	NamesAsIDs bool
}

// BatchGradingService matches uploaded sheet images to students, runs the
// external detector per match and upserts the graded submissions. One
// student's failure never aborts the rest of the batch; partial success is
// the normal outcome.
type BatchGradingService interface {
	GradePhysicalBatch(ctx context.Context, req BatchRequest) (*dto.BatchResultDTO, error)
}

type batchGradingService struct {
	testRepo       repository.TestRepository
	studentRepo    repository.StudentRepository
	submissionRepo repository.SubmissionRepository
	scoring        ScoringService
	detector       DetectorService
	cfg            *config.Config
}

func NewBatchGradingService(
	testRepo repository.TestRepository,
	studentRepo repository.StudentRepository,
	submissionRepo repository.SubmissionRepository,
	scoring ScoringService,
	detector DetectorService,
	cfg *config.Config,
) BatchGradingService {
	return &batchGradingService{
		testRepo:       testRepo,
		studentRepo:    studentRepo,
		submissionRepo: submissionRepo,
		scoring:        scoring,
		detector:       detector,
		cfg:            cfg,
	}
}

var digitsRe = regexp.MustCompile(`\d+`)

func (s *batchGradingService) GradePhysicalBatch(ctx context.Context, req BatchRequest) (*dto.BatchResultDTO, error) {
	if req.NQuestions < 1 || req.NQuestions > MaxBatchQuestions {
		return nil, fmt.Errorf("%w: n_questions must be between 1 and %d, got %d", ErrValidation, MaxBatchQuestions, req.NQuestions)
	}
	if len(req.StudentIDs) == 0 {
		return nil, fmt.Errorf("%w: empty student list", ErrValidation)
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no sheet images uploaded", ErrValidation)
	}

	test, err := s.testRepo.FindByID(req.TestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", req.TestID, err)
	}
	if test.TestType != model.TestTypePhysicalSheet {
		return nil, fmt.Errorf("%w: test %d is %s, batch grading only applies to %s tests",
			ErrValidation, req.TestID, test.TestType, model.TestTypePhysicalSheet)
	}

	// Every requested id must name a real student before any sheet is
	// processed; a typo in the list aborts the batch rather than writing
	// submissions for students who do not exist.
	students, err := s.studentRepo.FindByIDs(req.StudentIDs)
	if err != nil {
		return nil, fmt.Errorf("error fetching students: %w", err)
	}
	known := make(map[uint]bool, len(students))
	for i := range students {
		known[students[i].ID] = true
	}
	var unknown []string
	for _, id := range req.StudentIDs {
		if !known[id] {
			unknown = append(unknown, strconv.FormatUint(uint64(id), 10))
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown student ids %v", ErrValidation, unknown)
	}

	pairs, err := matchFilesToStudents(req.StudentIDs, req.Files, req.NamesAsIDs)
	if err != nil {
		return nil, err
	}

	// Detector runs strictly one at a time: output directories stay
	// deterministic and the external process never competes with itself for
	// CPU or scratch space.
	result := &dto.BatchResultDTO{TestID: req.TestID}
	for _, pair := range pairs {
		result.Results = append(result.Results, s.gradeOne(ctx, test, req.NQuestions, pair))
	}
	return result, nil
}

type studentFilePair struct {
	studentID uint
	file      *BatchFile
}

// matchFilesToStudents pairs each student with a sheet image. In strict mode
// the digits embedded in each file name must map one-to-one onto the student
// ids and any mismatch aborts the whole batch before processing. Otherwise
// matching is positional: files sorted by embedded digit value when present,
// upload order when not.
func matchFilesToStudents(studentIDs []uint, files []BatchFile, namesAsIDs bool) ([]studentFilePair, error) {
	if namesAsIDs {
		byID := make(map[uint]*BatchFile, len(files))
		var extra []string
		for i := range files {
			f := &files[i]
			digits := digitsRe.FindString(f.Name)
			id, err := strconv.ParseUint(digits, 10, 32)
			if digits == "" || err != nil {
				extra = append(extra, f.Name)
				continue
			}
			if _, dup := byID[uint(id)]; dup {
				extra = append(extra, f.Name)
				continue
			}
			byID[uint(id)] = f
		}

		wanted := make(map[uint]bool, len(studentIDs))
		var missing []string
		pairs := make([]studentFilePair, 0, len(studentIDs))
		for _, id := range studentIDs {
			wanted[id] = true
			f, ok := byID[id]
			if !ok {
				missing = append(missing, strconv.FormatUint(uint64(id), 10))
				continue
			}
			pairs = append(pairs, studentFilePair{studentID: id, file: f})
		}
		for id, f := range byID {
			if !wanted[id] {
				extra = append(extra, f.Name)
			}
		}
		if len(missing) > 0 || len(extra) > 0 {
			sort.Strings(missing)
			sort.Strings(extra)
			return nil, fmt.Errorf("%w: file/student mismatch: missing files for student ids %v, unmatched files %v",
				ErrValidation, missing, extra)
		}
		return pairs, nil
	}

	ordered := make([]BatchFile, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		di := digitsRe.FindString(ordered[i].Name)
		dj := digitsRe.FindString(ordered[j].Name)
		if di == "" || dj == "" {
			return false
		}
		vi, erri := strconv.ParseUint(di, 10, 64)
		vj, errj := strconv.ParseUint(dj, 10, 64)
		if erri != nil || errj != nil {
			return false
		}
		return vi < vj
	})

	pairs := make([]studentFilePair, 0, len(studentIDs))
	for i, id := range studentIDs {
		p := studentFilePair{studentID: id}
		if i < len(ordered) {
			p.file = &ordered[i]
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// gradeOne processes a single (student, file) pair. Failures are recorded in
// the returned result entry, never propagated.
func (s *batchGradingService) gradeOne(ctx context.Context, test *model.Test, nQuestions int, pair studentFilePair) dto.BatchStudentResultDTO {
	res := dto.BatchStudentResultDTO{StudentID: pair.studentID}

	if pair.file == nil {
		res.Error = "no sheet image matched to this student"
		s.recordAttempt(test, pair.studentID, nil, "", &res)
		return res
	}

	outDir := filepath.Join(s.cfg.Upload.Dir, "batch", fmt.Sprintf("%d-%d", test.ID, pair.studentID))
	res.OutputDir = outDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Error = fmt.Sprintf("failed to create output directory: %v", err)
		s.recordAttempt(test, pair.studentID, nil, outDir, &res)
		return res
	}

	detected, err := s.detector.Detect(ctx, pair.file.Path, nQuestions, test.ID, pair.studentID, outDir)
	if err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Uint("studentID", pair.studentID).
			Msg("batch grading: detection failed for student")
		res.Error = fmt.Sprintf("detection failed: %v", err)
		s.recordAttempt(test, pair.studentID, nil, outDir, &res)
		return res
	}

	s.recordAttempt(test, pair.studentID, detected, outDir, &res)
	return res
}

// recordAttempt upserts the student's submission for the batch run. A failed
// detection still writes a graded placeholder row, preserving any earlier
// score, so the administrator can see an attempt exists.
func (s *batchGradingService) recordAttempt(test *model.Test, studentID uint, detected map[string]string, outDir string, res *dto.BatchStudentResultDTO) {
	sub := &model.Submission{
		TestID:    test.ID,
		StudentID: studentID,
		Graded:    true,
	}

	existing, err := s.submissionRepo.FindByTestAndStudent(test.ID, studentID)
	switch {
	case err == nil:
		sub.Score = existing.Score
		sub.Answers = existing.Answers
		sub.ManualGrades = existing.ManualGrades
		sub.TeacherComment = existing.TeacherComment
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub.Answers = datatypes.JSON([]byte(`{"answers":{}}`))
	default:
		res.Error = appendError(res.Error, fmt.Sprintf("failed to load existing submission: %v", err))
		return
	}

	if detected != nil {
		bubbleImage := filepath.Join(outDir, fmt.Sprintf("%d-%d.jpg", test.ID, studentID))
		payload, merr := json.Marshal(map[string]interface{}{
			"answers":           detected,
			"bubble_image_path": bubbleImage,
		})
		if merr != nil {
			res.Error = appendError(res.Error, fmt.Sprintf("failed to encode detected answers: %v", merr))
			return
		}
		sub.Answers = datatypes.JSON(payload)

		// Audit snapshot of exactly what the detector reported.
		snapshot, _ := json.Marshal(map[string]interface{}{"grades": detected})
		sub.ManualGrades = datatypes.JSON(snapshot)

		score := s.scoring.Score(model.TestTypePhysicalSheet, test.CorrectAnswers, sub.Answers)
		sub.Score = &score
	}

	if err := s.submissionRepo.Upsert(sub); err != nil {
		res.Error = appendError(res.Error, fmt.Sprintf("failed to save submission: %v", err))
		return
	}

	saved, err := s.submissionRepo.FindByTestAndStudent(test.ID, studentID)
	if err != nil {
		res.Error = appendError(res.Error, fmt.Sprintf("failed to reload submission: %v", err))
		return
	}
	res.SubmissionID = saved.ID
	if detected != nil {
		res.Score = saved.Score
	}
}

func appendError(existing, msg string) string {
	if existing == "" {
		return msg
	}
	return existing + "; " + msg
}
