package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
)

func physicalTest() *model.Test {
	return &model.Test{
		ID:             20,
		TestType:       model.TestTypePhysicalSheet,
		CorrectAnswers: jsonb(`{"answers":{"1":"A","2":"B"}}`),
	}
}

func newBatchFixture(t *testing.T, test *model.Test, detector *fakeDetector) (BatchGradingService, *fakeSubmissionRepo) {
	t.Helper()
	subRepo := newFakeSubmissionRepo()
	studentRepo := newFakeStudentRepo(
		&model.Student{ID: 7, Name: "Nour"},
		&model.Student{ID: 8, Name: "Omar"},
		&model.Student{ID: 9, Name: "Salma"},
		&model.Student{ID: 101, Name: "Youssef"},
		&model.Student{ID: 102, Name: "Mariam"},
		&model.Student{ID: 103, Name: "Hana"},
	)
	cfg := &config.Config{Upload: config.Upload{Dir: t.TempDir()}}
	svc := NewBatchGradingService(newFakeTestRepo(test), studentRepo, subRepo, NewScoringService(), detector, cfg)
	return svc, subRepo
}

func TestGradePhysicalBatch_RequestValidation(t *testing.T) {
	detector := &fakeDetector{}
	svc, _ := newBatchFixture(t, physicalTest(), detector)

	valid := BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101},
		Files:      []BatchFile{{Name: "101.jpg", Path: "/tmp/101.jpg"}},
	}

	tests := []struct {
		name    string
		mutate  func(r *BatchRequest)
		wantErr error
	}{
		{name: "n_questions below range", mutate: func(r *BatchRequest) { r.NQuestions = 0 }, wantErr: ErrValidation},
		{name: "n_questions above range", mutate: func(r *BatchRequest) { r.NQuestions = MaxBatchQuestions + 1 }, wantErr: ErrValidation},
		{name: "no students", mutate: func(r *BatchRequest) { r.StudentIDs = nil }, wantErr: ErrValidation},
		{name: "no files", mutate: func(r *BatchRequest) { r.Files = nil }, wantErr: ErrValidation},
		{name: "unknown test", mutate: func(r *BatchRequest) { r.TestID = 99 }, wantErr: ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			if _, err := svc.GradePhysicalBatch(context.Background(), req); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
	if len(detector.calls) != 0 {
		t.Errorf("detector ran %d times on invalid requests", len(detector.calls))
	}
}

func TestGradePhysicalBatch_RejectsUnknownStudents(t *testing.T) {
	detector := &fakeDetector{}
	svc, repo := newBatchFixture(t, physicalTest(), detector)

	_, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101, 999},
		Files: []BatchFile{
			{Name: "101.jpg"},
			{Name: "999.jpg"},
		},
		NamesAsIDs: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "999") {
		t.Errorf("error does not name the unknown student: %v", err)
	}
	if len(detector.calls) != 0 {
		t.Errorf("detector ran despite unknown student")
	}
	if len(repo.rows) != 0 {
		t.Errorf("submissions written despite unknown student")
	}
}

func TestGradePhysicalBatch_RejectsNonPhysicalTest(t *testing.T) {
	test := &model.Test{ID: 20, TestType: model.TestTypeMCQ}
	svc, _ := newBatchFixture(t, test, &fakeDetector{})

	_, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101},
		Files:      []BatchFile{{Name: "101.jpg"}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestGradePhysicalBatch_StrictMismatchAbortsBeforeProcessing(t *testing.T) {
	detector := &fakeDetector{}
	svc, repo := newBatchFixture(t, physicalTest(), detector)

	_, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101, 102, 103},
		Files: []BatchFile{
			{Name: "101.jpg"},
			{Name: "102.jpg"},
			{Name: "104.jpg"},
		},
		NamesAsIDs: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "103") || !strings.Contains(err.Error(), "104.jpg") {
		t.Errorf("error does not name the mismatch: %v", err)
	}
	if len(detector.calls) != 0 {
		t.Errorf("detector ran despite mismatch")
	}
	if len(repo.rows) != 0 {
		t.Errorf("submissions written despite mismatch")
	}
}

func TestGradePhysicalBatch_StrictRejectsUnparsableAndDuplicateNames(t *testing.T) {
	svc, _ := newBatchFixture(t, physicalTest(), &fakeDetector{})

	_, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101},
		Files: []BatchFile{
			{Name: "101.jpg"},
			{Name: "scan.jpg"},
			{Name: "101-copy.jpg"},
		},
		NamesAsIDs: true,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "scan.jpg") || !strings.Contains(err.Error(), "101-copy.jpg") {
		t.Errorf("error does not name the extra files: %v", err)
	}
}

func TestGradePhysicalBatch_StrictMatchesByEmbeddedID(t *testing.T) {
	detector := &fakeDetector{results: map[uint]map[string]string{
		101: {"1": "A", "2": "B"},
		102: {"1": "A", "2": "C"},
	}}
	svc, repo := newBatchFixture(t, physicalTest(), detector)

	got, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101, 102},
		Files: []BatchFile{
			{Name: "sheet_102.jpg", Path: "/tmp/sheet_102.jpg"},
			{Name: "sheet_101.jpg", Path: "/tmp/sheet_101.jpg"},
		},
		NamesAsIDs: true,
	})
	if err != nil {
		t.Fatalf("GradePhysicalBatch() error: %v", err)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(got.Results))
	}

	byStudent := map[uint]float64{}
	for _, res := range got.Results {
		if res.Error != "" {
			t.Errorf("student %d: unexpected error %q", res.StudentID, res.Error)
		}
		if res.Score == nil {
			t.Fatalf("student %d: nil score", res.StudentID)
		}
		byStudent[res.StudentID] = *res.Score
	}
	if byStudent[101] != 100 || byStudent[102] != 50 {
		t.Errorf("scores = %v, want 101:100 102:50", byStudent)
	}
	if len(repo.rows) != 2 {
		t.Errorf("row count = %d, want 2", len(repo.rows))
	}
}

func TestGradePhysicalBatch_PositionalMatchSortsByDigits(t *testing.T) {
	detector := &fakeDetector{results: map[uint]map[string]string{
		7: {"1": "A", "2": "B"},
		8: {"1": "A", "2": "B"},
	}}
	svc, _ := newBatchFixture(t, physicalTest(), detector)

	got, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{7, 8, 9},
		Files: []BatchFile{
			{Name: "scan_2.jpg", Path: "/tmp/scan_2.jpg"},
			{Name: "scan_1.jpg", Path: "/tmp/scan_1.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("GradePhysicalBatch() error: %v", err)
	}
	if len(got.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(got.Results))
	}

	// Files sort by embedded digit value, so scan_1 pairs with the first
	// student and scan_2 with the second; the third student has no sheet.
	if got.Results[0].StudentID != 7 || got.Results[0].Score == nil {
		t.Errorf("first result = %+v", got.Results[0])
	}
	if got.Results[1].StudentID != 8 || got.Results[1].Score == nil {
		t.Errorf("second result = %+v", got.Results[1])
	}
	last := got.Results[2]
	if last.StudentID != 9 || last.Score != nil || last.Error == "" {
		t.Errorf("unmatched student result = %+v", last)
	}
	// An unmatched student still gets a placeholder row an administrator
	// can see.
	if last.SubmissionID == 0 {
		t.Errorf("unmatched student has no submission row")
	}
}

func TestGradePhysicalBatch_PartialFailure(t *testing.T) {
	detector := &fakeDetector{
		results: map[uint]map[string]string{101: {"1": "A", "2": "B"}},
		errs:    map[uint]error{102: fmt.Errorf("output missing")},
	}
	svc, repo := newBatchFixture(t, physicalTest(), detector)

	got, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101, 102},
		Files: []BatchFile{
			{Name: "101.jpg", Path: "/tmp/101.jpg"},
			{Name: "102.jpg", Path: "/tmp/102.jpg"},
		},
		NamesAsIDs: true,
	})
	if err != nil {
		t.Fatalf("GradePhysicalBatch() error: %v", err)
	}

	for _, res := range got.Results {
		switch res.StudentID {
		case 101:
			if res.Error != "" || res.Score == nil || *res.Score != 100 {
				t.Errorf("healthy student result = %+v", res)
			}
		case 102:
			if res.Error == "" || res.Score != nil {
				t.Errorf("failed student result = %+v", res)
			}
		default:
			t.Errorf("unexpected student %d", res.StudentID)
		}
	}

	// The failed student's placeholder row is graded with no score.
	row, err := repo.FindByTestAndStudent(20, 102)
	if err != nil {
		t.Fatalf("placeholder row missing: %v", err)
	}
	if !row.Graded || row.Score != nil {
		t.Errorf("placeholder row = graded %v score %v", row.Graded, row.Score)
	}
}

func TestGradePhysicalBatch_FailurePreservesEarlierScore(t *testing.T) {
	detector := &fakeDetector{errs: map[uint]error{101: fmt.Errorf("output missing")}}
	svc, repo := newBatchFixture(t, physicalTest(), detector)

	repo.insert(&model.Submission{
		TestID:    20,
		StudentID: 101,
		Score:     floatPtr(60),
		Graded:    true,
		Answers:   jsonb(`{"answers":{"1":"A"}}`),
	})

	got, err := svc.GradePhysicalBatch(context.Background(), BatchRequest{
		TestID:     20,
		NQuestions: 2,
		StudentIDs: []uint{101},
		Files:      []BatchFile{{Name: "101.jpg", Path: "/tmp/101.jpg"}},
		NamesAsIDs: true,
	})
	if err != nil {
		t.Fatalf("GradePhysicalBatch() error: %v", err)
	}
	if got.Results[0].Error == "" {
		t.Errorf("expected detection error in result")
	}

	row, err := repo.FindByTestAndStudent(20, 101)
	if err != nil {
		t.Fatal(err)
	}
	if row.Score == nil || *row.Score != 60 {
		t.Errorf("earlier score lost: %v", row.Score)
	}
}
