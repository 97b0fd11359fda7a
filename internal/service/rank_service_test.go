package service

import (
	"errors"
	"testing"

	"github.com/xX-youssuf-Xx/student-portal/internal/model"
)

func immediateTest(id uint) *model.Test {
	return &model.Test{ID: id, TestType: model.TestTypeMCQ, ViewType: model.ViewTypeImmediate}
}

func TestGetStudentRank_CompetitionRanking(t *testing.T) {
	repo := newFakeSubmissionRepo()
	scores := map[uint]float64{1: 90, 2: 90, 3: 80, 4: 70}
	for studentID, score := range scores {
		s := score
		repo.insert(&model.Submission{TestID: 10, StudentID: studentID, Score: &s, Graded: true})
	}
	// Ungraded rows never participate in ranking.
	repo.insert(&model.Submission{TestID: 10, StudentID: 5})

	tests := []struct {
		name      string
		studentID uint
		wantRank  int
		wantScore *float64
	}{
		{name: "tied top shares rank 1", studentID: 1, wantRank: 1, wantScore: floatPtr(90)},
		{name: "second tied top shares rank 1", studentID: 2, wantRank: 1, wantScore: floatPtr(90)},
		{name: "next distinct score resumes at position 3", studentID: 3, wantRank: 3, wantScore: floatPtr(80)},
		{name: "lowest score ranks last", studentID: 4, wantRank: 4, wantScore: floatPtr(70)},
		{name: "unscored student gets sentinel rank", studentID: 5, wantRank: -1, wantScore: nil},
		{name: "unknown student gets sentinel rank", studentID: 99, wantRank: -1, wantScore: nil},
	}

	svc := NewRankService(newFakeTestRepo(immediateTest(10)), repo)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetStudentRank(10, tc.studentID)
			if err != nil {
				t.Fatalf("GetStudentRank() error: %v", err)
			}
			if got.Rank != tc.wantRank {
				t.Errorf("Rank = %d, want %d", got.Rank, tc.wantRank)
			}
			if got.Total != 4 {
				t.Errorf("Total = %d, want 4", got.Total)
			}
			switch {
			case tc.wantScore == nil && got.Score != nil:
				t.Errorf("Score = %v, want nil", *got.Score)
			case tc.wantScore != nil && (got.Score == nil || *got.Score != *tc.wantScore):
				t.Errorf("Score = %v, want %v", got.Score, *tc.wantScore)
			}
		})
	}
}

func TestGetStudentRank_AllTied(t *testing.T) {
	repo := newFakeSubmissionRepo()
	for _, studentID := range []uint{1, 2, 3} {
		repo.insert(&model.Submission{TestID: 7, StudentID: studentID, Score: floatPtr(55.5), Graded: true})
	}

	svc := NewRankService(newFakeTestRepo(immediateTest(7)), repo)
	for _, studentID := range []uint{1, 2, 3} {
		got, err := svc.GetStudentRank(7, studentID)
		if err != nil {
			t.Fatalf("GetStudentRank(%d) error: %v", studentID, err)
		}
		if got.Rank != 1 || got.Total != 3 {
			t.Errorf("student %d: rank %d total %d, want rank 1 total 3", studentID, got.Rank, got.Total)
		}
	}
}

func TestGetStudentRank_NoScoredSubmissions(t *testing.T) {
	svc := NewRankService(newFakeTestRepo(immediateTest(3)), newFakeSubmissionRepo())
	got, err := svc.GetStudentRank(3, 1)
	if err != nil {
		t.Fatalf("GetStudentRank() error: %v", err)
	}
	if got.Rank != -1 || got.Total != 0 {
		t.Errorf("rank %d total %d, want rank -1 total 0", got.Rank, got.Total)
	}
}

func TestGetStudentRank_UnknownTest(t *testing.T) {
	svc := NewRankService(newFakeTestRepo(), newFakeSubmissionRepo())
	if _, err := svc.GetStudentRank(99, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStudentRank(unknown test) error = %v, want ErrNotFound", err)
	}
}

func TestGetStudentRank_HiddenUntilGradesReleased(t *testing.T) {
	test := &model.Test{ID: 12, TestType: model.TestTypeMCQ, ViewType: model.ViewTypeTeacherControlled}
	repo := newFakeSubmissionRepo()
	repo.insert(&model.Submission{TestID: 12, StudentID: 1, Score: floatPtr(90), Graded: true})
	repo.insert(&model.Submission{TestID: 12, StudentID: 2, Score: floatPtr(80), Graded: true})

	svc := NewRankService(newFakeTestRepo(test), repo)
	if _, err := svc.GetStudentRank(12, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("rank before release error = %v, want ErrNotFound", err)
	}

	test.ShowGradeOutside = true
	got, err := svc.GetStudentRank(12, 2)
	if err != nil {
		t.Fatalf("rank after release error: %v", err)
	}
	if got.Rank != 2 || got.Total != 2 {
		t.Errorf("rank %d total %d, want rank 2 total 2", got.Rank, got.Total)
	}
}
