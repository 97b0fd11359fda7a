package service

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
	"github.com/xX-youssuf-Xx/student-portal/internal/repository"
	"gorm.io/gorm"
)

// RankService computes competition-style rank among all scored submissions
// for a test: tied scores share the lower rank number and the next distinct
// score resumes at the 1-based position count. This is the single canonical
// ranking implementation; nothing else in the codebase re-derives ranks.
type RankService interface {
	GetStudentRank(testID, studentID uint) (*dto.RankDTO, error)
}

type rankService struct {
	testRepo       repository.TestRepository
	submissionRepo repository.SubmissionRepository
}

func NewRankService(testRepo repository.TestRepository, submissionRepo repository.SubmissionRepository) RankService {
	return &rankService{testRepo: testRepo, submissionRepo: submissionRepo}
}

func (s *rankService) GetStudentRank(testID, studentID uint) (*dto.RankDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}
	// Rankings expose every participant's standing, so a test whose grades are
	// not released outside the review flow has no rank listing at all.
	if !test.ScoreVisibleOutside() {
		return nil, ErrNotFound
	}

	scored, err := s.submissionRepo.FindScoredByTest(testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("GetStudentRank: failed to load scored submissions")
		return nil, fmt.Errorf("error fetching submissions for test %d: %w", testID, err)
	}

	result := &dto.RankDTO{Rank: -1, Total: len(scored)}
	if len(scored) == 0 {
		return result, nil
	}

	// scored is sorted score descending; pos is the 1-based walk position and
	// currentRank only advances when the score differs from the previous one,
	// so scores [90, 90, 80, 70] rank [1, 1, 3, 4].
	currentRank := 1
	var prevScore float64
	for pos, sub := range scored {
		score := *sub.Score
		if pos == 0 {
			prevScore = score
		} else if score != prevScore {
			currentRank = pos + 1
			prevScore = score
		}
		if sub.StudentID == studentID {
			result.Rank = currentRank
			result.Score = sub.Score
			return result, nil
		}
	}
	return result, nil
}
