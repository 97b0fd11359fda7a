package service

import (
	"math"
	"strings"

	"github.com/xX-youssuf-Xx/student-portal/internal/model"
)

// ScoringService computes 0-100 percentage scores for submissions. All
// methods are pure: they never touch storage and never mutate their inputs,
// so calling them twice with the same inputs yields the same result.
type ScoringService interface {
	// Score applies the comparison policy selected by testType to a stored
	// answer key and a student's submitted answers. A missing or wrongly
	// shaped key degenerates to 0 rather than failing.
	Score(testType string, correctAnswers, studentAnswers []byte) float64
	// ScoreWithManualOverrides merges automatic MCQ grading with
	// teacher-assigned fractional grades for OPEN questions. For non-MCQ
	// test types it delegates to Score.
	ScoreWithManualOverrides(test *model.Test, sub *model.Submission) float64
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

// round2Pct converts a fraction in [0,1] to a percentage rounded to two
// decimal places through a hundredths-of-a-percent intermediate.
func round2Pct(fraction float64) float64 {
	return math.Round(fraction*10000) / 100
}

func (s *scoringService) Score(testType string, correctAnswers, studentAnswers []byte) float64 {
	switch testType {
	case model.TestTypeMCQ:
		return scoreMCQ(correctAnswers, studentAnswers)
	case model.TestTypeBubbleSheet, model.TestTypePhysicalSheet:
		return scoreBubble(correctAnswers, studentAnswers)
	default:
		return 0
	}
}

func scoreMCQ(correctAnswers, studentAnswers []byte) float64 {
	key, err := model.ParseMCQKey(correctAnswers)
	if err != nil || len(key.Questions) == 0 {
		return 0
	}
	submitted, err := model.ParseMCQAnswers(studentAnswers)
	if err != nil {
		return 0
	}

	matches := 0
	for _, q := range key.Questions {
		if answerMatches(q.Correct, submitted.Answers[string(q.ID)]) {
			matches++
		}
	}
	return round2Pct(float64(matches) / float64(len(key.Questions)))
}

func scoreBubble(correctAnswers, studentAnswers []byte) float64 {
	key, err := model.ParseBubbleKey(correctAnswers)
	if err != nil || len(key.Answers) == 0 {
		return 0
	}
	submitted, err := model.ParseBubbleAnswers(studentAnswers)
	if err != nil {
		return 0
	}

	matches := 0
	for num, letter := range key.Answers {
		if answerMatches(letter, submitted.Answers[num]) {
			matches++
		}
	}
	return round2Pct(float64(matches) / float64(len(key.Answers)))
}

func (s *scoringService) ScoreWithManualOverrides(test *model.Test, sub *model.Submission) float64 {
	if test.TestType != model.TestTypeMCQ {
		return s.Score(test.TestType, test.CorrectAnswers, sub.Answers)
	}

	key, err := model.ParseMCQKey(test.CorrectAnswers)
	if err != nil || len(key.Questions) == 0 {
		return 0
	}

	var submitted model.MCQAnswers
	if len(sub.Answers) > 0 {
		submitted, _ = model.ParseMCQAnswers(sub.Answers)
	}
	var manual model.ManualGrades
	if len(sub.ManualGrades) > 0 {
		manual, _ = model.ParseManualGrades(sub.ManualGrades)
	}

	// Every question carries equal weight 1/N regardless of its type.
	sum := 0.0
	for _, q := range key.Questions {
		switch q.Type {
		case model.QuestionTypeOpen:
			sum += clamp01(manual.Grades[string(q.ID)])
		default:
			if answerMatches(q.Correct, submitted.Answers[string(q.ID)]) {
				sum += 1
			}
		}
	}
	return round2Pct(sum / float64(len(key.Questions)))
}

// answerMatches compares a key answer to a submitted answer as trimmed
// strings. An empty key value never matches so that an absent key entry and
// an absent submission cannot pair up as "correct".
func answerMatches(correct, submitted string) bool {
	correct = strings.TrimSpace(correct)
	if correct == "" {
		return false
	}
	return correct == strings.TrimSpace(submitted)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
