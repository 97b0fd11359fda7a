package dto

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// TestImageDTO is one ordered question-page image.
type TestImageDTO struct {
	ID           uint   `json:"id"`
	ImagePath    string `json:"image_path"`
	DisplayOrder int    `json:"display_order"`
}

// TestDTO is the administrator-facing view of a test, answer key included.
type TestDTO struct {
	ID               uint            `json:"id"`
	Title            string          `json:"title"`
	Grade            string          `json:"grade"`
	StudentGroup     *string         `json:"student_group,omitempty"`
	TestType         string          `json:"test_type"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	DurationMinutes  *int            `json:"duration_minutes,omitempty"`
	CorrectAnswers   json.RawMessage `json:"correct_answers,omitempty"`
	ViewType         string          `json:"view_type"`
	ViewPermission   bool            `json:"view_permission"`
	ShowGradeOutside bool            `json:"show_grade_outside"`
	Images           []TestImageDTO  `json:"images,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AvailableTestDTO is the student-facing listing entry: no answer key, plus
// whether this student already has a submission.
type AvailableTestDTO struct {
	ID              uint    `json:"id"`
	Title           string  `json:"title"`
	Grade           string  `json:"grade"`
	StudentGroup    *string `json:"student_group,omitempty"`
	TestType        string  `json:"test_type"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	ViewType        string  `json:"view_type"`
	IsSubmitted     bool    `json:"is_submitted"`
}

// SanitizedQuestionDTO is an MCQ key question with the correct field
// stripped.
type SanitizedQuestionDTO struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// TestQuestionsDTO is the student-facing question payload for one test.
type TestQuestionsDTO struct {
	ID              uint                   `json:"id"`
	Title           string                 `json:"title"`
	TestType        string                 `json:"test_type"`
	StartTime       string                 `json:"start_time"`
	EndTime         string                 `json:"end_time"`
	DurationMinutes *int                   `json:"duration_minutes,omitempty"`
	Questions       []SanitizedQuestionDTO `json:"questions,omitempty"`
	Images          []TestImageDTO         `json:"images,omitempty"`
}

// SubmissionDTO is the full view of one submission row.
type SubmissionDTO struct {
	ID             uint            `json:"id"`
	TestID         uint            `json:"test_id"`
	StudentID      uint            `json:"student_id"`
	StudentName    string          `json:"student_name,omitempty"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	ManualGrades   json.RawMessage `json:"manual_grades,omitempty"`
	Score          *float64        `json:"score,omitempty"`
	Graded         bool            `json:"graded"`
	TeacherComment *string         `json:"teacher_comment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RankDTO is the competition-rank result for one student on one test.
// Rank is -1 when the student has no scored submission; Total always counts
// every submission with a non-null score.
type RankDTO struct {
	Rank  int      `json:"rank"`
	Total int      `json:"total"`
	Score *float64 `json:"score,omitempty"`
}

// BatchStudentResultDTO is the per-student outcome of a batch grading run.
// Score is nil when detection failed for that student.
type BatchStudentResultDTO struct {
	StudentID    uint     `json:"student_id"`
	SubmissionID uint     `json:"submission_id,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	OutputDir    string   `json:"output_dir,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// BatchResultDTO is the summary a batch run always returns; partial success
// is the normal outcome.
type BatchResultDTO struct {
	TestID  uint                    `json:"test_id"`
	Results []BatchStudentResultDTO `json:"results"`
}
