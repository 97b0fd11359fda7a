package dto

import "encoding/json"

// SubmitTestRequest carries a student's draft or final answers. The payload
// shape mirrors the test's answer schema and is validated by the scoring
// layer, not here.
type SubmitTestRequest struct {
	Answers json.RawMessage `json:"answers" binding:"required"`
	IsDraft bool            `json:"is_draft"`
}

// UploadBubbleSheetRequest accompanies the multipart sheet upload.
type UploadBubbleSheetRequest struct {
	Notes string `form:"notes"`
}

// GradeSubmissionRequest is a teacher's direct score override.
type GradeSubmissionRequest struct {
	Score   *float64 `json:"score" binding:"required,gte=0,lte=100"`
	Comment *string  `json:"comment"`
}

// ManualGradesRequest assigns fractional grades (0..1) per OPEN question.
type ManualGradesRequest struct {
	Grades  map[string]float64 `json:"grades" binding:"required"`
	Comment *string            `json:"comment"`
}

// UpdateAnswersRequest corrects detected bubble answers after the fact.
type UpdateAnswersRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
	Comment *string           `json:"comment"`
}

// TestImageRequest is one ordered question-page image.
type TestImageRequest struct {
	ImagePath string `json:"image_path" binding:"required"`
}

// CreateTestRequest is the admin payload for creating a test. CorrectAnswers
// must match the schema selected by TestType.
type CreateTestRequest struct {
	Title            string             `json:"title" binding:"required"`
	Grade            string             `json:"grade" binding:"required"`
	StudentGroup     *string            `json:"student_group"`
	TestType         string             `json:"test_type" binding:"required,oneof=MCQ BUBBLE_SHEET PHYSICAL_SHEET"`
	StartTime        string             `json:"start_time" binding:"required"`
	EndTime          string             `json:"end_time" binding:"required"`
	DurationMinutes  *int               `json:"duration_minutes"`
	CorrectAnswers   json.RawMessage    `json:"correct_answers"`
	ViewType         string             `json:"view_type" binding:"omitempty,oneof=IMMEDIATE TEACHER_CONTROLLED"`
	ViewPermission   bool               `json:"view_permission"`
	ShowGradeOutside bool               `json:"show_grade_outside"`
	Images           []TestImageRequest `json:"images"`
}

// UpdateTestRequest mirrors CreateTestRequest; absent fields keep their
// stored values.
type UpdateTestRequest struct {
	Title            *string         `json:"title"`
	Grade            *string         `json:"grade"`
	StudentGroup     *string         `json:"student_group"`
	StartTime        *string         `json:"start_time"`
	EndTime          *string         `json:"end_time"`
	DurationMinutes  *int            `json:"duration_minutes"`
	CorrectAnswers   json.RawMessage `json:"correct_answers"`
	ViewType         *string         `json:"view_type" binding:"omitempty,oneof=IMMEDIATE TEACHER_CONTROLLED"`
	ViewPermission   *bool           `json:"view_permission"`
	ShowGradeOutside *bool           `json:"show_grade_outside"`
}
