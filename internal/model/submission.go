package model

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is the one-per-(test, student) record of answers, score and
// grading state. The pairing is enforced by the composite unique index, not
// just the application-level lookup.
type Submission struct {
	ID        uint `gorm:"primarykey" json:"id"`
	TestID    uint `json:"test_id" gorm:"not null;uniqueIndex:idx_submissions_test_student"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex:idx_submissions_test_student"`

	Test    Test    `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`

	// Answers mirrors the test's answer schema; for PHYSICAL_SHEET it also
	// carries file_path / bubble_image_path pointers.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	// ManualGrades is {"grades": {questionID: fraction 0..1}} assigned by a
	// teacher for OPEN questions.
	ManualGrades datatypes.JSON `json:"manual_grades,omitempty" gorm:"type:jsonb"`

	Score          *float64 `json:"score,omitempty"`
	Graded         bool     `json:"graded" gorm:"not null;default:false"`
	TeacherComment *string  `json:"teacher_comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
