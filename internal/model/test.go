package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Test types select the scoring policy applied on submission.
const (
	TestTypeMCQ           = "MCQ"
	TestTypeBubbleSheet   = "BUBBLE_SHEET"
	TestTypePhysicalSheet = "PHYSICAL_SHEET"
)

// View types control when a graded score becomes visible to the student.
const (
	ViewTypeImmediate         = "IMMEDIATE"
	ViewTypeTeacherControlled = "TEACHER_CONTROLLED"
)

// WallClockLayout is the layout test windows are stored in. The strings carry
// no offset; they are interpreted under the configured fixed zone.
const WallClockLayout = "2006-01-02 15:04:05"

type Test struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Title string `json:"title" gorm:"not null"`
	Grade string `json:"grade" gorm:"not null;index"`
	// StudentGroup nil means the test is visible to the whole grade.
	StudentGroup *string `json:"student_group,omitempty" gorm:"index"`
	TestType     string  `json:"test_type" gorm:"not null"`

	// StartTime and EndTime are wall-clock strings (WallClockLayout) with no
	// embedded timezone.
	StartTime       string `json:"start_time" gorm:"not null"`
	EndTime         string `json:"end_time" gorm:"not null"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`

	// CorrectAnswers holds the answer key; its shape depends on TestType and
	// it is never sent to students except through the sanitized question
	// payload.
	CorrectAnswers datatypes.JSON `json:"-" gorm:"type:jsonb"`

	ViewType         string `json:"view_type" gorm:"not null;default:'IMMEDIATE'"`
	ViewPermission   bool   `json:"view_permission" gorm:"default:false"`
	ShowGradeOutside bool   `json:"show_grade_outside" gorm:"default:false"`

	Images []TestImage `json:"images,omitempty" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AutoGradable reports whether a score can be computed at submit time purely
// from the stored answer key.
func (t *Test) AutoGradable() bool {
	return t.TestType == TestTypeMCQ || t.TestType == TestTypeBubbleSheet
}

// ScoreVisibleInPortal reports whether the student may see their own score
// inside the portal. TEACHER_CONTROLLED tests require view_permission.
func (t *Test) ScoreVisibleInPortal() bool {
	return t.ViewType == ViewTypeImmediate || t.ViewPermission
}

// ScoreVisibleOutside reports whether the score may surface outside the
// review flow, the rank listing in particular. TEACHER_CONTROLLED tests
// require show_grade_outside.
func (t *Test) ScoreVisibleOutside() bool {
	return t.ViewType == ViewTypeImmediate || t.ShowGradeOutside
}

// Window parses the test's start and end wall-clock strings in loc.
func (t *Test) Window(loc *time.Location) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(WallClockLayout, t.StartTime, loc)
	if err != nil {
		return
	}
	end, err = time.ParseInLocation(WallClockLayout, t.EndTime, loc)
	return
}
