package model

import "time"

// TestImage is an ordered question-page asset attached to a test. It is only
// read for question rendering and never participates in scoring.
type TestImage struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	TestID       uint   `json:"test_id" gorm:"not null;index"`
	ImagePath    string `json:"image_path" gorm:"not null"`
	DisplayOrder int    `json:"display_order" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
