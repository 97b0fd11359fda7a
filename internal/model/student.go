package model

import (
	"time"

	"gorm.io/gorm"
)

type Student struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name" gorm:"not null"`
	Grade string `json:"grade" gorm:"not null;index"`
	// StudentGroup nil means the student belongs to no particular group and
	// only sees grade-wide tests.
	StudentGroup *string `json:"student_group,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
