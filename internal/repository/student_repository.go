package repository

import (
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"gorm.io/gorm"
)

type StudentRepository interface {
	FindByID(id uint) (*model.Student, error)
	FindByIDs(ids []uint) ([]model.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) FindByID(id uint) (*model.Student, error) {
	var student model.Student
	if err := r.db.First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) FindByIDs(ids []uint) ([]model.Student, error) {
	var students []model.Student
	if err := r.db.Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}
