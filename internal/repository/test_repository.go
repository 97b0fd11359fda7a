package repository

import (
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	Update(test *model.Test) error
	Delete(id uint) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithImages(id uint) (*model.Test, error)
	FindAll() ([]model.Test, error)
	FindByGradeAndGroup(grade string, group *string) ([]model.Test, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// GORM creates associated images when test.Images is populated.
	return r.db.Create(test).Error
}

func (r *testRepository) Update(test *model.Test) error {
	return r.db.Save(test).Error
}

func (r *testRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.TestImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Test{}, id).Error
	})
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithImages(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("test_images.display_order ASC")
	}).First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindAll() ([]model.Test, error) {
	var tests []model.Test
	if err := r.db.Order("created_at desc").Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

// FindByGradeAndGroup returns tests for a grade that are either grade-wide
// (no student_group on the test) or targeted at the given group. The time
// window is filtered by the caller: start_time/end_time are wall-clock
// strings the database cannot compare against the process clock.
func (r *testRepository) FindByGradeAndGroup(grade string, group *string) ([]model.Test, error) {
	var tests []model.Test
	query := r.db.Where("grade = ?", grade)
	if group != nil {
		query = query.Where("student_group IS NULL OR student_group = ?", *group)
	} else {
		query = query.Where("student_group IS NULL")
	}
	if err := query.Order("start_time ASC").Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}
