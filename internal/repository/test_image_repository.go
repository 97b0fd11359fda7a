package repository

import (
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"gorm.io/gorm"
)

type TestImageRepository interface {
	FindByTestID(testID uint) ([]model.TestImage, error)
	ReplaceForTest(testID uint, images []model.TestImage) error
}

type testImageRepository struct {
	db *gorm.DB
}

func NewTestImageRepository(db *gorm.DB) TestImageRepository {
	return &testImageRepository{db: db}
}

func (r *testImageRepository) FindByTestID(testID uint) ([]model.TestImage, error) {
	var images []model.TestImage
	err := r.db.Where("test_id = ?", testID).Order("display_order ASC").Find(&images).Error
	return images, err
}

// ReplaceForTest swaps a test's image set atomically. Delete plus bulk
// insert runs in one transaction so a failed reorder never leaves a test
// with half its pages.
func (r *testImageRepository) ReplaceForTest(testID uint, images []model.TestImage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&model.TestImage{}).Error; err != nil {
			return err
		}
		if len(images) == 0 {
			return nil
		}
		for i := range images {
			images[i].ID = 0
			images[i].TestID = testID
			images[i].DisplayOrder = i
		}
		return tx.Create(&images).Error
	})
}
