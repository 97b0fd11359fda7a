package repository

import (
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository interface {
	Upsert(sub *model.Submission) error
	CreateIfAbsent(sub *model.Submission) error
	Save(sub *model.Submission) error
	FindByID(id uint) (*model.Submission, error)
	FindByTestAndStudent(testID, studentID uint) (*model.Submission, error)
	ExistsForTestAndStudent(testID, studentID uint) (bool, error)
	FindAllByTest(testID uint) ([]model.Submission, error)
	FindScoredByTest(testID uint) ([]model.Submission, error)
	DeleteTransactional(id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Upsert inserts or, when a row for (test_id, student_id) already exists,
// overwrites its answer and grading columns. The conflict target is the
// composite unique index, which closes the check-then-insert race for
// concurrent duplicate submissions.
func (r *submissionRepository) Upsert(sub *model.Submission) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "test_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answers", "manual_grades", "score", "graded", "teacher_comment", "updated_at",
		}),
	}).Create(sub).Error
}

// CreateIfAbsent inserts the row only when no (test_id, student_id) row
// exists; an existing row is left completely untouched.
func (r *submissionRepository) CreateIfAbsent(sub *model.Submission) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "test_id"}, {Name: "student_id"}},
		DoNothing: true,
	}).Create(sub).Error
}

func (r *submissionRepository) Save(sub *model.Submission) error {
	return r.db.Save(sub).Error
}

func (r *submissionRepository) FindByID(id uint) (*model.Submission, error) {
	var sub model.Submission
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) FindByTestAndStudent(testID, studentID uint) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.Where("test_id = ? AND student_id = ?", testID, studentID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) ExistsForTestAndStudent(testID, studentID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.Submission{}).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Count(&count).Error
	return count > 0, err
}

// FindAllByTest returns every submission for a test ordered by score
// descending with ungraded (null score) rows last.
func (r *submissionRepository) FindAllByTest(testID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.Preload("Student").
		Where("test_id = ?", testID).
		Order("score DESC NULLS LAST").
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

// FindScoredByTest returns only submissions with a non-null score, sorted
// score descending. This is the rank calculator's input.
func (r *submissionRepository) FindScoredByTest(testID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.Where("test_id = ? AND score IS NOT NULL", testID).
		Order("score DESC").
		Find(&subs).Error
	return subs, err
}

// DeleteTransactional removes the row in its own transaction. The commit is
// the authoritative deletion signal; callers handle any referenced files
// afterwards.
func (r *submissionRepository) DeleteTransactional(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&model.Submission{}, id).Error
	})
}
