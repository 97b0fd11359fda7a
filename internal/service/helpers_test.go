package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xX-youssuf-Xx/student-portal/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory fakes over the repository interfaces. They mimic the database
// semantics the services rely on: upsert keyed by (test_id, student_id),
// gorm.ErrRecordNotFound for misses, and value copies so callers never share
// storage with the fake.

type fakeTestRepo struct {
	nextID uint
	tests  map[uint]*model.Test
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{tests: make(map[uint]*model.Test)}
	for _, t := range tests {
		r.tests[t.ID] = t
		if t.ID > r.nextID {
			r.nextID = t.ID
		}
	}
	return r
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	if test.ID == 0 {
		r.nextID++
		test.ID = r.nextID
	}
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) Update(test *model.Test) error {
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) Delete(id uint) error {
	delete(r.tests, id)
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	t, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTestRepo) FindByIDWithImages(id uint) (*model.Test, error) {
	return r.FindByID(id)
}

func (r *fakeTestRepo) FindAll() ([]model.Test, error) {
	out := make([]model.Test, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTestRepo) FindByGradeAndGroup(grade string, group *string) ([]model.Test, error) {
	var out []model.Test
	for _, t := range r.tests {
		if t.Grade != grade {
			continue
		}
		if t.StudentGroup != nil {
			if group == nil || *t.StudentGroup != *group {
				continue
			}
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

type fakeStudentRepo struct {
	students map[uint]*model.Student
}

func newFakeStudentRepo(students ...*model.Student) *fakeStudentRepo {
	r := &fakeStudentRepo{students: make(map[uint]*model.Student)}
	for _, s := range students {
		r.students[s.ID] = s
	}
	return r
}

func (r *fakeStudentRepo) FindByID(id uint) (*model.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStudentRepo) FindByIDs(ids []uint) ([]model.Student, error) {
	var out []model.Student
	for _, id := range ids {
		if s, ok := r.students[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	nextID uint
	rows   map[uint]*model.Submission
	// students backs the Preload("Student") behavior of FindAllByTest.
	students map[uint]model.Student
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{rows: make(map[uint]*model.Submission), students: make(map[uint]model.Student)}
}

func (r *fakeSubmissionRepo) find(testID, studentID uint) *model.Submission {
	for _, row := range r.rows {
		if row.TestID == testID && row.StudentID == studentID {
			return row
		}
	}
	return nil
}

func (r *fakeSubmissionRepo) insert(sub *model.Submission) {
	r.nextID++
	cp := *sub
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.rows[cp.ID] = &cp
}

func (r *fakeSubmissionRepo) Upsert(sub *model.Submission) error {
	if existing := r.find(sub.TestID, sub.StudentID); existing != nil {
		existing.Answers = sub.Answers
		existing.ManualGrades = sub.ManualGrades
		existing.Score = sub.Score
		existing.Graded = sub.Graded
		existing.TeacherComment = sub.TeacherComment
		return nil
	}
	r.insert(sub)
	return nil
}

func (r *fakeSubmissionRepo) CreateIfAbsent(sub *model.Submission) error {
	if r.find(sub.TestID, sub.StudentID) != nil {
		return nil
	}
	r.insert(sub)
	return nil
}

func (r *fakeSubmissionRepo) Save(sub *model.Submission) error {
	cp := *sub
	r.rows[cp.ID] = &cp
	return nil
}

func (r *fakeSubmissionRepo) FindByID(id uint) (*model.Submission, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeSubmissionRepo) FindByTestAndStudent(testID, studentID uint) (*model.Submission, error) {
	row := r.find(testID, studentID)
	if row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeSubmissionRepo) ExistsForTestAndStudent(testID, studentID uint) (bool, error) {
	return r.find(testID, studentID) != nil, nil
}

func (r *fakeSubmissionRepo) FindAllByTest(testID uint) ([]model.Submission, error) {
	var out []model.Submission
	for _, row := range r.rows {
		if row.TestID != testID {
			continue
		}
		cp := *row
		cp.Student = r.students[row.StudentID]
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Score, out[j].Score
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return *si > *sj
		}
	})
	return out, nil
}

func (r *fakeSubmissionRepo) FindScoredByTest(testID uint) ([]model.Submission, error) {
	var out []model.Submission
	for _, row := range r.rows {
		if row.TestID == testID && row.Score != nil {
			out = append(out, *row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Score > *out[j].Score })
	return out, nil
}

func (r *fakeSubmissionRepo) DeleteTransactional(id uint) error {
	delete(r.rows, id)
	return nil
}

type fakeTestImageRepo struct {
	images map[uint][]model.TestImage
}

func newFakeTestImageRepo() *fakeTestImageRepo {
	return &fakeTestImageRepo{images: make(map[uint][]model.TestImage)}
}

func (r *fakeTestImageRepo) FindByTestID(testID uint) ([]model.TestImage, error) {
	return r.images[testID], nil
}

func (r *fakeTestImageRepo) ReplaceForTest(testID uint, images []model.TestImage) error {
	for i := range images {
		images[i].TestID = testID
		images[i].DisplayOrder = i
	}
	r.images[testID] = images
	return nil
}

// fakeDetector serves canned per-student results and records call order.
type fakeDetector struct {
	results map[uint]map[string]string
	errs    map[uint]error
	calls   []uint
}

func (d *fakeDetector) Detect(ctx context.Context, imagePath string, nQuestions int, testID, studentID uint, outDir string) (map[string]string, error) {
	d.calls = append(d.calls, studentID)
	if err, ok := d.errs[studentID]; ok {
		return nil, err
	}
	res, ok := d.results[studentID]
	if !ok {
		return nil, fmt.Errorf("no canned result for student %d", studentID)
	}
	return res, nil
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func jsonb(s string) datatypes.JSON { return datatypes.JSON([]byte(s)) }
