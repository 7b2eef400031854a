package repository

import (
	"github.com/nexlearn/mocktest/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithSections(id uint) (*model.Test, error)
	FindAllWithSectionCount() ([]struct {
		model.Test
		SectionCount int
	}, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	// GORM creates the nested sections and questions along with the test.
	return r.db.Create(test).Error
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.First(&test, id).Error
	return &test, err
}

// FindByIDWithSections loads the full definition: sections ordered by
// order_in_test, each with its questions ordered by order_in_section.
func (r *testRepository) FindByIDWithSections(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sections.order_in_test ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_section ASC")
		}).
		First(&test, id).Error
	return &test, err
}

func (r *testRepository) FindAllWithSectionCount() ([]struct {
	model.Test
	SectionCount int
}, error) {
	var results []struct {
		model.Test
		SectionCount int
	}
	err := r.db.Model(&model.Test{}).
		Select("tests.*, (SELECT COUNT(*) FROM sections WHERE sections.test_id = tests.id AND sections.deleted_at IS NULL) as section_count").
		Where("tests.deleted_at IS NULL").
		Order("tests.created_at DESC").
		Scan(&results).Error
	return results, err
}
