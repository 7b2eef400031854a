package repository

import (
	"errors"
	"time"

	"github.com/nexlearn/mocktest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	Create(attempt *model.Attempt) error
	Update(attempt *model.Attempt) error
	FindByID(id uint) (*model.Attempt, error)
	FindByIDWithDetails(id uint) (*model.Attempt, error)
	// FindActive returns the single non-submitted attempt for (user, test),
	// or gorm.ErrRecordNotFound.
	FindActive(userID, testID uint) (*model.Attempt, error)
	FindAllByTestAndUser(testID, userID uint) ([]model.Attempt, error)
	// UpsertResponse applies a last-write-wins write keyed by
	// (attempt_id, question_id).
	UpsertResponse(resp *model.Response) error
	FindResponse(attemptID, questionID uint) (*model.Response, error)
	FindResponses(attemptID uint) ([]model.Response, error)
	// InsertSectionResult records a section outcome at most once per
	// (attempt_id, section_index); on a duplicate it returns the already
	// recorded row and reports created=false.
	InsertSectionResult(res *model.SectionResult) (*model.SectionResult, bool, error)
	FindSectionResults(attemptID uint) ([]model.SectionResult, error)
	// FindOverdue lists in-progress attempts whose section or overall
	// deadline has passed, for the deadline watcher sweep.
	FindOverdue(now time.Time, limit int) ([]model.Attempt, error)
	FindSubmittedByTest(testID uint) ([]model.Attempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.Attempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) Update(attempt *model.Attempt) error {
	return r.db.Save(attempt).Error
}

func (r *attemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.First(&attempt, id).Error
	return &attempt, err
}

func (r *attemptRepository) FindByIDWithDetails(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Preload("Test").
		Preload("Responses").
		Preload("SectionResults", func(db *gorm.DB) *gorm.DB {
			return db.Order("section_results.section_index ASC")
		}).
		First(&attempt, id).Error
	return &attempt, err
}

func (r *attemptRepository) FindActive(userID, testID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Where("user_id = ? AND test_id = ? AND status <> ?", userID, testID, model.AttemptSubmitted).
		First(&attempt).Error
	return &attempt, err
}

func (r *attemptRepository) FindAllByTestAndUser(testID, userID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.
		Where("test_id = ? AND user_id = ?", testID, userID).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) UpsertResponse(resp *model.Response) error {
	resp.LastSavedAt = time.Now()
	if resp.ID != 0 {
		return r.db.Save(resp).Error
	}
	// First write for this question; the conflict clause covers the race
	// where two clients of one attempt insert simultaneously.
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_answer", "marked_for_review", "visited", "section_index", "last_saved_at", "updated_at",
		}),
	}).Create(resp).Error
}

func (r *attemptRepository) FindResponse(attemptID, questionID uint) (*model.Response, error) {
	var resp model.Response
	err := r.db.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&resp).Error
	return &resp, err
}

func (r *attemptRepository) FindResponses(attemptID uint) ([]model.Response, error) {
	var responses []model.Response
	err := r.db.Where("attempt_id = ?", attemptID).Find(&responses).Error
	return responses, err
}

func (r *attemptRepository) InsertSectionResult(res *model.SectionResult) (*model.SectionResult, bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "section_index"}},
		DoNothing: true,
	}).Create(res)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return res, true, nil
	}
	// Duplicate completion: hand back the row recorded first.
	var existing model.SectionResult
	err := r.db.
		Where("attempt_id = ? AND section_index = ?", res.AttemptID, res.SectionIndex).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, gorm.ErrRecordNotFound
		}
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *attemptRepository) FindSectionResults(attemptID uint) ([]model.SectionResult, error) {
	var results []model.SectionResult
	err := r.db.
		Where("attempt_id = ?", attemptID).
		Order("section_index ASC").
		Find(&results).Error
	return results, err
}

func (r *attemptRepository) FindOverdue(now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	q := r.db.
		Where("status <> ?", model.AttemptSubmitted).
		Where("section_deadline <= ? OR overall_deadline <= ?", now, now).
		Order("overall_deadline ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) FindSubmittedByTest(testID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.
		Where("test_id = ? AND status = ?", testID, model.AttemptSubmitted).
		Order("submitted_at ASC").
		Find(&attempts).Error
	return attempts, err
}
