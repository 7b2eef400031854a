package model

import (
	"time"

	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptInProgress      AttemptStatus = "in_progress"
	AttemptSectionComplete AttemptStatus = "section_complete"
	AttemptSubmitted       AttemptStatus = "submitted"
)

// Triggers recorded on section completion and submission.
const (
	TriggerManual         = "manual"
	TriggerSectionTimeout = "section_timeout"
	TriggerOverallTimeout = "overall_timeout"
)

// Attempt is one candidate's pass through a test definition. At most one
// non-submitted attempt exists per (user, test); once submitted it is
// immutable.
type Attempt struct {
	ID                  uint          `gorm:"primarykey" json:"id"`
	TestID              uint          `json:"test_id" gorm:"not null;index"`
	Test                Test          `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID              uint          `json:"user_id" gorm:"not null;index:idx_attempt_user_test"`
	Status              AttemptStatus `json:"status" gorm:"not null;default:'in_progress';index"`
	StartedAt           time.Time     `json:"started_at" gorm:"not null"`
	OverallDeadline     time.Time     `json:"overall_deadline" gorm:"not null;index"`
	CurrentSectionIndex int           `json:"current_section_index" gorm:"not null;default:0"`
	SectionDeadline     time.Time     `json:"section_deadline" gorm:"not null;index"`
	SubmittedAt         *time.Time    `json:"submitted_at,omitempty"`
	SubmitTrigger       *string       `json:"submit_trigger,omitempty"`

	// Frozen at submission.
	TotalScore *float64 `json:"total_score,omitempty"`
	MaxScore   *float64 `json:"max_score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`

	Responses      []Response      `json:"responses,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SectionResults []SectionResult `json:"section_results,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Response is the ledger row for one question within an attempt:
// last-write-wins keyed by (attempt_id, question_id). A nil SelectedAnswer
// with Visited=true means the answer was cleared or never given; the
// marked-for-review flag and visited state are independent of the answer.
type Response struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	AttemptID       uint       `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID      uint       `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	SectionIndex    int        `json:"section_index" gorm:"not null;index"`
	SelectedAnswer  *string    `json:"selected_answer,omitempty"`
	MarkedForReview bool       `json:"marked_for_review" gorm:"not null;default:false"`
	Visited         bool       `json:"visited" gorm:"not null;default:false"`
	LastSavedAt     time.Time  `json:"last_saved_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SectionResult is the frozen outcome of one section, recorded exactly once
// per (attempt_id, section_index). It is never recomputed retroactively.
type SectionResult struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	AttemptID       uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_section"`
	SectionIndex    int       `json:"section_index" gorm:"not null;uniqueIndex:idx_attempt_section"`
	SectionName     string    `json:"section_name" gorm:"not null"`
	TotalQuestions  int       `json:"total_questions" gorm:"not null"`
	Answered        int       `json:"answered" gorm:"not null"`
	NotAnswered     int       `json:"not_answered" gorm:"not null"`
	MarkedForReview int       `json:"marked_for_review" gorm:"not null"`
	Visited         int       `json:"visited" gorm:"not null"`
	NotVisited      int       `json:"not_visited" gorm:"not null"`
	Score           float64   `json:"score" gorm:"not null"`
	MaxScore        float64   `json:"max_score" gorm:"not null"`
	Trigger         string    `json:"trigger" gorm:"not null"`
	CompletedAt     time.Time `json:"completed_at" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// IsEditable reports whether the attempt still accepts mutations.
func (a *Attempt) IsEditable() bool {
	return a.Status != AttemptSubmitted
}
