package dto

import "time"

// QuestionStatus is the derived classification the presentation layer
// renders per question. Precedence: answered_and_marked > answered > marked
// > visited > not_visited.
type QuestionStatus string

const (
	StatusAnsweredAndMarked QuestionStatus = "answered_and_marked"
	StatusAnswered          QuestionStatus = "answered"
	StatusMarked            QuestionStatus = "marked"
	StatusVisited           QuestionStatus = "visited"
	StatusNotVisited        QuestionStatus = "not_visited"
)

// QuestionViewDTO is a question as shown to a candidate mid-attempt. The
// answer key never appears here.
type QuestionViewDTO struct {
	ID             uint           `json:"id"`
	Prompt         string         `json:"prompt"`
	Options        []string       `json:"options"`
	OrderInSection int            `json:"order_in_section"`
	Status         QuestionStatus `json:"status"`
	SelectedAnswer *string        `json:"selected_answer,omitempty"`
}

// RemainingTimeDTO is the (overall, section) remaining-time tuple, always
// derived from absolute deadlines, never from a client countdown.
type RemainingTimeDTO struct {
	OverallSec int64 `json:"overall_sec"`
	SectionSec int64 `json:"section_sec"`
}

// SectionViewDTO is the active section as rendered during an attempt.
type SectionViewDTO struct {
	Name        string            `json:"name"`
	Index       int               `json:"index"`
	DurationSec int               `json:"duration_sec"`
	Questions   []QuestionViewDTO `json:"questions"`
}

// AttemptStateDTO is the full reconstruction payload: enough for a client
// to resume after a reload or disconnect purely from server state.
type AttemptStateDTO struct {
	ID                  uint               `json:"id"`
	TestID              uint               `json:"test_id"`
	TestTitle           string             `json:"test_title"`
	UserID              uint               `json:"user_id"`
	Status              string             `json:"status"`
	StartedAt           time.Time          `json:"started_at"`
	CurrentSectionIndex int                `json:"current_section_index"`
	TotalSections       int                `json:"total_sections"`
	Remaining           RemainingTimeDTO   `json:"remaining"`
	Section             *SectionViewDTO    `json:"section,omitempty"`
	SectionResults      []SectionResultDTO `json:"section_results,omitempty"`
}

// SectionResultDTO mirrors the frozen SectionResult row.
type SectionResultDTO struct {
	SectionIndex    int     `json:"section_index"`
	SectionName     string  `json:"section_name"`
	TotalQuestions  int     `json:"total_questions"`
	Answered        int     `json:"answered"`
	NotAnswered     int     `json:"not_answered"`
	MarkedForReview int     `json:"marked_for_review"`
	Visited         int     `json:"visited"`
	NotVisited      int     `json:"not_visited"`
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"max_score"`
	Trigger         string  `json:"trigger"`
}

// FinalResultDTO is created exactly once, at submission, and returned
// verbatim for any later (idempotent) submit or result fetch.
type FinalResultDTO struct {
	AttemptID      uint               `json:"attempt_id"`
	TestID         uint               `json:"test_id"`
	TestTitle      string             `json:"test_title,omitempty"`
	UserID         uint               `json:"user_id"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	Trigger        string             `json:"trigger,omitempty"`
	TotalQuestions int                `json:"total_questions"`
	Answered       int                `json:"answered"`
	TotalScore     float64            `json:"total_score"`
	MaxScore       float64            `json:"max_score"`
	Percentage     float64            `json:"percentage"`
	Sections       []SectionResultDTO `json:"sections"`
}

// TestSummaryDTO is used for listing tests available to candidates.
type TestSummaryDTO struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	DurationSec  int       `json:"duration_sec"`
	SectionCount int       `json:"section_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TestResponseDTO is the candidate-facing view of a test definition:
// sections and questions without answer keys.
type TestResponseDTO struct {
	ID           uint             `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
	DurationSec  int              `json:"duration_sec"`
	PositiveMark float64          `json:"positive_mark"`
	NegativeMark float64          `json:"negative_mark"`
	Sections     []SectionOutline `json:"sections"`
	CreatedAt    time.Time        `json:"created_at"`
}

// SectionOutline summarizes one section for the pre-attempt view.
type SectionOutline struct {
	Name          string `json:"name"`
	OrderInTest   int    `json:"order_in_test"`
	DurationSec   int    `json:"duration_sec"`
	QuestionCount int    `json:"question_count"`
}

// AttemptSummaryDTO is for listing a user's attempts for a test.
type AttemptSummaryDTO struct {
	ID          uint       `json:"id"`
	TestID      uint       `json:"test_id"`
	UserID      uint       `json:"user_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	TotalScore  *float64   `json:"total_score,omitempty"`
	Percentage  *float64   `json:"percentage,omitempty"`
}

// ErrorResponse carries a human message plus a stable reason code the
// presentation layer can branch on (e.g. redirect on "already_submitted").
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
