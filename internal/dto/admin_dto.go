package dto

// QuestionCreateDTO is used within SectionCreateDTO for admin test creation.
type QuestionCreateDTO struct {
	Prompt         string   `json:"prompt" binding:"required"`
	Options        []string `json:"options" binding:"required,min=2"`
	CorrectAnswer  string   `json:"correct_answer" binding:"required"`
	OrderInSection int      `json:"order_in_section" binding:"required,min=1"`
}

// SectionCreateDTO describes one timed section of a new test.
type SectionCreateDTO struct {
	Name        string              `json:"name" binding:"required"`
	OrderInTest int                 `json:"order_in_test" binding:"required,min=1"`
	DurationSec int                 `json:"duration_sec" binding:"required,gt=0"`
	Questions   []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

// TestCreateDTO is for admin to create a new test with all its sections and
// questions in one shot. Definitions are immutable once attempts exist.
type TestCreateDTO struct {
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description,omitempty"`
	Instructions string             `json:"instructions,omitempty"`
	DurationSec  int                `json:"duration_sec" binding:"required,gt=0"`
	PositiveMark float64            `json:"positive_mark" binding:"required,gt=0"`
	NegativeMark float64            `json:"negative_mark" binding:"min=0"`
	Sections     []SectionCreateDTO `json:"sections" binding:"required,min=1,dive"`
}
