package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Test is an immutable test definition: ordered sections, per-section
// question lists, durations and the global marking scheme. The attempt
// engine only ever reads it.
type Test struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Title        string         `json:"title" gorm:"not null;uniqueIndex"`
	Description  string         `json:"description,omitempty"`
	Instructions string         `json:"instructions,omitempty" gorm:"type:text"`
	DurationSec  int            `json:"duration_sec" gorm:"not null"`
	PositiveMark float64        `json:"positive_mark" gorm:"not null;default:1"`
	NegativeMark float64        `json:"negative_mark" gorm:"not null;default:0"`
	Sections     []Section      `json:"sections,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Section is a timed, ordered subset of a test's questions.
type Section struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	TestID      uint           `json:"test_id" gorm:"not null;index"`
	Name        string         `json:"name" gorm:"not null"`
	OrderInTest int            `json:"order_in_test" gorm:"not null"`
	DurationSec int            `json:"duration_sec" gorm:"not null"`
	Questions   []Question     `json:"questions,omitempty" gorm:"foreignKey:SectionID"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Question belongs to exactly one section. CorrectAnswer is the answer key
// and must never be serialized to candidates.
type Question struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	SectionID      uint           `json:"section_id" gorm:"not null;index"`
	Prompt         string         `json:"prompt" gorm:"type:text;not null"`
	Options        datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer  string         `json:"-" gorm:"not null"`
	OrderInSection int            `json:"order_in_section" gorm:"not null"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// QuestionIDs returns the section's question ids in presentation order.
// Questions are expected to be preloaded ordered by order_in_section.
func (s *Section) QuestionIDs() []uint {
	ids := make([]uint, len(s.Questions))
	for i, q := range s.Questions {
		ids[i] = q.ID
	}
	return ids
}
