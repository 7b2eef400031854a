package dto

// StartAttemptDTO starts a new attempt or resumes the open one for the user.
// Identity is supplied by the platform; the engine only consumes it.
type StartAttemptDTO struct {
	UserID uint `json:"user_id" binding:"required"`
}

// VisitQuestionDTO records navigation onto a question of the active section.
type VisitQuestionDTO struct {
	QuestionIndex *int `json:"question_index" binding:"required,min=0"`
}

// SaveResponseDTO saves or overwrites the answer state for one question.
// A nil SelectedAnswer clears the answer while leaving the marked-for-review
// flag and visited state intact.
type SaveResponseDTO struct {
	QuestionID      uint    `json:"question_id" binding:"required"`
	SelectedAnswer  *string `json:"selected_answer"`
	MarkedForReview *bool   `json:"marked_for_review"`
}
