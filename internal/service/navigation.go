package service

import (
	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/model"
)

// Navigation is the movement and visitation logic for the active section.
// It never mutates responses; visiting a question only marks it visited.

// SelectQuestion validates a target index against the section size.
// Returns ErrIndexOutOfRange without any state change for illegal targets.
func SelectQuestion(index, questionCount int) error {
	if index < 0 || index >= questionCount {
		return ErrIndexOutOfRange
	}
	return nil
}

// NextIndex moves one question forward; at the boundary it stays put rather
// than erroring.
func NextIndex(current, questionCount int) int {
	if current+1 >= questionCount {
		return current
	}
	return current + 1
}

// PreviousIndex moves one question back, staying put at the first question.
func PreviousIndex(current int) int {
	if current <= 0 {
		return current
	}
	return current - 1
}

// ClassifyQuestion derives the render status of a question from its ledger
// row. The precedence is a contract with the presentation layer:
// answered_and_marked > answered > marked > visited > not_visited. A nil
// row means the question was never touched.
func ClassifyQuestion(resp *model.Response) dto.QuestionStatus {
	if resp == nil {
		return dto.StatusNotVisited
	}
	answered := resp.SelectedAnswer != nil
	switch {
	case answered && resp.MarkedForReview:
		return dto.StatusAnsweredAndMarked
	case answered:
		return dto.StatusAnswered
	case resp.MarkedForReview:
		return dto.StatusMarked
	case resp.Visited:
		return dto.StatusVisited
	default:
		return dto.StatusNotVisited
	}
}
