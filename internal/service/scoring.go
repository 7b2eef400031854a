package service

import (
	"strings"
	"time"

	"github.com/nexlearn/mocktest/internal/model"
)

// Scoring freezes section outcomes and aggregates them at submission. The
// score is authoritative here: the server owns the answer key, so each
// answered question is matched against it with the test's global marking
// scheme. Counts (answered / marked / visited) are what the client rendered
// mid-section; the key never leaves the server.

// BuildSectionSnapshot computes the SectionResult for one section from the
// ledger rows restricted to that section's questions, as they stood at the
// moment of completion.
func BuildSectionSnapshot(test *model.Test, section *model.Section, sectionIndex int, responses map[uint]*model.Response, trigger string, now time.Time) model.SectionResult {
	result := model.SectionResult{
		SectionIndex:   sectionIndex,
		SectionName:    section.Name,
		TotalQuestions: len(section.Questions),
		Trigger:        trigger,
		CompletedAt:    now,
	}

	for _, q := range section.Questions {
		result.MaxScore += test.PositiveMark

		resp := responses[q.ID]
		if resp != nil && resp.Visited {
			result.Visited++
		}
		if resp != nil && resp.MarkedForReview {
			result.MarkedForReview++
		}

		answered := resp != nil && resp.SelectedAnswer != nil
		if !answered {
			result.NotAnswered++
			continue
		}
		result.Answered++

		if strings.EqualFold(strings.TrimSpace(*resp.SelectedAnswer), strings.TrimSpace(q.CorrectAnswer)) {
			result.Score += test.PositiveMark
		} else {
			result.Score -= test.NegativeMark
		}
	}

	result.NotVisited = result.TotalQuestions - result.Visited
	return result
}

// FinalTotals aggregates all frozen section results. Percentage guards the
// zero-question case: a max of 0 reports 0%, never NaN.
func FinalTotals(sectionResults []model.SectionResult) (total, max, percentage float64, totalQuestions, answered int) {
	for _, sr := range sectionResults {
		total += sr.Score
		max += sr.MaxScore
		totalQuestions += sr.TotalQuestions
		answered += sr.Answered
	}
	if max > 0 {
		percentage = total / max * 100
	}
	return total, max, percentage, totalQuestions, answered
}
