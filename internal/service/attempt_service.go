package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/model"
	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AttemptService is the orchestrator for one candidate's pass through a
// test: it drives the state machine
//
//	InProgress(i) -> SectionComplete(i) -> InProgress(i+1) -> ... -> Submitted
//
// with all deadline enforcement anchored on absolute timestamps held in the
// attempt row, so a resume reconstructs the exact same budgets.
type AttemptService interface {
	StartOrResume(testID, userID uint) (*dto.AttemptStateDTO, error)
	GetState(attemptID uint) (*dto.AttemptStateDTO, error)
	VisitQuestion(attemptID uint, questionIndex int) (*dto.AttemptStateDTO, error)
	SaveResponse(attemptID uint, req dto.SaveResponseDTO) (*dto.AttemptStateDTO, error)
	ToggleMark(attemptID, questionID uint) (*dto.AttemptStateDTO, error)
	ClearResponse(attemptID, questionID uint) (*dto.AttemptStateDTO, error)
	CompleteSection(attemptID uint, sectionIndex int, trigger string) (*dto.AttemptStateDTO, error)
	Submit(attemptID uint, trigger string) (*dto.FinalResultDTO, error)
	Result(attemptID uint) (*dto.FinalResultDTO, error)
	ListAttempts(testID, userID uint) ([]dto.AttemptSummaryDTO, error)
	// EnforceDeadlines sweeps overdue attempts and applies the same
	// transitions a live session would; used by the deadline watcher.
	EnforceDeadlines(now time.Time) (int, error)
}

type attemptService struct {
	testRepo    repository.TestRepository
	attemptRepo repository.AttemptRepository
	db          *gorm.DB
	now         func() time.Time
}

func NewAttemptService(testRepo repository.TestRepository, attemptRepo repository.AttemptRepository, db *gorm.DB) AttemptService {
	return &attemptService{
		testRepo:    testRepo,
		attemptRepo: attemptRepo,
		db:          db,
		now:         time.Now,
	}
}

// StartOrResume reuses the single non-submitted attempt for (user, test) if
// one exists; otherwise it creates a fresh one anchored at now. State is
// always reconstructed from the repository, never from the client.
func (s *attemptService) StartOrResume(testID, userID uint) (*dto.AttemptStateDTO, error) {
	test, err := s.loadDefinition(testID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attemptRepo.FindActive(userID, testID)
	if err == nil {
		log.Info().Uint("attemptID", existing.ID).Uint("userID", userID).Msg("Resuming open attempt")
		if _, err := s.settleDeadlines(existing, test); err != nil {
			return nil, err
		}
		return s.buildState(existing.ID, test)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up open attempt: %w", err)
	}

	now := s.now()
	overall := now.Add(time.Duration(test.DurationSec) * time.Second)
	attempt := model.Attempt{
		TestID:              testID,
		UserID:              userID,
		Status:              model.AttemptInProgress,
		StartedAt:           now,
		OverallDeadline:     overall,
		CurrentSectionIndex: 0,
		SectionDeadline:     SectionDeadlineFor(now, time.Duration(test.Sections[0].DurationSec)*time.Second, overall),
	}
	if err := s.attemptRepo.Create(&attempt); err != nil {
		return nil, fmt.Errorf("creating attempt: %w", err)
	}
	log.Info().Uint("attemptID", attempt.ID).Uint("testID", testID).Uint("userID", userID).Msg("Attempt started")
	return s.buildState(attempt.ID, test)
}

func (s *attemptService) GetState(attemptID uint) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if _, err := s.settleDeadlines(attempt, test); err != nil {
		return nil, err
	}
	return s.buildState(attemptID, test)
}

// VisitQuestion marks a question of the active section as visited. It never
// touches the answer or the review flag.
func (s *attemptService) VisitQuestion(attemptID uint, questionIndex int) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadEditable(attemptID)
	if err != nil {
		return nil, err
	}

	section := &test.Sections[attempt.CurrentSectionIndex]
	if err := SelectQuestion(questionIndex, len(section.Questions)); err != nil {
		return nil, err
	}
	question := section.Questions[questionIndex]

	resp, err := s.ledgerRow(attempt, question.ID)
	if err != nil {
		return nil, err
	}
	resp.Visited = true
	if err := s.attemptRepo.UpsertResponse(resp); err != nil {
		return nil, fmt.Errorf("persisting visit: %w", err)
	}
	return s.buildState(attemptID, test)
}

// SaveResponse overwrites the answer state for one question of the active
// section, last-write-wins. The write is durable before the returned state
// reflects it; on persistence failure the caller gets the error so the UI
// can retry instead of silently losing the answer.
func (s *attemptService) SaveResponse(attemptID uint, req dto.SaveResponseDTO) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadEditable(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrentSection(attempt, test, req.QuestionID); err != nil {
		return nil, err
	}

	resp, err := s.ledgerRow(attempt, req.QuestionID)
	if err != nil {
		return nil, err
	}
	resp.Visited = true
	resp.SelectedAnswer = req.SelectedAnswer
	if req.MarkedForReview != nil {
		resp.MarkedForReview = *req.MarkedForReview
	}
	if err := s.attemptRepo.UpsertResponse(resp); err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Uint("questionID", req.QuestionID).Msg("Response write failed")
		return nil, fmt.Errorf("persisting response: %w", err)
	}
	return s.buildState(attemptID, test)
}

// ToggleMark flips the marked-for-review flag, independent of whether an
// answer is present.
func (s *attemptService) ToggleMark(attemptID, questionID uint) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadEditable(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrentSection(attempt, test, questionID); err != nil {
		return nil, err
	}

	resp, err := s.ledgerRow(attempt, questionID)
	if err != nil {
		return nil, err
	}
	resp.MarkedForReview = !resp.MarkedForReview
	if err := s.attemptRepo.UpsertResponse(resp); err != nil {
		return nil, fmt.Errorf("persisting review mark: %w", err)
	}
	return s.buildState(attemptID, test)
}

// ClearResponse removes the answer while preserving the review flag and the
// visited state: clearing is not un-visiting.
func (s *attemptService) ClearResponse(attemptID, questionID uint) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadEditable(attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCurrentSection(attempt, test, questionID); err != nil {
		return nil, err
	}

	resp, err := s.ledgerRow(attempt, questionID)
	if err != nil {
		return nil, err
	}
	resp.SelectedAnswer = nil
	if err := s.attemptRepo.UpsertResponse(resp); err != nil {
		return nil, fmt.Errorf("persisting clear: %w", err)
	}
	return s.buildState(attemptID, test)
}

// CompleteSection freezes the section's outcome and advances, or submits if
// it was the last section. Idempotent per (attempt, sectionIndex): a retry
// for an already-frozen section changes nothing and succeeds.
func (s *attemptService) CompleteSection(attemptID uint, sectionIndex int, trigger string) (*dto.AttemptStateDTO, error) {
	attempt, test, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	settled, err := s.settleDeadlines(attempt, test)
	if err != nil {
		return nil, err
	}
	if settled {
		attempt, _, err = s.loadAttempt(attemptID)
		if err != nil {
			return nil, err
		}
	}

	// A duplicate call for a section that is already frozen is a
	// success-no-op, even on a submitted attempt.
	recorded, err := s.attemptRepo.FindSectionResults(attemptID)
	if err != nil {
		return nil, fmt.Errorf("loading section results: %w", err)
	}
	for _, sr := range recorded {
		if sr.SectionIndex == sectionIndex {
			return s.buildState(attemptID, test)
		}
	}

	if attempt.Status == model.AttemptSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if sectionIndex != attempt.CurrentSectionIndex {
		return nil, ErrSectionMismatch
	}

	if err := s.closeCurrentSection(attempt, test, trigger, s.now()); err != nil {
		return nil, err
	}
	return s.buildState(attemptID, test)
}

// Submit finalizes the attempt. Idempotent: a second call returns the same
// FinalResult without touching the recorded section results.
func (s *attemptService) Submit(attemptID uint, trigger string) (*dto.FinalResultDTO, error) {
	attempt, test, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	// Lapsed deadlines take precedence over the caller's trigger.
	if _, err := s.settleDeadlines(attempt, test); err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptSubmitted {
		return s.buildFinalResult(attempt, test)
	}
	if err := s.finalize(attempt, test, trigger, s.now()); err != nil {
		return nil, err
	}
	attempt, _, err = s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	return s.buildFinalResult(attempt, test)
}

// Result returns the FinalResult of a submitted attempt.
func (s *attemptService) Result(attemptID uint) (*dto.FinalResultDTO, error) {
	attempt, test, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if _, err := s.settleDeadlines(attempt, test); err != nil {
		return nil, err
	}
	attempt, _, err = s.loadAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptSubmitted {
		return nil, ErrAttemptNotFinal
	}
	return s.buildFinalResult(attempt, test)
}

func (s *attemptService) ListAttempts(testID, userID uint) ([]dto.AttemptSummaryDTO, error) {
	attempts, err := s.attemptRepo.FindAllByTestAndUser(testID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	summaries := make([]dto.AttemptSummaryDTO, len(attempts))
	for i, a := range attempts {
		if err := copier.Copy(&summaries[i], &a); err != nil {
			return nil, fmt.Errorf("preparing attempt summary: %w", err)
		}
		summaries[i].Status = string(a.Status)
	}
	return summaries, nil
}

// EnforceDeadlines applies timeouts to every overdue attempt, returning how
// many attempts were transitioned.
func (s *attemptService) EnforceDeadlines(now time.Time) (int, error) {
	overdue, err := s.attemptRepo.FindOverdue(now, 100)
	if err != nil {
		return 0, fmt.Errorf("listing overdue attempts: %w", err)
	}
	settledCount := 0
	for i := range overdue {
		attempt := &overdue[i]
		test, err := s.loadDefinition(attempt.TestID)
		if err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Deadline sweep: definition load failed")
			continue
		}
		settled, err := s.settleDeadlinesAt(attempt, test, now)
		if err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Deadline sweep: transition failed")
			continue
		}
		if settled {
			settledCount++
		}
	}
	return settledCount, nil
}

// --- internals ---

func (s *attemptService) loadDefinition(testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByIDWithSections(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("loading test definition: %w", err)
	}
	if len(test.Sections) == 0 {
		return nil, ErrTestHasNoQuestions
	}
	return test, nil
}

func (s *attemptService) loadAttempt(attemptID uint) (*model.Attempt, *model.Test, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("loading attempt: %w", err)
	}
	test, err := s.loadDefinition(attempt.TestID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, test, nil
}

// loadEditable loads the attempt, applies any lapsed deadlines first, and
// rejects mutations on a submitted attempt.
func (s *attemptService) loadEditable(attemptID uint) (*model.Attempt, *model.Test, error) {
	attempt, test, err := s.loadAttempt(attemptID)
	if err != nil {
		return nil, nil, err
	}
	settled, err := s.settleDeadlines(attempt, test)
	if err != nil {
		return nil, nil, err
	}
	if settled {
		attempt, _, err = s.loadAttempt(attemptID)
		if err != nil {
			return nil, nil, err
		}
	}
	if !attempt.IsEditable() {
		return nil, nil, ErrAlreadySubmitted
	}
	return attempt, test, nil
}

// checkCurrentSection rejects ledger writes for questions outside the
// active section; writes to future (or already frozen) sections never
// happen.
func (s *attemptService) checkCurrentSection(attempt *model.Attempt, test *model.Test, questionID uint) error {
	section := &test.Sections[attempt.CurrentSectionIndex]
	for _, q := range section.Questions {
		if q.ID == questionID {
			return nil
		}
	}
	return ErrQuestionNotInSection
}

// ledgerRow fetches the existing response row for a question, or prepares a
// fresh one, so that upserts preserve whichever fields the operation does
// not touch.
func (s *attemptService) ledgerRow(attempt *model.Attempt, questionID uint) (*model.Response, error) {
	resp, err := s.attemptRepo.FindResponse(attempt.ID, questionID)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loading response: %w", err)
	}
	return &model.Response{
		AttemptID:    attempt.ID,
		QuestionID:   questionID,
		SectionIndex: attempt.CurrentSectionIndex,
	}, nil
}

// settleDeadlines walks the clock forward at now() and applies every
// transition the wall clock already demands: expired sections are frozen
// and advanced one by one, and an overall breach submits. Returns whether
// anything changed.
func (s *attemptService) settleDeadlines(attempt *model.Attempt, test *model.Test) (bool, error) {
	return s.settleDeadlinesAt(attempt, test, s.now())
}

func (s *attemptService) settleDeadlinesAt(attempt *model.Attempt, test *model.Test, now time.Time) (bool, error) {
	changed := false
	for attempt.Status != model.AttemptSubmitted {
		// Replay expiries in chronological order. Each next section begins
		// the instant the expired one ended, so the reconstructed deadlines
		// are identical no matter how late the transition is applied. A
		// section deadline clamped onto the overall deadline loses the tie:
		// that instant submits.
		if attempt.SectionDeadline.Before(attempt.OverallDeadline) && !now.Before(attempt.SectionDeadline) {
			if err := s.closeCurrentSection(attempt, test, model.TriggerSectionTimeout, attempt.SectionDeadline); err != nil {
				return changed, err
			}
			changed = true
			continue
		}
		if !now.Before(attempt.OverallDeadline) {
			if err := s.finalize(attempt, test, model.TriggerOverallTimeout, attempt.OverallDeadline); err != nil {
				return changed, err
			}
			return true, nil
		}
		return changed, nil
	}
	return changed, nil
}

// closeCurrentSection freezes the active section at the given instant and
// either advances into the next section or, on the last one, submits.
func (s *attemptService) closeCurrentSection(attempt *model.Attempt, test *model.Test, trigger string, at time.Time) error {
	idx := attempt.CurrentSectionIndex
	if idx >= len(test.Sections)-1 {
		return s.finalize(attempt, test, trigger, at)
	}

	section := &test.Sections[idx]
	responses, err := s.responsesByQuestion(attempt.ID)
	if err != nil {
		return err
	}
	snapshot := BuildSectionSnapshot(test, section, idx, responses, trigger, at)
	snapshot.AttemptID = attempt.ID

	return s.db.Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewAttemptRepository(tx)
		if _, created, err := txRepo.InsertSectionResult(&snapshot); err != nil {
			return fmt.Errorf("recording section result: %w", err)
		} else if !created {
			log.Info().Uint("attemptID", attempt.ID).Int("section", idx).Msg("Section already frozen, keeping recorded result")
		}

		attempt.CurrentSectionIndex = idx + 1
		next := &test.Sections[idx+1]
		attempt.SectionDeadline = SectionDeadlineFor(at, time.Duration(next.DurationSec)*time.Second, attempt.OverallDeadline)
		attempt.Status = model.AttemptInProgress // section_complete is only ever transited through

		if err := txRepo.Update(attempt); err != nil {
			return fmt.Errorf("advancing to next section: %w", err)
		}
		log.Info().Uint("attemptID", attempt.ID).Int("section", idx+1).Str("trigger", trigger).Msg("Advanced to next section")
		return nil
	})
}

// finalize captures the current (possibly incomplete) section, aggregates
// all section results into the FinalResult totals and seals the attempt.
func (s *attemptService) finalize(attempt *model.Attempt, test *model.Test, trigger string, at time.Time) error {
	responses, err := s.responsesByQuestion(attempt.ID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewAttemptRepository(tx)

		idx := attempt.CurrentSectionIndex
		if idx < len(test.Sections) {
			section := &test.Sections[idx]
			snapshot := BuildSectionSnapshot(test, section, idx, responses, trigger, at)
			snapshot.AttemptID = attempt.ID
			if _, _, err := txRepo.InsertSectionResult(&snapshot); err != nil {
				return fmt.Errorf("recording final section result: %w", err)
			}
		}

		results, err := txRepo.FindSectionResults(attempt.ID)
		if err != nil {
			return fmt.Errorf("loading section results: %w", err)
		}
		total, max, percentage, _, _ := FinalTotals(results)

		submittedAt := at
		attempt.Status = model.AttemptSubmitted
		attempt.SubmittedAt = &submittedAt
		attempt.SubmitTrigger = &trigger
		attempt.TotalScore = &total
		attempt.MaxScore = &max
		attempt.Percentage = &percentage
		if err := txRepo.Update(attempt); err != nil {
			return fmt.Errorf("sealing attempt: %w", err)
		}
		log.Info().Uint("attemptID", attempt.ID).Str("trigger", trigger).Float64("score", total).Msg("Attempt submitted")
		return nil
	})
}

func (s *attemptService) responsesByQuestion(attemptID uint) (map[uint]*model.Response, error) {
	rows, err := s.attemptRepo.FindResponses(attemptID)
	if err != nil {
		return nil, fmt.Errorf("loading responses: %w", err)
	}
	byQuestion := make(map[uint]*model.Response, len(rows))
	for i := range rows {
		byQuestion[rows[i].QuestionID] = &rows[i]
	}
	return byQuestion, nil
}

// buildState reconstructs the full render/resume payload from the
// repository. Remaining time is derived from the stored deadlines at now().
func (s *attemptService) buildState(attemptID uint, test *model.Test) (*dto.AttemptStateDTO, error) {
	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		return nil, fmt.Errorf("reloading attempt: %w", err)
	}

	state := dto.AttemptStateDTO{
		ID:                  attempt.ID,
		TestID:              attempt.TestID,
		TestTitle:           test.Title,
		UserID:              attempt.UserID,
		Status:              string(attempt.Status),
		StartedAt:           attempt.StartedAt,
		CurrentSectionIndex: attempt.CurrentSectionIndex,
		TotalSections:       len(test.Sections),
	}

	clock := NewSessionClock(attempt.OverallDeadline, attempt.SectionDeadline)
	if attempt.Status != model.AttemptSubmitted {
		overall, section := clock.Remaining(s.now())
		state.Remaining = dto.RemainingTimeDTO{
			OverallSec: int64(overall / time.Second),
			SectionSec: int64(section / time.Second),
		}
	}

	byQuestion := make(map[uint]*model.Response, len(attempt.Responses))
	for i := range attempt.Responses {
		byQuestion[attempt.Responses[i].QuestionID] = &attempt.Responses[i]
	}

	if attempt.Status != model.AttemptSubmitted && attempt.CurrentSectionIndex < len(test.Sections) {
		section := &test.Sections[attempt.CurrentSectionIndex]
		view := dto.SectionViewDTO{
			Name:        section.Name,
			Index:       attempt.CurrentSectionIndex,
			DurationSec: section.DurationSec,
			Questions:   make([]dto.QuestionViewDTO, len(section.Questions)),
		}
		for i, q := range section.Questions {
			resp := byQuestion[q.ID]
			qv := dto.QuestionViewDTO{
				ID:             q.ID,
				Prompt:         q.Prompt,
				OrderInSection: q.OrderInSection,
				Status:         ClassifyQuestion(resp),
			}
			if resp != nil {
				qv.SelectedAnswer = resp.SelectedAnswer
			}
			if len(q.Options) > 0 {
				if err := json.Unmarshal(q.Options, &qv.Options); err != nil {
					log.Warn().Err(err).Uint("questionID", q.ID).Msg("Malformed options payload")
				}
			}
			view.Questions[i] = qv
		}
		state.Section = &view
	}

	state.SectionResults = make([]dto.SectionResultDTO, len(attempt.SectionResults))
	for i, sr := range attempt.SectionResults {
		if err := copier.Copy(&state.SectionResults[i], &sr); err != nil {
			return nil, fmt.Errorf("preparing section result: %w", err)
		}
	}
	return &state, nil
}

func (s *attemptService) buildFinalResult(attempt *model.Attempt, test *model.Test) (*dto.FinalResultDTO, error) {
	results, err := s.attemptRepo.FindSectionResults(attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("loading section results: %w", err)
	}
	total, max, percentage, totalQuestions, answered := FinalTotals(results)

	final := dto.FinalResultDTO{
		AttemptID:      attempt.ID,
		TestID:         attempt.TestID,
		TestTitle:      test.Title,
		UserID:         attempt.UserID,
		TotalQuestions: totalQuestions,
		Answered:       answered,
		TotalScore:     total,
		MaxScore:       max,
		Percentage:     percentage,
		Sections:       make([]dto.SectionResultDTO, len(results)),
	}
	if attempt.SubmittedAt != nil {
		final.SubmittedAt = *attempt.SubmittedAt
	}
	if attempt.SubmitTrigger != nil {
		final.Trigger = *attempt.SubmitTrigger
	}
	for i, sr := range results {
		if err := copier.Copy(&final.Sections[i], &sr); err != nil {
			return nil, fmt.Errorf("preparing final result: %w", err)
		}
	}
	return &final, nil
}
