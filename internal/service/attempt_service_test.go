package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/model"
	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngine(t *testing.T) (*attemptService, *fakeClock, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Test{},
		&model.Section{},
		&model.Question{},
		&model.Attempt{},
		&model.Response{},
		&model.SectionResult{},
	))

	svc := NewAttemptService(repository.NewTestRepository(db), repository.NewAttemptRepository(db), db).(*attemptService)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, clock, db
}

// Three sections with 2, 2 and 1 questions, 15 minutes each, 30 minutes
// overall, +1/-0 marking.
func seedThreeSectionTest(t *testing.T, db *gorm.DB) *model.Test {
	t.Helper()
	test := &model.Test{
		Title:        "SSC CGL Mock 1",
		DurationSec:  1800,
		PositiveMark: 1,
		NegativeMark: 0,
		Sections: []model.Section{
			{
				Name: "Reasoning", OrderInTest: 1, DurationSec: 900,
				Questions: []model.Question{
					{Prompt: "R1", CorrectAnswer: "A", OrderInSection: 1},
					{Prompt: "R2", CorrectAnswer: "B", OrderInSection: 2},
				},
			},
			{
				Name: "Quant", OrderInTest: 2, DurationSec: 900,
				Questions: []model.Question{
					{Prompt: "Q1", CorrectAnswer: "C", OrderInSection: 1},
					{Prompt: "Q2", CorrectAnswer: "D", OrderInSection: 2},
				},
			},
			{
				Name: "English", OrderInTest: 3, DurationSec: 900,
				Questions: []model.Question{
					{Prompt: "E1", CorrectAnswer: "A", OrderInSection: 1},
				},
			},
		},
	}
	require.NoError(t, db.Create(test).Error)
	return test
}

func questionID(test *model.Test, section, question int) uint {
	return test.Sections[section].Questions[question].ID
}

func TestStartCreatesAttemptAnchoredAtNow(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, string(model.AttemptInProgress), state.Status)
	assert.Equal(t, 0, state.CurrentSectionIndex)
	assert.Equal(t, 3, state.TotalSections)
	assert.Equal(t, int64(1800), state.Remaining.OverallSec)
	assert.Equal(t, int64(900), state.Remaining.SectionSec)
	require.NotNil(t, state.Section)
	require.Len(t, state.Section.Questions, 2)
	for _, q := range state.Section.Questions {
		assert.Equal(t, dto.StatusNotVisited, q.Status)
	}
}

func TestStartAgainResumesOpenAttempt(t *testing.T) {
	svc, clock, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	first, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "A"
	_, err = svc.SaveResponse(first.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 0), SelectedAnswer: &answer})
	require.NoError(t, err)

	// Ten minutes offline must cost exactly ten minutes, and the saved
	// answer must come back from the repository, not from any client state.
	clock.Advance(10 * time.Minute)
	resumed, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, first.ID, resumed.ID, "resume must reuse the open attempt, never duplicate it")
	assert.Equal(t, int64(1200), resumed.Remaining.OverallSec)
	assert.Equal(t, int64(300), resumed.Remaining.SectionSec)
	require.NotNil(t, resumed.Section)
	assert.Equal(t, dto.StatusAnswered, resumed.Section.Questions[0].Status)
	require.NotNil(t, resumed.Section.Questions[0].SelectedAnswer)
	assert.Equal(t, "A", *resumed.Section.Questions[0].SelectedAnswer)
}

func TestAttemptsAreIsolatedPerUser(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	a, err := svc.StartOrResume(test.ID, 1)
	require.NoError(t, err)
	b, err := svc.StartOrResume(test.ID, 2)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSaveResponseRejectsQuestionOutsideActiveSection(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "C"
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 1, 0), SelectedAnswer: &answer})
	assert.ErrorIs(t, err, ErrQuestionNotInSection)

	// The rejected write must leave no trace.
	var count int64
	require.NoError(t, db.Model(&model.Response{}).Where("attempt_id = ?", state.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVisitQuestionBoundsChecked(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	_, err = svc.VisitQuestion(state.ID, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	updated, err := svc.VisitQuestion(state.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusVisited, updated.Section.Questions[1].Status)
	assert.Equal(t, dto.StatusNotVisited, updated.Section.Questions[0].Status)
}

func TestClearPreservesMarkAndVisited(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	qid := questionID(test, 0, 0)

	answer := "A"
	marked := true
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: qid, SelectedAnswer: &answer, MarkedForReview: &marked})
	require.NoError(t, err)

	cleared, err := svc.ClearResponse(state.ID, qid)
	require.NoError(t, err)

	q := cleared.Section.Questions[0]
	assert.Nil(t, q.SelectedAnswer)
	assert.Equal(t, dto.StatusMarked, q.Status, "clearing an answer keeps the review flag and visited state")
}

func TestToggleMarkFlipsBothWays(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	qid := questionID(test, 0, 1)

	marked, err := svc.ToggleMark(state.ID, qid)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusMarked, marked.Section.Questions[1].Status)

	unmarked, err := svc.ToggleMark(state.ID, qid)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusNotVisited, unmarked.Section.Questions[1].Status)
}

// The walkthrough from the section-transition design: answer Q1 of section
// one only, complete it manually, pass through the remaining sections
// untouched.
func TestManualWalkthroughScenario(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "A" // correct for R1
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 0), SelectedAnswer: &answer})
	require.NoError(t, err)

	after, err := svc.CompleteSection(state.ID, 0, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentSectionIndex)
	require.Len(t, after.SectionResults, 1)
	sr := after.SectionResults[0]
	assert.Equal(t, 2, sr.TotalQuestions)
	assert.Equal(t, 1, sr.Answered)
	assert.Equal(t, 1, sr.NotAnswered)
	assert.Equal(t, model.TriggerManual, sr.Trigger)

	_, err = svc.CompleteSection(state.ID, 1, model.TriggerManual)
	require.NoError(t, err)
	// Completing the last section submits the attempt.
	_, err = svc.CompleteSection(state.ID, 2, model.TriggerManual)
	require.NoError(t, err)

	final, err := svc.Result(state.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, final.TotalQuestions)
	assert.Equal(t, 1, final.Answered)
	assert.Equal(t, 1.0, final.TotalScore)
	assert.Equal(t, 5.0, final.MaxScore)
	assert.InDelta(t, 20.0, final.Percentage, 0.0001)
	require.Len(t, final.Sections, 3)
}

func TestCompleteSectionIsIdempotent(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "A"
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 0), SelectedAnswer: &answer})
	require.NoError(t, err)

	first, err := svc.CompleteSection(state.ID, 0, model.TriggerManual)
	require.NoError(t, err)

	// A retried completion for the frozen section is a success-no-op and
	// must not double-count or overwrite the recorded result.
	second, err := svc.CompleteSection(state.ID, 0, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, first.SectionResults, second.SectionResults)
	assert.Equal(t, 1, second.CurrentSectionIndex)

	var count int64
	require.NoError(t, db.Model(&model.SectionResult{}).Where("attempt_id = ?", state.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCompleteSectionRejectsWrongIndex(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	_, err = svc.CompleteSection(state.ID, 2, model.TriggerManual)
	assert.ErrorIs(t, err, ErrSectionMismatch)
}

func TestSubmitIsIdempotent(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "B"
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 1), SelectedAnswer: &answer})
	require.NoError(t, err)

	first, err := svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)
	second, err := svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated submit must return the recorded FinalResult")

	var count int64
	require.NoError(t, db.Model(&model.SectionResult{}).Where("attempt_id = ?", state.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "repeat submits must not add section results")
}

func TestSubmittedAttemptRejectsMutations(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	_, err = svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)

	answer := "A"
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 0), SelectedAnswer: &answer})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = svc.VisitQuestion(state.ID, 0)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = svc.ToggleMark(state.ID, questionID(test, 0, 0))
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestStartAfterSubmitCreatesFreshAttempt(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	first, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	_, err = svc.Submit(first.ID, model.TriggerManual)
	require.NoError(t, err)

	second, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "a submitted attempt is terminal; a new start opens a new attempt")
	assert.Equal(t, string(model.AttemptInProgress), second.Status)
}

func TestSectionTimeoutAutoAdvancesExactlyOnce(t *testing.T) {
	svc, clock, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	answer := "A"
	_, err = svc.SaveResponse(state.ID, dto.SaveResponseDTO{QuestionID: questionID(test, 0, 0), SelectedAnswer: &answer})
	require.NoError(t, err)

	// 100 seconds past the first section deadline.
	clock.Advance(1000 * time.Second)

	after, err := svc.GetState(state.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentSectionIndex)
	require.Len(t, after.SectionResults, 1)
	assert.Equal(t, model.TriggerSectionTimeout, after.SectionResults[0].Trigger)
	assert.Equal(t, 1, after.SectionResults[0].Answered, "snapshot reflects the answers present at expiry")

	// The second section began at the first one's deadline (t+900s), so at
	// t+1000s it has 800s left.
	assert.Equal(t, int64(800), after.Remaining.SectionSec)
	assert.Equal(t, int64(800), after.Remaining.OverallSec)

	// Further reads do not re-fire the transition.
	again, err := svc.GetState(state.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentSectionIndex)
	require.Len(t, again.SectionResults, 1)
}

func TestOverallTimeoutSubmitsExactlyOnce(t *testing.T) {
	svc, clock, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	// Well past the overall deadline: section one expired at t+900s, the
	// clamped section two deadline coincides with the overall deadline at
	// t+1800s, where the overall expiry wins and submits.
	clock.Advance(2000 * time.Second)

	after, err := svc.GetState(state.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.AttemptSubmitted), after.Status)

	final, err := svc.Result(state.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TriggerOverallTimeout, final.Trigger)
	require.Len(t, final.Sections, 2)
	assert.Equal(t, model.TriggerSectionTimeout, final.Sections[0].Trigger)
	assert.Equal(t, model.TriggerOverallTimeout, final.Sections[1].Trigger)

	// Submitting again is a no-op returning the same result.
	resubmit, err := svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, final.TotalScore, resubmit.TotalScore)
	assert.Equal(t, final.SubmittedAt, resubmit.SubmittedAt)
}

func TestDeadlineSweepSubmitsDisconnectedAttempts(t *testing.T) {
	svc, clock, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	clock.Advance(2000 * time.Second)
	settled, err := svc.EnforceDeadlines(clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	var attempt model.Attempt
	require.NoError(t, db.First(&attempt, state.ID).Error)
	assert.Equal(t, model.AttemptSubmitted, attempt.Status)
	require.NotNil(t, attempt.SubmitTrigger)
	assert.Equal(t, model.TriggerOverallTimeout, *attempt.SubmitTrigger)

	// A second sweep finds nothing left to settle.
	settled, err = svc.EnforceDeadlines(clock.Now())
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestZeroQuestionTestReportsZeroPercent(t *testing.T) {
	svc, _, db := newEngine(t)
	empty := &model.Test{
		Title:       "Empty shell",
		DurationSec: 600,
		Sections:    []model.Section{{Name: "Hollow", OrderInTest: 1, DurationSec: 600}},
	}
	require.NoError(t, db.Create(empty).Error)

	state, err := svc.StartOrResume(empty.ID, 7)
	require.NoError(t, err)

	final, err := svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0.0, final.Percentage)
	assert.Equal(t, 0.0, final.MaxScore)
	assert.Equal(t, 0, final.TotalQuestions)
}

func TestListAttempts(t *testing.T) {
	svc, _, db := newEngine(t)
	test := seedThreeSectionTest(t, db)

	state, err := svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)
	_, err = svc.Submit(state.ID, model.TriggerManual)
	require.NoError(t, err)
	_, err = svc.StartOrResume(test.ID, 7)
	require.NoError(t, err)

	attempts, err := svc.ListAttempts(test.ID, 7)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
}
