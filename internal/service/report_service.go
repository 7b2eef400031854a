package service

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService exports submitted attempt results for a test as an xlsx
// workbook, one row per attempt.
type ReportService interface {
	ExportResultsExcel(testID uint) ([]byte, error)
}

type reportService struct {
	testRepo    repository.TestRepository
	attemptRepo repository.AttemptRepository
}

func NewReportService(testRepo repository.TestRepository, attemptRepo repository.AttemptRepository) ReportService {
	return &reportService{testRepo: testRepo, attemptRepo: attemptRepo}
}

func (s *reportService) ExportResultsExcel(testID uint) ([]byte, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("loading test: %w", err)
	}

	attempts, err := s.attemptRepo.FindSubmittedByTest(testID)
	if err != nil {
		return nil, fmt.Errorf("loading submitted attempts: %w", err)
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "user_id", "started_at", "submitted_at", "trigger", "total_score", "max_score", "percentage"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, a := range attempts {
		row := i + 2
		submittedAt := ""
		if a.SubmittedAt != nil {
			submittedAt = a.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		trigger := ""
		if a.SubmitTrigger != nil {
			trigger = *a.SubmitTrigger
		}
		var totalScore, maxScore, percentage float64
		if a.TotalScore != nil {
			totalScore = *a.TotalScore
		}
		if a.MaxScore != nil {
			maxScore = *a.MaxScore
		}
		if a.Percentage != nil {
			percentage = *a.Percentage
		}
		values := []any{
			a.ID,
			a.UserID,
			a.StartedAt.Format("2006-01-02 15:04:05"),
			submittedAt,
			trigger,
			totalScore,
			maxScore,
			percentage,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "H", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	log.Info().Uint("testID", test.ID).Int("rows", len(attempts)).Msg("Exported results workbook")
	return buf.Bytes(), nil
}
