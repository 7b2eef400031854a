package service

import (
	"errors"
	"fmt"

	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TestService is the candidate-facing read side of the definition store.
// Responses never include answer keys.
type TestService interface {
	GetAllTests() ([]dto.TestSummaryDTO, error)
	GetTestDetails(testID uint) (*dto.TestResponseDTO, error)
}

type testService struct {
	testRepo repository.TestRepository
}

func NewTestService(testRepo repository.TestRepository) TestService {
	return &testService{testRepo: testRepo}
}

func (s *testService) GetAllTests() ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllWithSectionCount()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tests")
		return nil, fmt.Errorf("fetching tests: %w", err)
	}

	var dtos []dto.TestSummaryDTO
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:           twc.Test.ID,
			Title:        twc.Test.Title,
			Description:  twc.Test.Description,
			DurationSec:  twc.Test.DurationSec,
			SectionCount: twc.SectionCount,
			CreatedAt:    twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

func (s *testService) GetTestDetails(testID uint) (*dto.TestResponseDTO, error) {
	test, err := s.testRepo.FindByIDWithSections(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to load test details")
		return nil, fmt.Errorf("fetching test %d: %w", testID, err)
	}

	resp := dto.TestResponseDTO{
		ID:           test.ID,
		Title:        test.Title,
		Description:  test.Description,
		Instructions: test.Instructions,
		DurationSec:  test.DurationSec,
		PositiveMark: test.PositiveMark,
		NegativeMark: test.NegativeMark,
		CreatedAt:    test.CreatedAt,
		Sections:     make([]dto.SectionOutline, len(test.Sections)),
	}
	for i, sec := range test.Sections {
		resp.Sections[i] = dto.SectionOutline{
			Name:          sec.Name,
			OrderInTest:   sec.OrderInTest,
			DurationSec:   sec.DurationSec,
			QuestionCount: len(sec.Questions),
		}
	}
	return &resp, nil
}
