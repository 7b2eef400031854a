package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/model"
	"github.com/nexlearn/mocktest/internal/repository"
	"github.com/rs/zerolog/log"
)

// AdminTestService creates test definitions: ordered sections with their
// question lists, durations and the marking scheme, all in one shot.
type AdminTestService interface {
	CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
}

type adminTestService struct {
	testRepo repository.TestRepository
}

func NewAdminTestService(testRepo repository.TestRepository) AdminTestService {
	return &adminTestService{testRepo: testRepo}
}

func (s *adminTestService) CreateTest(req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	sections := make([]dto.SectionCreateDTO, len(req.Sections))
	copy(sections, req.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderInTest < sections[j].OrderInTest
	})

	test := model.Test{
		Title:        req.Title,
		Description:  req.Description,
		Instructions: req.Instructions,
		DurationSec:  req.DurationSec,
		PositiveMark: req.PositiveMark,
		NegativeMark: req.NegativeMark,
	}
	for _, secReq := range sections {
		section := model.Section{
			Name:        secReq.Name,
			OrderInTest: secReq.OrderInTest,
			DurationSec: secReq.DurationSec,
		}
		for _, qReq := range secReq.Questions {
			options, err := json.Marshal(qReq.Options)
			if err != nil {
				return nil, fmt.Errorf("encoding options: %w", err)
			}
			section.Questions = append(section.Questions, model.Question{
				Prompt:         qReq.Prompt,
				Options:        options,
				CorrectAnswer:  qReq.CorrectAnswer,
				OrderInSection: qReq.OrderInSection,
			})
		}
		test.Sections = append(test.Sections, section)
	}

	if err := s.testRepo.Create(&test); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to create test")
		return nil, fmt.Errorf("creating test: %w", err)
	}
	log.Info().Uint("testID", test.ID).Int("sections", len(test.Sections)).Msg("Test created")

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
