package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexlearn/mocktest/internal/dto"
	"github.com/nexlearn/mocktest/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	adminTestService service.AdminTestService
	reportService    service.ReportService
}

func NewAdminTestController(ats service.AdminTestService, rs service.ReportService) *AdminTestController {
	return &AdminTestController{
		adminTestService: ats,
		reportService:    rs,
	}
}

// CreateTest godoc
// @Summary (Admin) Create a new test definition
// @Description Creates a test with its ordered sections, per-section timed question lists, marking scheme and answer keys.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test body dto.TestCreateDTO true "Test definition"
// @Success 201 {object} dto.TestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid request body"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind TestCreateDTO")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}

	// Section order must be unique; duplicated indexes would make the
	// traversal order ambiguous.
	orders := make(map[int]bool)
	for _, sec := range req.Sections {
		if orders[sec.OrderInTest] {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error: fmt.Sprintf("Duplicate order_in_test %d", sec.OrderInTest),
				Code:  "validation",
			})
			return
		}
		orders[sec.OrderInTest] = true
	}

	resp, err := c.adminTestService.CreateTest(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create test")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create test: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ExportResults godoc
// @Summary (Admin) Export submitted results for a test as xlsx
// @Tags Admin - Tests
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param test_id path int true "Test ID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/tests/{test_id}/results/export [get]
func (c *AdminTestController) ExportResults(ctx *gin.Context) {
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid test ID format", Code: "validation"})
		return
	}

	payload, err := c.reportService.ExportResultsExcel(uint(testID))
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: "not_found"})
			return
		}
		log.Error().Err(err).Uint64("testID", testID).Msg("Failed to export results")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to export results"})
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="test_%d_results.xlsx"`, testID))
	ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}
