package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
	"github.com/noah-isme/deadline-engine/pkg/response"
)

type periodService interface {
	CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest, actor models.Actor) (*models.DeadlinePeriod, error)
	ListPeriods(ctx context.Context, query dto.PeriodQuery) ([]models.DeadlinePeriod, *models.Pagination, error)
	CurrentPeriod(ctx context.Context, category string) (*models.DeadlinePeriod, error)
	CheckPeriodPermission(ctx context.Context, category string) (*models.PermissionResult, error)
	TogglePeriod(ctx context.Context, periodID int64, enabled bool, actor models.Actor) (*models.DeadlinePeriod, error)
}

// PeriodHandler exposes global deadline period endpoints.
type PeriodHandler struct {
	service periodService
}

// NewPeriodHandler constructs the handler.
func NewPeriodHandler(service periodService) *PeriodHandler {
	return &PeriodHandler{service: service}
}

// List godoc
// @Summary List deadline periods
// @Tags Periods
// @Produce json
// @Param category query string false "Category"
// @Param enabled query bool false "Enabled flag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	enabled, err := parseQueryBool(c, "enabled")
	if err != nil {
		response.Error(c, err)
		return
	}
	periods, pagination, err := h.service.ListPeriods(c.Request.Context(), dto.PeriodQuery{
		Category: c.Query("category"),
		Enabled:  enabled,
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Create godoc
// @Summary Create a deadline period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body dto.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid period payload"))
		return
	}
	period, err := h.service.CreatePeriod(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Current godoc
// @Summary Get the current period of a category
// @Tags Periods
// @Produce json
// @Param category path string true "Category"
// @Success 200 {object} response.Envelope
// @Router /periods/current/{category} [get]
func (h *PeriodHandler) Current(c *gin.Context) {
	period, err := h.service.CurrentPeriod(c.Request.Context(), c.Param("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Permission godoc
// @Summary Check whether the current period of a category is open
// @Tags Periods
// @Produce json
// @Param category path string true "Category"
// @Success 200 {object} response.Envelope
// @Router /periods/current/{category}/permission [get]
func (h *PeriodHandler) Permission(c *gin.Context) {
	result, err := h.service.CheckPeriodPermission(c.Request.Context(), c.Param("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Toggle godoc
// @Summary Manually enable or disable a period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path int true "Period ID"
// @Param payload body dto.TogglePeriodRequest true "Enabled flag"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/enabled [patch]
func (h *PeriodHandler) Toggle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.TogglePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enabled flag is required"))
		return
	}
	period, err := h.service.TogglePeriod(c.Request.Context(), id, *req.Enabled, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}
