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

type calendarService interface {
	CreateEvent(ctx context.Context, req dto.CreateCalendarEventRequest, actor models.Actor) (*models.CalendarEvent, error)
	ListEvents(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, *models.Pagination, error)
	ReconcileNow(ctx context.Context, actor models.Actor) (*dto.ReconcileReport, error)
}

// CalendarHandler exposes academic calendar endpoints.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// List godoc
// @Summary List calendar events
// @Tags Calendar
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param global query bool false "Only global events"
// @Param active query bool false "Only active events"
// @Success 200 {object} response.Envelope
// @Router /calendar/events [get]
func (h *CalendarHandler) List(c *gin.Context) {
	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	global, err := parseQueryBool(c, "global")
	if err != nil {
		response.Error(c, err)
		return
	}
	active, err := parseQueryBool(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.CalendarFilter{
		From:       from,
		To:         to,
		GlobalOnly: global != nil && *global,
		ActiveOnly: active != nil && *active,
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}
	events, pagination, err := h.service.ListEvents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Create godoc
// @Summary Create a calendar event
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.CreateCalendarEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /calendar/events [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid calendar payload"))
		return
	}
	event, err := h.service.CreateEvent(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Reconcile godoc
// @Summary Reconcile calendar events with deadline periods now
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/reconcile [post]
func (h *CalendarHandler) Reconcile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.ReconcileNow(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
