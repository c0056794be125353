package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
	"github.com/noah-isme/deadline-engine/pkg/response"
)

const calendarContentType = "text/calendar; charset=utf-8"

type deadlineService interface {
	CheckPermission(ctx context.Context, deadlineID int64, actor models.Actor) (*models.PermissionResult, error)
	GetDeadlineStatus(ctx context.Context, projectID int64, actor models.Actor) ([]models.DeadlineStatus, error)
	CompleteDeadline(ctx context.Context, deadlineID int64, actor models.Actor) (*models.ProjectDeadline, error)
	CreateProjectDeadline(ctx context.Context, projectID int64, req dto.CreateProjectDeadlineRequest, actor models.Actor) (*models.ProjectDeadline, error)
	ExportICS(ctx context.Context, projectID int64, actor models.Actor) ([]byte, error)
}

// DeadlineHandler exposes project deadline endpoints.
type DeadlineHandler struct {
	service deadlineService
}

// NewDeadlineHandler constructs the handler.
func NewDeadlineHandler(service deadlineService) *DeadlineHandler {
	return &DeadlineHandler{service: service}
}

// CheckPermission godoc
// @Summary Check whether the project may act on a deadline now
// @Tags Deadlines
// @Produce json
// @Param id path int true "Deadline ID"
// @Success 200 {object} response.Envelope
// @Router /deadlines/{id}/permission [get]
func (h *DeadlineHandler) CheckPermission(c *gin.Context) {
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
	result, err := h.service.CheckPermission(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Complete godoc
// @Summary Mark a deadline as completed
// @Tags Deadlines
// @Produce json
// @Param id path int true "Deadline ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /deadlines/{id}/complete [post]
func (h *DeadlineHandler) Complete(c *gin.Context) {
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
	deadline, err := h.service.CompleteDeadline(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadline, nil)
}

// Status godoc
// @Summary List deadline statuses for a project dashboard
// @Tags Deadlines
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/deadlines/status [get]
func (h *DeadlineHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projectID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	statuses, err := h.service.GetDeadlineStatus(c.Request.Context(), projectID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// Create godoc
// @Summary Create a project deadline
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param payload body dto.CreateProjectDeadlineRequest true "Deadline payload"
// @Success 201 {object} response.Envelope
// @Router /projects/{id}/deadlines [post]
func (h *DeadlineHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projectID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateProjectDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deadline payload"))
		return
	}
	deadline, err := h.service.CreateProjectDeadline(c.Request.Context(), projectID, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, deadline)
}

// ExportICS godoc
// @Summary Export project deadlines as an iCalendar feed
// @Tags Deadlines
// @Produce text/calendar
// @Param id path int true "Project ID"
// @Success 200 {string} string "iCalendar feed"
// @Router /projects/{id}/deadlines.ics [get]
func (h *DeadlineHandler) ExportICS(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projectID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	feed, err := h.service.ExportICS(c.Request.Context(), projectID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=project-%d-deadlines.ics", projectID))
	response.Raw(c, http.StatusOK, calendarContentType, feed)
}
