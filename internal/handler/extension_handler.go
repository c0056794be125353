package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
	"github.com/noah-isme/deadline-engine/pkg/response"
)

type extensionService interface {
	Create(ctx context.Context, deadlineID int64, actor models.Actor, req dto.CreateExtensionRequest) (*models.ExtensionRequest, error)
	MarkInReview(ctx context.Context, id int64, reviewer models.Actor, note string) (*models.ExtensionRequest, error)
	Review(ctx context.Context, id int64, reviewer models.Actor, req dto.ReviewExtensionRequest) (*models.ExtensionRequest, error)
	Get(ctx context.Context, id int64, actor models.Actor) (*models.ExtensionRequest, error)
	List(ctx context.Context, query dto.ExtensionQuery, actor models.Actor) ([]models.ExtensionRequest, *models.Pagination, error)
	History(ctx context.Context, id int64, actor models.Actor) ([]models.HistoryEntry, error)
}

// ExtensionHandler exposes REST endpoints for the extension workflow.
type ExtensionHandler struct {
	service extensionService
}

// NewExtensionHandler constructs the handler.
func NewExtensionHandler(service extensionService) *ExtensionHandler {
	return &ExtensionHandler{service: service}
}

// Create godoc
// @Summary Request a deadline extension
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path int true "Deadline ID"
// @Param payload body dto.CreateExtensionRequest true "Extension payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deadlines/{id}/extensions [post]
func (h *ExtensionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deadlineID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid extension payload"))
		return
	}
	extension, err := h.service.Create(c.Request.Context(), deadlineID, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, extension)
}

// List godoc
// @Summary List extension requests
// @Tags Extensions
// @Produce json
// @Param deadline_id query int false "Deadline ID"
// @Param project_id query int false "Project ID"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /extensions [get]
func (h *ExtensionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deadlineID, err := parseQueryInt64(c, "deadline_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	projectID, err := parseQueryInt64(c, "project_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.ExtensionQuery{
		DeadlineID: deadlineID,
		ProjectID:  projectID,
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.ExtensionStatus(part))
		}
	}
	extensions, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extensions, pagination)
}

// Get godoc
// @Summary Get extension request detail
// @Tags Extensions
// @Produce json
// @Param id path int true "Extension ID"
// @Success 200 {object} response.Envelope
// @Router /extensions/{id} [get]
func (h *ExtensionHandler) Get(c *gin.Context) {
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
	extension, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extension, nil)
}

// History godoc
// @Summary List the audit trail of an extension request
// @Tags Extensions
// @Produce json
// @Param id path int true "Extension ID"
// @Success 200 {object} response.Envelope
// @Router /extensions/{id}/history [get]
func (h *ExtensionHandler) History(c *gin.Context) {
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
	history, err := h.service.History(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// MarkInReview godoc
// @Summary Take a pending extension request into review
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path int true "Extension ID"
// @Param payload body dto.MarkInReviewRequest false "Reviewer note"
// @Success 200 {object} response.Envelope
// @Router /extensions/{id}/in-review [post]
func (h *ExtensionHandler) MarkInReview(c *gin.Context) {
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
	var req dto.MarkInReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
			return
		}
	}
	extension, err := h.service.MarkInReview(c.Request.Context(), id, actor, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extension, nil)
}

// Review godoc
// @Summary Approve or reject an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path int true "Extension ID"
// @Param payload body dto.ReviewExtensionRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /extensions/{id}/review [post]
func (h *ExtensionHandler) Review(c *gin.Context) {
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
	var req dto.ReviewExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	extension, err := h.service.Review(c.Request.Context(), id, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extension, nil)
}
