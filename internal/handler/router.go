package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deadline-engine/internal/middleware"
	"github.com/noah-isme/deadline-engine/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Deadlines  *DeadlineHandler
	Extensions *ExtensionHandler
	Periods    *PeriodHandler
	Calendar   *CalendarHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts ops endpoints at the root and the engine API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, verifier middleware.TokenVerifier, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
		r.GET("/metrics/summary", h.Metrics.Summary)
	}

	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	staff := middleware.RequireRoles(models.RoleProfessor, models.RoleAdmin, models.RoleSuperAdmin)
	students := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(prefix)
	api.Use(middleware.JWT(verifier))

	if h.Deadlines != nil {
		api.GET("/deadlines/:id/permission", h.Deadlines.CheckPermission)
		api.POST("/deadlines/:id/complete", students, h.Deadlines.Complete)
		api.GET("/projects/:id/deadlines/status", h.Deadlines.Status)
		api.GET("/projects/:id/deadlines.ics", h.Deadlines.ExportICS)
		api.POST("/projects/:id/deadlines", staff, h.Deadlines.Create)
	}

	if h.Extensions != nil {
		api.POST("/deadlines/:id/extensions", students, h.Extensions.Create)
		api.GET("/extensions", h.Extensions.List)
		api.GET("/extensions/:id", h.Extensions.Get)
		api.GET("/extensions/:id/history", h.Extensions.History)
		api.POST("/extensions/:id/in-review", admins, h.Extensions.MarkInReview)
		api.POST("/extensions/:id/review", admins, h.Extensions.Review)
	}

	if h.Periods != nil {
		api.GET("/periods", h.Periods.List)
		api.POST("/periods", admins, h.Periods.Create)
		api.GET("/periods/current/:category", h.Periods.Current)
		api.GET("/periods/current/:category/permission", h.Periods.Permission)
		api.PATCH("/periods/:id/enabled", admins, h.Periods.Toggle)
	}

	if h.Calendar != nil {
		api.GET("/calendar/events", h.Calendar.List)
		api.POST("/calendar/events", admins, h.Calendar.Create)
		api.POST("/calendar/reconcile", admins, h.Calendar.Reconcile)
	}
}
