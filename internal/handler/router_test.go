package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/internal/service"
	"github.com/noah-isme/deadline-engine/pkg/auth"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

type deadlineServiceStub struct {
	actor models.Actor
}

func (s *deadlineServiceStub) CheckPermission(ctx context.Context, deadlineID int64, actor models.Actor) (*models.PermissionResult, error) {
	s.actor = actor
	if deadlineID == 404 {
		return nil, appErrors.ErrNotFound
	}
	return &models.PermissionResult{Allowed: true, Reason: models.ReasonWithinWindow, DaysRemaining: 3}, nil
}

func (s *deadlineServiceStub) GetDeadlineStatus(ctx context.Context, projectID int64, actor models.Actor) ([]models.DeadlineStatus, error) {
	return []models.DeadlineStatus{{Deadline: models.ProjectDeadline{ID: 1, ProjectID: projectID}}}, nil
}

func (s *deadlineServiceStub) CompleteDeadline(ctx context.Context, deadlineID int64, actor models.Actor) (*models.ProjectDeadline, error) {
	return nil, appErrors.ErrDeadlineClosed
}

func (s *deadlineServiceStub) CreateProjectDeadline(ctx context.Context, projectID int64, req dto.CreateProjectDeadlineRequest, actor models.Actor) (*models.ProjectDeadline, error) {
	return &models.ProjectDeadline{ID: 9, ProjectID: projectID, Title: req.Title, DueDate: req.DueDate}, nil
}

func (s *deadlineServiceStub) ExportICS(ctx context.Context, projectID int64, actor models.Actor) ([]byte, error) {
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), nil
}

type extensionServiceStub struct {
	created dto.CreateExtensionRequest
	query   dto.ExtensionQuery
}

func (s *extensionServiceStub) Create(ctx context.Context, deadlineID int64, actor models.Actor, req dto.CreateExtensionRequest) (*models.ExtensionRequest, error) {
	s.created = req
	return &models.ExtensionRequest{ID: 1, DeadlineID: deadlineID, RequestedBy: actor.ID, Status: models.ExtensionStatusPending}, nil
}

func (s *extensionServiceStub) MarkInReview(ctx context.Context, id int64, reviewer models.Actor, note string) (*models.ExtensionRequest, error) {
	return &models.ExtensionRequest{ID: id, Status: models.ExtensionStatusInReview}, nil
}

func (s *extensionServiceStub) Review(ctx context.Context, id int64, reviewer models.Actor, req dto.ReviewExtensionRequest) (*models.ExtensionRequest, error) {
	return nil, appErrors.ErrAlreadyResolved
}

func (s *extensionServiceStub) Get(ctx context.Context, id int64, actor models.Actor) (*models.ExtensionRequest, error) {
	return &models.ExtensionRequest{ID: id}, nil
}

func (s *extensionServiceStub) List(ctx context.Context, query dto.ExtensionQuery, actor models.Actor) ([]models.ExtensionRequest, *models.Pagination, error) {
	s.query = query
	return []models.ExtensionRequest{}, &models.Pagination{Page: query.Page, PageSize: query.PageSize}, nil
}

func (s *extensionServiceStub) History(ctx context.Context, id int64, actor models.Actor) ([]models.HistoryEntry, error) {
	return []models.HistoryEntry{{ID: 1, RequestID: id, Action: models.HistoryActionCreated}}, nil
}

type periodServiceStub struct {
	toggled *bool
}

func (s *periodServiceStub) CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest, actor models.Actor) (*models.DeadlinePeriod, error) {
	return &models.DeadlinePeriod{ID: 1, Title: req.Title}, nil
}

func (s *periodServiceStub) ListPeriods(ctx context.Context, query dto.PeriodQuery) ([]models.DeadlinePeriod, *models.Pagination, error) {
	return []models.DeadlinePeriod{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (s *periodServiceStub) CurrentPeriod(ctx context.Context, category string) (*models.DeadlinePeriod, error) {
	return &models.DeadlinePeriod{ID: 3, Category: category}, nil
}

func (s *periodServiceStub) CheckPeriodPermission(ctx context.Context, category string) (*models.PermissionResult, error) {
	return &models.PermissionResult{Reason: models.ReasonPeriodDisabled}, nil
}

func (s *periodServiceStub) TogglePeriod(ctx context.Context, periodID int64, enabled bool, actor models.Actor) (*models.DeadlinePeriod, error) {
	s.toggled = &enabled
	return &models.DeadlinePeriod{ID: periodID, Enabled: enabled}, nil
}

type calendarServiceStub struct {
	filter models.CalendarFilter
}

func (s *calendarServiceStub) CreateEvent(ctx context.Context, req dto.CreateCalendarEventRequest, actor models.Actor) (*models.CalendarEvent, error) {
	return &models.CalendarEvent{ID: 1, Title: req.Title}, nil
}

func (s *calendarServiceStub) ListEvents(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, *models.Pagination, error) {
	s.filter = filter
	return []models.CalendarEvent{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (s *calendarServiceStub) ReconcileNow(ctx context.Context, actor models.Actor) (*dto.ReconcileReport, error) {
	return &dto.ReconcileReport{PeriodsCreated: 1}, nil
}

type routerFixture struct {
	engine     *gin.Engine
	verifier   *auth.Verifier
	deadlines  *deadlineServiceStub
	extensions *extensionServiceStub
	periods    *periodServiceStub
	calendar   *calendarServiceStub
}

func newRouterFixture(checks map[string]ReadinessCheck) *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		engine:     gin.New(),
		verifier:   auth.NewVerifier("test-secret"),
		deadlines:  &deadlineServiceStub{},
		extensions: &extensionServiceStub{},
		periods:    &periodServiceStub{},
		calendar:   &calendarServiceStub{},
	}
	RegisterRoutes(f.engine, "/api/v1", f.verifier, Handlers{
		Deadlines:  NewDeadlineHandler(f.deadlines),
		Extensions: NewExtensionHandler(f.extensions),
		Periods:    NewPeriodHandler(f.periods),
		Calendar:   NewCalendarHandler(f.calendar),
		Metrics:    NewMetricsHandler(service.NewMetricsService(), checks),
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := f.verifier.Sign(auth.Claims{
			UserID:           "user-" + role,
			Role:             role,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestDeadlineRoutes(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(t, http.MethodGet, "/api/v1/deadlines/5/permission", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/deadlines/5/permission", "student", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Actor{ID: "user-student", Role: models.RoleStudent}, f.deadlines.actor)

	rec = f.do(t, http.MethodGet, "/api/v1/deadlines/abc/permission", "STUDENT", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/deadlines/404/permission", "STUDENT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/deadlines/5/complete", "PROFESSOR", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/deadlines/5/complete", "STUDENT", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, appErrors.ErrDeadlineClosed.Code, errorCode(t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/projects/10/deadlines/status", "PROFESSOR", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/projects/10/deadlines", "STUDENT", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/projects/10/deadlines", "PROFESSOR", map[string]interface{}{
		"category": "defense", "title": "Defense", "due_date": "2025-09-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/projects/10/deadlines.ics", "STUDENT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calendarContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "project-10-deadlines.ics")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
}

func TestExtensionRoutes(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(t, http.MethodPost, "/api/v1/deadlines/1/extensions", "STUDENT", map[string]interface{}{
		"requested_date": "2025-07-10T00:00:00Z", "justification": "field work delayed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), f.extensions.created.RequestedDate)

	rec = f.do(t, http.MethodPost, "/api/v1/deadlines/1/extensions", "STUDENT", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/extensions?status=Pending,%20in_review&deadline_id=4&page=2", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.ExtensionStatus{models.ExtensionStatusPending, models.ExtensionStatusInReview}, f.extensions.query.Status)
	assert.Equal(t, int64(4), f.extensions.query.DeadlineID)
	assert.Equal(t, 2, f.extensions.query.Page)

	rec = f.do(t, http.MethodGet, "/api/v1/extensions?project_id=x", "ADMIN", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/extensions/1/in-review", "PROFESSOR", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/extensions/1/in-review", "ADMIN", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/extensions/1/review", "SUPERADMIN", map[string]interface{}{"decision": "approve"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrAlreadyResolved.Code, errorCode(t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/extensions/1/history", "STUDENT", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPeriodRoutes(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(t, http.MethodGet, "/api/v1/periods/current/submission", "STUDENT", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/periods/current/submission/permission", "STUDENT", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/periods?enabled=maybe", "STUDENT", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/v1/periods/3/enabled", "ADMIN", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.periods.toggled)

	rec = f.do(t, http.MethodPatch, "/api/v1/periods/3/enabled", "ADMIN", map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.periods.toggled)
	assert.False(t, *f.periods.toggled)

	rec = f.do(t, http.MethodPost, "/api/v1/periods", "PROFESSOR", map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCalendarRoutes(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(t, http.MethodGet, "/api/v1/calendar/events?from=2025-04-01&global=true", "STUDENT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.calendar.filter.From)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *f.calendar.filter.From)
	assert.True(t, f.calendar.filter.GlobalOnly)
	assert.False(t, f.calendar.filter.ActiveOnly)

	rec = f.do(t, http.MethodGet, "/api/v1/calendar/events?to=yesterday", "STUDENT", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/reconcile", "STUDENT", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/calendar/reconcile", "ADMIN", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsRoutes(t *testing.T) {
	f := newRouterFixture(map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics/summary", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
