package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/internal/repository"
)

type notifierStub struct {
	mu     sync.Mutex
	events []models.DeadlineEvent
}

func (n *notifierStub) Emit(_ context.Context, event models.DeadlineEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *notifierStub) types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// txStub runs callbacks without a database. When serial is set it holds a
// lock for the whole callback, standing in for the row lock a real
// transaction takes on the deadline.
type txStub struct {
	serial bool
	mu     sync.Mutex
}

func (t *txStub) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	if t.serial {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	return fn(nil)
}

type extensionStoreStub struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.ExtensionRequest
	history  []models.HistoryEntry
	filter   models.ExtensionFilter
}

func newExtensionStoreStub() *extensionStoreStub {
	return &extensionStoreStub{requests: make(map[int64]*models.ExtensionRequest)}
}

// Create rejects a second open request per deadline like the partial unique index.
func (s *extensionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExtensionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.DeadlineID == req.DeadlineID && existing.Status.IsOpen() {
			return repository.ErrOpenRequestExists
		}
	}
	s.nextID++
	req.ID = s.nextID
	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

func (s *extensionStoreStub) GetByID(ctx context.Context, id int64) (*models.ExtensionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *req
	return &copy, nil
}

func (s *extensionStoreStub) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ExtensionRequest, error) {
	return s.GetByID(ctx, id)
}

func (s *extensionStoreStub) ListByDeadline(ctx context.Context, exec sqlx.ExtContext, deadlineID int64) ([]models.ExtensionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExtensionRequest
	for id := int64(1); id <= s.nextID; id++ {
		if req, ok := s.requests[id]; ok && req.DeadlineID == deadlineID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *extensionStoreStub) ListByDeadlines(ctx context.Context, deadlineIDs []int64) ([]models.ExtensionRequest, error) {
	var out []models.ExtensionRequest
	for _, id := range deadlineIDs {
		list, _ := s.ListByDeadline(ctx, nil, id)
		out = append(out, list...)
	}
	return out, nil
}

func (s *extensionStoreStub) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	var out []models.ExtensionRequest
	for id := int64(1); id <= s.nextID; id++ {
		req, ok := s.requests[id]
		if !ok {
			continue
		}
		if filter.RequestedBy != "" && req.RequestedBy != filter.RequestedBy {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

// Transition applies the same status guard as the conditional UPDATE.
func (s *extensionStoreStub) Transition(ctx context.Context, exec sqlx.ExtContext, params repository.TransitionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[params.ID]
	if !ok || !statusIn(req.Status, params.From) {
		return sql.ErrNoRows
	}
	req.Status = params.To
	reviewer := params.Reviewer
	req.ReviewedBy = &reviewer
	if params.Comments != nil {
		req.ReviewerComments = params.Comments
	}
	if params.To.IsTerminal() {
		at := params.At
		req.ResolvedAt = &at
	}
	return nil
}

func (s *extensionStoreStub) AppendHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.history) + 1)
	s.history = append(s.history, *entry)
	return nil
}

func (s *extensionStoreStub) ListHistory(ctx context.Context, requestID int64) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEntry
	for _, entry := range s.history {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *extensionStoreStub) status(id int64) models.ExtensionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

func (s *extensionStoreStub) openCount(deadlineID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.DeadlineID == deadlineID && req.Status.IsOpen() {
			count++
		}
	}
	return count
}

type deadlineStoreStub struct {
	mu        sync.Mutex
	nextID    int64
	deadlines map[int64]*models.ProjectDeadline
}

func newDeadlineStoreStub(deadlines ...models.ProjectDeadline) *deadlineStoreStub {
	s := &deadlineStoreStub{deadlines: make(map[int64]*models.ProjectDeadline)}
	for i := range deadlines {
		d := deadlines[i]
		s.deadlines[d.ID] = &d
		if d.ID > s.nextID {
			s.nextID = d.ID
		}
	}
	return s
}

func (s *deadlineStoreStub) Create(ctx context.Context, deadline *models.ProjectDeadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	deadline.ID = s.nextID
	stored := *deadline
	s.deadlines[deadline.ID] = &stored
	return nil
}

func (s *deadlineStoreStub) GetByID(ctx context.Context, id int64) (*models.ProjectDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *d
	return &copy, nil
}

func (s *deadlineStoreStub) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectDeadline, error) {
	return s.GetByID(ctx, id)
}

func (s *deadlineStoreStub) ListByProject(ctx context.Context, projectID int64) ([]models.ProjectDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProjectDeadline
	for id := int64(1); id <= s.nextID; id++ {
		if d, ok := s.deadlines[id]; ok && d.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *deadlineStoreStub) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id int64, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[id]
	if !ok || d.Completed {
		return sql.ErrNoRows
	}
	d.Completed = true
	d.CompletedAt = &at
	d.CompletedBy = &actorID
	return nil
}

type projectStoreStub struct {
	projects map[int64]*models.Project
}

func newProjectStoreStub(projects ...models.Project) *projectStoreStub {
	s := &projectStoreStub{projects: make(map[int64]*models.Project)}
	for i := range projects {
		p := projects[i]
		s.projects[p.ID] = &p
	}
	return s
}

func (s *projectStoreStub) GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *p
	return &copy, nil
}

type invalidatorStub struct {
	mu       sync.Mutex
	projects []int64
}

func (i *invalidatorStub) InvalidateProject(ctx context.Context, projectID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.projects = append(i.projects, projectID)
}

func timeParse(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
