package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/pkg/clock"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

var (
	student   = models.Actor{ID: "student-1", Role: models.RoleStudent}
	outsider  = models.Actor{ID: "student-2", Role: models.RoleStudent}
	professor = models.Actor{ID: "prof-1", Role: models.RoleProfessor}
	admin     = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
)

type extensionFixture struct {
	svc        *ExtensionService
	extensions *extensionStoreStub
	deadlines  *deadlineStoreStub
	notifier   *notifierStub
	cache      *invalidatorStub
}

func newExtensionFixture(t *testing.T, tx *txStub, deadlines ...models.ProjectDeadline) *extensionFixture {
	t.Helper()
	if len(deadlines) == 0 {
		deadlines = []models.ProjectDeadline{{ID: 1, ProjectID: 10, DueDate: date(2025, 6, 30), Extensible: true}}
	}
	advisor := professor.ID
	f := &extensionFixture{
		extensions: newExtensionStoreStub(),
		deadlines:  newDeadlineStoreStub(deadlines...),
		notifier:   &notifierStub{},
		cache:      &invalidatorStub{},
	}
	projects := newProjectStoreStub(models.Project{ID: 10, Title: "Thesis", StudentID: student.ID, AdvisorID: &advisor})
	f.svc = NewExtensionService(f.extensions, f.deadlines, projects, tx, clock.Fake(date(2025, 7, 2)), nil,
		WithExtensionNotifier(f.notifier),
		WithExtensionStatusCache(f.cache),
		WithExtensionMetrics(NewMetricsService()),
	)
	return f
}

func extensionRequest(requested string) dto.CreateExtensionRequest {
	d, _ := timeParse(requested)
	return dto.CreateExtensionRequest{RequestedDate: d, Justification: "field work delayed by weather"}
}

func TestExtensionServiceCreate(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})

	req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusPending, req.Status)
	assert.Equal(t, date(2025, 6, 30), req.OriginalDate)
	assert.Equal(t, int64(10), req.ProjectID)

	history, err := f.svc.History(context.Background(), req.ID, student)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryActionCreated, history[0].Action)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, []models.EventType{models.EventExtensionRequested}, f.notifier.types())
	assert.Equal(t, []int64{10}, f.cache.projects)
}

func TestExtensionServiceCreateValidation(t *testing.T) {
	due := date(2025, 6, 30)
	f := newExtensionFixture(t, &txStub{},
		models.ProjectDeadline{ID: 1, ProjectID: 10, DueDate: due, Extensible: true},
		models.ProjectDeadline{ID: 2, ProjectID: 10, DueDate: due, Extensible: false},
		models.ProjectDeadline{ID: 3, ProjectID: 10, DueDate: due, Extensible: true, Completed: true},
	)

	cases := []struct {
		name       string
		deadlineID int64
		actor      models.Actor
		req        dto.CreateExtensionRequest
		want       *appErrors.Error
	}{
		{"same date", 1, student, extensionRequest("2025-06-30"), appErrors.ErrInvalidDateOrder},
		{"earlier date", 1, student, extensionRequest("2025-06-01"), appErrors.ErrInvalidDateOrder},
		{"other student", 1, outsider, extensionRequest("2025-07-10"), appErrors.ErrNotOwner},
		{"advisor is not owner", 1, professor, extensionRequest("2025-07-10"), appErrors.ErrNotOwner},
		{"not extensible", 2, student, extensionRequest("2025-07-10"), appErrors.ErrNotExtensible},
		{"completed", 3, student, extensionRequest("2025-07-10"), appErrors.ErrAlreadyCompleted},
		{"unknown deadline", 99, student, extensionRequest("2025-07-10"), appErrors.ErrNotFound},
		{"missing justification", 1, student, dto.CreateExtensionRequest{RequestedDate: date(2025, 7, 10)}, appErrors.ErrMissingJustification},
		{"short justification", 1, student, dto.CreateExtensionRequest{RequestedDate: date(2025, 7, 10), Justification: "sick"}, appErrors.ErrMissingJustification},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.deadlineID, tc.actor, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.extensions.openCount(1))
}

func TestExtensionServiceRejectsSecondOpenRequest(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})

	_, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-12"))
	require.ErrorIs(t, err, appErrors.ErrDuplicateOpenRequest)
}

func TestExtensionServiceConcurrentCreateHasOneWinner(t *testing.T) {
	for _, serial := range []bool{true, false} {
		f := newExtensionFixture(t, &txStub{serial: serial})

		const attempts = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, appErrors.ErrDuplicateOpenRequest):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes, "serial=%v", serial)
		assert.Equal(t, attempts-1, conflicts, "serial=%v", serial)
		assert.Equal(t, 1, f.extensions.openCount(1))
	}
}

func TestExtensionServiceWorkflow(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})
	req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)

	inReview, err := f.svc.MarkInReview(context.Background(), req.ID, admin, "checking with advisor")
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusInReview, inReview.Status)

	_, err = f.svc.MarkInReview(context.Background(), req.ID, admin, "")
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)

	approved, err := f.svc.Approve(context.Background(), req.ID, admin, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusApproved, approved.Status)
	require.NotNil(t, approved.ResolvedAt)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.ID, *approved.ReviewedBy)

	_, err = f.svc.Reject(context.Background(), req.ID, admin, "changed my mind about this")
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
	_, err = f.svc.Approve(context.Background(), req.ID, admin, "")
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
	assert.Equal(t, models.ExtensionStatusApproved, f.extensions.status(req.ID))

	history, err := f.svc.History(context.Background(), req.ID, admin)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.HistoryActionInReview, history[1].Action)
	assert.Equal(t, models.HistoryActionApproved, history[2].Action)
	require.NotNil(t, history[2].FromStatus)
	assert.Equal(t, models.ExtensionStatusInReview, *history[2].FromStatus)

	dl, err := f.deadlines.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 6, 30), dl.DueDate)

	assert.Equal(t, []models.EventType{
		models.EventExtensionRequested,
		models.EventExtensionInReview,
		models.EventExtensionApproved,
	}, f.notifier.types())
}

func TestExtensionServiceChainedRequestStartsFromGrantedDate(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})
	first, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), first.ID, admin, "")
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-08"))
	require.ErrorIs(t, err, appErrors.ErrInvalidDateOrder)

	second, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-15"))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 7, 10), second.OriginalDate)
}

func TestExtensionServiceRejectRequiresComments(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})
	req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), req.ID, admin, "   ")
	require.ErrorIs(t, err, appErrors.ErrMissingJustification)
	_, err = f.svc.Reject(context.Background(), req.ID, admin, "no")
	require.ErrorIs(t, err, appErrors.ErrMissingJustification)
	assert.Equal(t, models.ExtensionStatusPending, f.extensions.status(req.ID))

	rejected, err := f.svc.Review(context.Background(), req.ID, admin, dto.ReviewExtensionRequest{
		Decision: dto.DecisionReject,
		Comments: "the data collection can continue remotely",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewerComments)
}

func TestExtensionServiceRacingReviewsHaveOneWinner(t *testing.T) {
	for _, serial := range []bool{true, false} {
		f := newExtensionFixture(t, &txStub{serial: serial})
		req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			winners  int
			resolved int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				decision := dto.ReviewExtensionRequest{Decision: dto.DecisionApprove}
				if i%2 == 1 {
					decision = dto.ReviewExtensionRequest{Decision: dto.DecisionReject, Comments: "insufficient evidence provided"}
				}
				_, err := f.svc.Review(context.Background(), req.ID, admin, decision)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, appErrors.ErrAlreadyResolved):
					resolved++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, winners, "serial=%v", serial)
		assert.Equal(t, 9, resolved, "serial=%v", serial)
		assert.True(t, f.extensions.status(req.ID).IsTerminal())
	}
}

func TestExtensionServiceReviewAuthorization(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})
	req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), req.ID, professor, "")
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Approve(context.Background(), 404, admin, "")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Review(context.Background(), req.ID, admin, dto.ReviewExtensionRequest{Decision: "maybe"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExtensionServiceReadScoping(t *testing.T) {
	f := newExtensionFixture(t, &txStub{})
	req, err := f.svc.Create(context.Background(), 1, student, extensionRequest("2025-07-10"))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), req.ID, outsider)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, pagination, err := f.svc.List(context.Background(), dto.ExtensionQuery{}, outsider)
	require.NoError(t, err)
	assert.Equal(t, outsider.ID, f.extensions.filter.RequestedBy)
	assert.Equal(t, 0, pagination.TotalCount)

	list, _, err := f.svc.List(context.Background(), dto.ExtensionQuery{}, admin)
	require.NoError(t, err)
	assert.Empty(t, f.extensions.filter.RequestedBy)
	assert.Len(t, list, 1)
}
