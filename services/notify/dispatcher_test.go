package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/models"
	"go.uber.org/zap"
)

// MockNotificationRepository is a mock implementation of repositories.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
	mu      sync.Mutex
	created []*models.Notification
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	m.created = append(m.created, n)
	m.mu.Unlock()
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) GetByUserID(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockNotificationRepository) Created() []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Notification, len(m.created))
	copy(out, m.created)
	return out
}

func TestDispatcher_DeliversEvent(t *testing.T) {
	repo := new(MockNotificationRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(nil)

	d := NewDispatcher(repo, zap.NewNop(), Config{BufferSize: 8, WorkerCount: 1})
	require.NoError(t, d.Start())

	ownerID := uuid.New()
	traceID := uuid.New()
	assert.True(t, d.Dispatch(TraceCompleted(ownerID, traceID, 2)))

	require.NoError(t, d.Stop(2*time.Second))

	created := repo.Created()
	require.Len(t, created, 1)
	assert.Equal(t, ownerID, created[0].UserID)
	assert.Equal(t, "Trace analysis completed", created[0].Title)
	assert.Contains(t, created[0].Message, "2 issue(s)")
	assert.Equal(t, models.ResourceRef(models.ResourceTypeTrace, traceID), created[0].RelatedResource)
	assert.False(t, created[0].Read)
}

func TestDispatcher_DropsWhenBufferFull(t *testing.T) {
	repo := new(MockNotificationRepository)

	// Workers are never started, so nothing drains the buffer.
	d := NewDispatcher(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	d.started = true

	assert.True(t, d.Dispatch(TraceCompleted(uuid.New(), uuid.New(), 1)))
	assert.False(t, d.Dispatch(TraceCompleted(uuid.New(), uuid.New(), 1)), "second event exceeds the buffer")
	assert.Equal(t, 1, d.Pending())

	repo.AssertNotCalled(t, "Create")
}

func TestDispatcher_DeliveryFailureIsSwallowed(t *testing.T) {
	repo := new(MockNotificationRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Notification")).Return(assert.AnError)

	d := NewDispatcher(repo, zap.NewNop(), Config{BufferSize: 8, WorkerCount: 2})
	require.NoError(t, d.Start())

	// A failing insert must not affect the dispatcher or its caller.
	assert.True(t, d.Dispatch(IssueCreated(uuid.New(), &models.Issue{ID: uuid.New(), Title: "t", Severity: models.IssueSeverityHigh})))
	require.NoError(t, d.Stop(2*time.Second))

	repo.AssertExpectations(t)
}

func TestDispatcher_RejectsWhenNotStarted(t *testing.T) {
	repo := new(MockNotificationRepository)
	d := NewDispatcher(repo, zap.NewNop(), DefaultConfig())

	assert.False(t, d.Dispatch(TraceCompleted(uuid.New(), uuid.New(), 0)))
	repo.AssertNotCalled(t, "Create")
}

func TestDispatcher_DispatchAfterStopDrops(t *testing.T) {
	repo := new(MockNotificationRepository)
	d := NewDispatcher(repo, zap.NewNop(), Config{BufferSize: 8, WorkerCount: 1})

	require.NoError(t, d.Start())
	require.NoError(t, d.Stop(time.Second))

	// A detached analysis run can outlive shutdown; its dispatch must drop
	// cleanly rather than send on the closed channel.
	assert.NotPanics(t, func() {
		assert.False(t, d.Dispatch(TraceCompleted(uuid.New(), uuid.New(), 1)))
	})
	repo.AssertNotCalled(t, "Create")
}

func TestDispatcher_StartTwice(t *testing.T) {
	repo := new(MockNotificationRepository)
	d := NewDispatcher(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})

	require.NoError(t, d.Start())
	assert.Error(t, d.Start())
	require.NoError(t, d.Stop(time.Second))
}

func TestDispatcher_EventShapes(t *testing.T) {
	issue := &models.Issue{ID: uuid.New(), Title: "Error rate spike in checkout", Severity: models.IssueSeverityCritical}
	assignee := uuid.New()

	e := IssueAssigned(assignee, issue)
	assert.Equal(t, EventIssueAssigned, e.Kind)
	assert.Equal(t, assignee, e.UserID)
	assert.Equal(t, models.ResourceTypeIssue, e.ResourceType)
	assert.Equal(t, issue.ID, e.ResourceID)
	assert.Contains(t, e.Message, "critical")

	c := IssueCreated(assignee, issue)
	assert.Equal(t, EventIssueCreated, c.Kind)
	assert.Contains(t, c.Message, issue.Title)
}
