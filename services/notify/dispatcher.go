// Package notify fans pipeline events out to user notifications. Delivery is
// asynchronous and best-effort: a full buffer drops the event with a warning,
// and a delivery failure is logged but never propagated back to the pipeline.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tracelens/tracelens/models"
	"github.com/tracelens/tracelens/repositories"
	"go.uber.org/zap"
)

// EventKind identifies what happened in the pipeline.
type EventKind string

const (
	EventTraceCompleted EventKind = "trace_completed"
	EventIssueCreated   EventKind = "issue_created"
	EventIssueAssigned  EventKind = "issue_assigned"
)

// Event is one pipeline occurrence to be turned into a notification for
// UserID. ResourceType and ResourceID name the trace or issue involved.
type Event struct {
	Kind         EventKind
	UserID       uuid.UUID
	Title        string
	Message      string
	ResourceType string
	ResourceID   uuid.UUID
}

// Sink accepts events for delivery. Dispatcher is the production
// implementation; tests substitute their own.
type Sink interface {
	// Dispatch queues an event without blocking, reporting whether it was
	// accepted.
	Dispatch(event *Event) bool
}

// Config holds configuration for the Dispatcher
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 4,
	}
}

// Dispatcher delivers notifications in the background through a fixed worker
// pool reading from a buffered channel.
type Dispatcher struct {
	notificationRepo repositories.NotificationRepository
	logger           *zap.Logger
	eventChan        chan *Event
	workerCount      int
	bufferSize       int
	wg               sync.WaitGroup
	ctx              context.Context
	cancel           context.CancelFunc
	started          bool
	mu               sync.Mutex
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(notificationRepo repositories.NotificationRepository, logger *zap.Logger, config Config) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		notificationRepo: notificationRepo,
		logger:           logger,
		eventChan:        make(chan *Event, config.BufferSize),
		workerCount:      config.WorkerCount,
		bufferSize:       config.BufferSize,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start starts the background workers
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("notification dispatcher already started")
	}

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.started = true
	d.logger.Info("started notification dispatcher",
		zap.Int("worker_count", d.workerCount),
		zap.Int("buffer_size", d.bufferSize))

	return nil
}

// Stop gracefully stops the dispatcher, waiting for pending events up to the
// timeout.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("notification dispatcher not started")
	}
	// Flip started and close under the same lock that guards Dispatch's
	// send, so a late dispatch from a detached analysis goroutine drops
	// instead of hitting a closed channel.
	d.started = false
	close(d.eventChan)
	d.mu.Unlock()

	d.logger.Info("stopping notification dispatcher", zap.Int("pending_events", len(d.eventChan)))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped gracefully")
		d.cancel()
		return nil
	case <-time.After(timeout):
		d.cancel()
		return fmt.Errorf("notification dispatcher stop timeout after %v", timeout)
	}
}

// Dispatch queues an event without blocking. When the buffer is full the
// event is dropped with a warning; the pipeline never waits on notification
// delivery. Returns whether the event was queued.
func (d *Dispatcher) Dispatch(event *Event) bool {
	// The send stays under the lock; the select never blocks, and this is
	// what keeps a send from racing Stop's close of the channel.
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		d.logger.Warn("notification dispatcher not running, dropping event",
			zap.String("kind", string(event.Kind)))
		return false
	}

	select {
	case d.eventChan <- event:
		return true
	default:
		d.logger.Warn("notification buffer full, dropping event",
			zap.String("kind", string(event.Kind)),
			zap.String("user_id", event.UserID.String()))
		return false
	}
}

// worker processes events from the channel
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("notification worker started", zap.Int("worker_id", id))

	for event := range d.eventChan {
		if err := d.deliver(event); err != nil {
			d.logger.Error("failed to deliver notification",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("kind", string(event.Kind)),
				zap.String("user_id", event.UserID.String()))
		}
	}

	d.logger.Debug("notification worker stopped", zap.Int("worker_id", id))
}

// deliver persists a single notification
func (d *Dispatcher) deliver(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := models.NewNotification(event.UserID, event.Title, event.Message,
		models.ResourceRef(event.ResourceType, event.ResourceID))
	if err := d.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// Pending returns the number of queued, undelivered events.
func (d *Dispatcher) Pending() int {
	return len(d.eventChan)
}

// Convenience constructors for the pipeline's event shapes.

// TraceCompleted builds the event sent to the trace owner when analysis
// finishes.
func TraceCompleted(ownerID, traceID uuid.UUID, issueCount int) *Event {
	return &Event{
		Kind:         EventTraceCompleted,
		UserID:       ownerID,
		Title:        "Trace analysis completed",
		Message:      fmt.Sprintf("Analysis finished with %d issue(s) detected", issueCount),
		ResourceType: models.ResourceTypeTrace,
		ResourceID:   traceID,
	}
}

// IssueCreated builds the event sent to the trace owner when a new issue is
// opened on their trace.
func IssueCreated(ownerID uuid.UUID, issue *models.Issue) *Event {
	return &Event{
		Kind:         EventIssueCreated,
		UserID:       ownerID,
		Title:        "New issue detected",
		Message:      fmt.Sprintf("[%s] %s", issue.Severity, issue.Title),
		ResourceType: models.ResourceTypeIssue,
		ResourceID:   issue.ID,
	}
}

// IssueAssigned builds the event sent to the new assignee of an issue.
func IssueAssigned(assigneeID uuid.UUID, issue *models.Issue) *Event {
	return &Event{
		Kind:         EventIssueAssigned,
		UserID:       assigneeID,
		Title:        "Issue assigned to you",
		Message:      fmt.Sprintf("[%s] %s", issue.Severity, issue.Title),
		ResourceType: models.ResourceTypeIssue,
		ResourceID:   issue.ID,
	}
}
