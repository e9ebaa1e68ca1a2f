package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/repository"
	"narrative-timeline/backend/internal/worker"
	"narrative-timeline/backend/pkg/models"
)

// blockingRunner holds every run until released.
type blockingRunner struct {
	release chan struct{}
	started chan string
}

func (r *blockingRunner) Run(ctx context.Context, id string) error {
	r.started <- id
	<-r.release
	return nil
}

func TestCreateTimelineSchedulesRun(t *testing.T) {
	store := newTestStore(t)
	oracle := &scriptedOracle{skeleton: threeEventSkeleton}
	pool := worker.New(worker.Config{Concurrency: 2, QueueSize: 4}, logging.Discard(), nil)
	pool.Start(context.Background())
	defer func() { _ = pool.Stop(context.Background()) }()

	svc := NewTimelineService(store, newTestOrchestrator(store, oracle), pool, logging.Discard(), nil)

	st, err := svc.CreateTimeline(context.Background(), "apollo 11")
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, models.StatusProcessing, st.Status)
	assert.Equal(t, "0/0", st.Progress.String())

	require.Eventually(t, func() bool {
		cur, err := svc.GetTimelineStatus(context.Background(), st.ID)
		return err == nil && cur.Status == models.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	full, err := svc.GetTimeline(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Len(t, full.Events, 3)
	assert.Equal(t, "3/3", full.Progress.String())
}

func TestCreateTimelineReturnsBeforeRunProgresses(t *testing.T) {
	store := newTestStore(t)
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan string, 1)}
	pool := worker.New(worker.Config{Concurrency: 1, QueueSize: 1}, logging.Discard(), nil)
	pool.Start(context.Background())

	svc := NewTimelineService(store, runner, pool, logging.Discard(), nil)
	st, err := svc.CreateTimeline(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, st.ID, <-runner.started)

	cur, err := svc.GetTimelineStatus(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, cur.Status)
	assert.Equal(t, "0/0", cur.Progress.String())

	close(runner.release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestCreateTimelineQueueFull(t *testing.T) {
	store := newTestStore(t)
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan string, 4)}
	pool := worker.New(worker.Config{Concurrency: 1, QueueSize: 1}, logging.Discard(), nil)
	pool.Start(context.Background())

	svc := NewTimelineService(store, runner, pool, logging.Discard(), nil)

	_, err := svc.CreateTimeline(context.Background(), "running")
	require.NoError(t, err)
	<-runner.started
	_, err = svc.CreateTimeline(context.Background(), "queued")
	require.NoError(t, err)

	_, err = svc.CreateTimeline(context.Background(), "rejected")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, worker.ErrQueueFull)

	close(runner.release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestCreateTimelineQueueFullMarksFailed(t *testing.T) {
	store := newTestStore(t)
	queue := &rejectingQueue{}
	svc := NewTimelineService(store, &blockingRunner{}, queue, logging.Discard(), nil)

	_, err := svc.CreateTimeline(context.Background(), "q")
	require.ErrorIs(t, err, ErrUnavailable)

	require.Len(t, queue.names, 1)
	id := strings.TrimPrefix(queue.names[0], "timeline:")
	st, err := store.GetTimelineStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, st.Status)
}

func TestCreateTimelineRejectsBlankQuery(t *testing.T) {
	svc := NewTimelineService(newTestStore(t), &blockingRunner{}, &rejectingQueue{}, logging.Discard(), nil)
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.CreateTimeline(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func TestGetUnknownTimeline(t *testing.T) {
	svc := NewTimelineService(newTestStore(t), &blockingRunner{}, &rejectingQueue{}, logging.Discard(), nil)
	_, err := svc.GetTimeline(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.GetTimelineStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, svc.Ping(context.Background()))
}

type rejectingQueue struct {
	names []string
}

func (q *rejectingQueue) Submit(name string, _ worker.Job) error {
	q.names = append(q.names, name)
	return worker.ErrQueueFull
}
