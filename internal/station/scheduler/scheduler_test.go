package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
)

type recordingRunner struct {
	mu               sync.Mutex
	cancelled        []domain.ID
	executedRequests int
	executedTransfers int
	done             chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, 16)}
}

func (r *recordingRunner) CancelExpiredRequests(_ context.Context, id domain.ID) {
	r.mu.Lock()
	r.cancelled = append(r.cancelled, id)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingRunner) ExecuteScheduledRequests(_ context.Context) {
	r.mu.Lock()
	r.executedRequests++
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingRunner) ExecuteCreatedTransfers(_ context.Context) {
	r.mu.Lock()
	r.executedTransfers++
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingRunner) awaitOne(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler job")
	}
}

func TestBucketRoundsDownToTolerance(t *testing.T) {
	s := New(newRecordingRunner(), 5*time.Second, func() time.Time { return time.Unix(0, 0) }, nil)
	at := time.Unix(0, 0).Add(12 * time.Second)
	require.Equal(t, 10*int64(time.Second), s.Bucket(at))
}

func TestScheduleCancelExpiredRequestRunsJob(t *testing.T) {
	runner := newRecordingRunner()
	s := New(runner, 50*time.Millisecond, nil, nil)

	id := domain.NewID()
	s.ScheduleCancelExpiredRequest(context.Background(), id, time.Now())
	runner.awaitOne(t)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Equal(t, []domain.ID{id}, runner.cancelled)
}

func TestScheduleCancelExpiredRequestDedupsSameBucket(t *testing.T) {
	runner := newRecordingRunner()
	s := New(runner, time.Second, nil, nil)

	at := time.Now().Add(30 * time.Millisecond)
	id1, id2 := domain.NewID(), domain.NewID()
	s.ScheduleCancelExpiredRequest(context.Background(), id1, at)
	s.ScheduleCancelExpiredRequest(context.Background(), id2, at)

	runner.awaitOne(t)
	runner.awaitOne(t)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.ElementsMatch(t, []domain.ID{id1, id2}, runner.cancelled)
}

func TestCancelPendingExpirationPreventsLateRun(t *testing.T) {
	runner := newRecordingRunner()
	s := New(runner, 50*time.Millisecond, nil, nil)

	id := domain.NewID()
	at := time.Now().Add(40 * time.Millisecond)
	s.ScheduleCancelExpiredRequest(context.Background(), id, at)
	s.CancelPendingExpiration(id)

	select {
	case <-runner.done:
		t.Fatal("job ran after its entity was removed from the bucket")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestScheduleExecuteRequestsAndTransfersAreIndependent(t *testing.T) {
	runner := newRecordingRunner()
	s := New(runner, 20*time.Millisecond, nil, nil)

	s.ScheduleExecuteRequests(context.Background(), time.Now())
	s.ScheduleExecuteTransfers(context.Background(), time.Now())

	runner.awaitOne(t)
	runner.awaitOne(t)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Equal(t, 1, runner.executedRequests)
	require.Equal(t, 1, runner.executedTransfers)
}
