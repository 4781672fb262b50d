// Package scheduler arms deduplicated timers for the station's three job
// kinds, porting the reference's thread-local EntityTimerMap (bucketed by
// tolerance, one timer per bucket regardless of how many entities land in
// it) onto Go's time.AfterFunc (§5, §9).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/orbit-station/station/internal/station/domain"
)

// Clock abstracts wall time so tests can control "now" deterministically.
type Clock func() time.Time

// JobRunner performs the actual work of the three job kinds. Concrete
// implementations live in internal/station/requestsvc /
// internal/station/operations; scheduler only owns timing and dedup.
type JobRunner interface {
	CancelExpiredRequests(ctx context.Context, requestID domain.ID)
	ExecuteScheduledRequests(ctx context.Context)
	ExecuteCreatedTransfers(ctx context.Context)
}

// entityTimerMap is the Go analogue of the reference's EntityTimerMap<T>: a
// bucketed, refcounted timer so that many entities expiring within the same
// tolerance window share one underlying timer.
type entityTimerMap struct {
	mu            sync.Mutex
	bucketEntities map[int64]map[domain.ID]struct{}
	entityBucket   map[domain.ID]int64
	bucketTimer    map[int64]*time.Timer
}

func newEntityTimerMap() *entityTimerMap {
	return &entityTimerMap{
		bucketEntities: make(map[int64]map[domain.ID]struct{}),
		entityBucket:   make(map[domain.ID]int64),
		bucketTimer:    make(map[int64]*time.Timer),
	}
}

func (m *entityTimerMap) hasBucket(bucket int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bucketTimer[bucket]
	return ok
}

func (m *entityTimerMap) insert(bucket int64, entityID domain.ID, timer *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bucketEntities[bucket]; !ok {
		m.bucketEntities[bucket] = make(map[domain.ID]struct{})
		m.bucketTimer[bucket] = timer
	}
	m.bucketEntities[bucket][entityID] = struct{}{}
	m.entityBucket[entityID] = bucket
}

func (m *entityTimerMap) removeByBucket(bucket int64) []domain.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	entities := m.bucketEntities[bucket]
	delete(m.bucketEntities, bucket)
	delete(m.bucketTimer, bucket)
	out := make([]domain.ID, 0, len(entities))
	for id := range entities {
		out = append(out, id)
		delete(m.entityBucket, id)
	}
	return out
}

// removeByEntity cancels cancellation tracking for entityID (§4.5
// "Cancel_job" — used when a request leaves Created via a vote before its
// expiration timer fires).
func (m *entityTimerMap) removeByEntity(entityID domain.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.entityBucket[entityID]
	if !ok {
		return
	}
	delete(m.entityBucket, entityID)
	if entities, ok := m.bucketEntities[bucket]; ok {
		delete(entities, entityID)
	}
}

// Scheduler arms and dedups timers across the station's job kinds. Tolerance
// buckets expiration/execution times the same way the reference's
// coarse_time_to_timeout does; Bucket(t) = t - (t mod tolerance).
type Scheduler struct {
	runner    JobRunner
	tolerance time.Duration
	now       Clock
	log       *logrus.Entry

	cancelExpired *entityTimerMap

	mu                     sync.Mutex
	scheduledBuckets       map[int64]*time.Timer
	createdTransferBuckets map[int64]*time.Timer

	cron *cron.Cron
}

// New builds a Scheduler. tolerance must be positive; now defaults to
// time.Now.
func New(runner JobRunner, tolerance time.Duration, now Clock, log *logrus.Entry) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		runner:                 runner,
		tolerance:              tolerance,
		now:                    now,
		log:                    log,
		cancelExpired:          newEntityTimerMap(),
		scheduledBuckets:       make(map[int64]*time.Timer),
		createdTransferBuckets: make(map[int64]*time.Timer),
	}
}

// Bucket rounds t down to the nearest multiple of tolerance, the dedup key
// shared by every job kind (§5 "bucket(t) = t - (t mod tolerance)").
func (s *Scheduler) Bucket(t time.Time) int64 {
	ns := t.UnixNano()
	tol := s.tolerance.Nanoseconds()
	if tol <= 0 {
		return ns
	}
	return ns - (ns % tol)
}

func (s *Scheduler) relativeDelay(bucketNs int64) time.Duration {
	nowNs := s.now().UnixNano()
	if bucketNs <= nowNs {
		return 0
	}
	return time.Duration(bucketNs - nowNs)
}

// ScheduleCancelExpiredRequest arms (or joins an already-armed) timer that
// will run CancelExpiredRequests for requestID at its expiration bucket.
func (s *Scheduler) ScheduleCancelExpiredRequest(ctx context.Context, requestID domain.ID, expiresAt time.Time) {
	bucket := s.Bucket(expiresAt)
	if s.cancelExpired.hasBucket(bucket) {
		s.cancelExpired.insert(bucket, requestID, nil)
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.relativeDelay(bucket), func() {
		ids := s.cancelExpired.removeByBucket(bucket)
		for _, id := range ids {
			s.runJob("cancel_expired_requests", func() { s.runner.CancelExpiredRequests(ctx, id) })
		}
	})
	s.cancelExpired.insert(bucket, requestID, timer)
}

// CancelPendingExpiration removes requestID from the expiration tracker,
// used when a vote resolves the request before its timer fires.
func (s *Scheduler) CancelPendingExpiration(requestID domain.ID) {
	s.cancelExpired.removeByEntity(requestID)
}

// ScheduleExecuteRequests arms (or joins) the bucketed timer that runs
// ExecuteScheduledRequests at execution time at.
func (s *Scheduler) ScheduleExecuteRequests(ctx context.Context, at time.Time) {
	s.scheduleBucketedSweep(ctx, s.scheduledBuckets, at, "execute_scheduled_requests", s.runner.ExecuteScheduledRequests)
}

// ScheduleExecuteTransfers arms (or joins) the bucketed timer that runs
// ExecuteCreatedTransfers at execution time at.
func (s *Scheduler) ScheduleExecuteTransfers(ctx context.Context, at time.Time) {
	s.scheduleBucketedSweep(ctx, s.createdTransferBuckets, at, "execute_created_transfers", s.runner.ExecuteCreatedTransfers)
}

// StartCatchUp arms a cron-driven catch-up tick at cadence (standard
// five-field cron syntax, e.g. "*/1 * * * *") that re-sweeps
// ExecuteScheduledRequests and ExecuteCreatedTransfers regardless of
// whether a precise per-row timer was armed for them — the backstop for
// work whose timer was lost to a crash before a replay step re-armed it,
// or whose bucket timer never fired because the process was down at the
// time. An empty cadence disables the catch-up tick.
func (s *Scheduler) StartCatchUp(ctx context.Context, cadence string) error {
	if cadence == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(cadence, func() {
		s.runJob("catch_up_execute_scheduled_requests", func() { s.runner.ExecuteScheduledRequests(ctx) })
		s.runJob("catch_up_execute_created_transfers", func() { s.runner.ExecuteCreatedTransfers(ctx) })
	})
	if err != nil {
		return err
	}
	c.Start()
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) scheduleBucketedSweep(ctx context.Context, buckets map[int64]*time.Timer, at time.Time, label string, run func(context.Context)) {
	bucket := s.Bucket(at)

	s.mu.Lock()
	if _, ok := buckets[bucket]; ok {
		s.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.relativeDelay(bucket), func() {
		s.mu.Lock()
		delete(buckets, bucket)
		s.mu.Unlock()
		s.runJob(label, func() { run(ctx) })
	})
	buckets[bucket] = timer
	s.mu.Unlock()
}

// runJob recovers from a panicking job so one bad execution never takes the
// scheduler's timer goroutine down with it (§9 "Scheduler abstraction").
func (s *Scheduler) runJob(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job", label).Errorf("scheduler job panicked: %v", r)
		}
	}()
	fn()
}

// Stop cancels every outstanding timer and the catch-up cron, if any, used
// during graceful shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, t := range s.scheduledBuckets {
		t.Stop()
	}
	for _, t := range s.createdTransferBuckets {
		t.Stop()
	}
	c := s.cron
	s.mu.Unlock()
	s.cancelExpired.mu.Lock()
	for _, t := range s.cancelExpired.bucketTimer {
		if t != nil {
			t.Stop()
		}
	}
	s.cancelExpired.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}
