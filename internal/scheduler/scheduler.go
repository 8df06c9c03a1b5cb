// Package scheduler runs named periodic jobs, each on its own interval.
// A job never overlaps itself: a tick that arrives while the previous
// run is still executing is dropped, not queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hostdash/internal/telemetry"
	"hostdash/internal/util"
)

var (
	ErrDuplicateJobID = errors.New("duplicate job id")
	ErrUnknownJob     = errors.New("unknown job id")
	ErrInvalidJob     = errors.New("invalid job")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

type Job struct {
	ID       string
	Interval time.Duration
	Action   func(ctx context.Context) error
}

type Outcome int

const (
	OutcomeStarted Outcome = iota
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

type entry struct {
	job     Job
	running atomic.Bool
}

type Scheduler struct {
	logger  *util.MetricsLogger
	metrics *telemetry.Metrics

	mu      sync.Mutex
	jobs    map[string]*entry
	started bool
	stopped bool

	// stop ends the ticker loops; runs use runCtx, which Stop never
	// cancels, so in-flight executions complete.
	stop   chan struct{}
	runCtx context.Context

	tickers sync.WaitGroup
	runs    sync.WaitGroup
}

func New(logger *util.MetricsLogger, metrics *telemetry.Metrics) *Scheduler {
	return &Scheduler{
		logger:  logger,
		metrics: metrics,
		jobs:    make(map[string]*entry),
		stop:    make(chan struct{}),
		runCtx:  context.Background(),
	}
}

func (s *Scheduler) Register(job Job) error {
	if job.ID == "" || job.Interval <= 0 || job.Action == nil {
		return fmt.Errorf("%w: id %q interval %s", ErrInvalidJob, job.ID, job.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return ErrAlreadyStarted
	}
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJobID, job.ID)
	}
	s.jobs[job.ID] = &entry{job: job}
	return nil
}

// Start launches one ticker per registered job. Calling it again, or
// after Stop, does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	for _, e := range s.jobs {
		s.tickers.Add(1)
		go s.tick(e)
	}
	s.logger.LogFields(util.LOG_LEVEL_INFO, "Scheduler started", zap.Strings("jobs", s.jobIDsLocked()))
}

func (s *Scheduler) tick(e *entry) {
	defer s.tickers.Done()

	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fire(e)
		case <-s.stop:
			return
		}
	}
}

// Fire starts one execution of the job unless it is already running.
// The execution itself is asynchronous.
func (s *Scheduler) Fire(id string) (Outcome, error) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return OutcomeSkipped, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return s.fire(e), nil
}

func (s *Scheduler) fire(e *entry) Outcome {
	if !e.running.CompareAndSwap(false, true) {
		s.metrics.JobRun(e.job.ID, telemetry.OutcomeSkipped)
		s.logger.LogFields(util.LOG_LEVEL_WARN, "Job still running, skipping this run", zap.String("job", e.job.ID))
		return OutcomeSkipped
	}

	// runs.Add must not race with the Wait in Stop.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		e.running.Store(false)
		return OutcomeSkipped
	}
	s.runs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.runs.Done()
		defer e.running.Store(false)
		s.execute(e)
	}()
	return OutcomeStarted
}

func (s *Scheduler) execute(e *entry) {
	runID := uuid.NewString()
	start := time.Now()

	err := s.safeRun(e)
	elapsed := time.Since(start)
	s.metrics.JobDuration(e.job.ID, elapsed)

	if err != nil {
		s.metrics.JobRun(e.job.ID, telemetry.OutcomeFailure)
		s.logger.LogFields(util.LOG_LEVEL_ERROR, "Job failed",
			zap.String("job", e.job.ID),
			zap.String("run_id", runID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}

	s.metrics.JobRun(e.job.ID, telemetry.OutcomeSuccess)
	s.logger.LogFields(util.LOG_LEVEL_DEBUG, "Job finished",
		zap.String("job", e.job.ID),
		zap.String("run_id", runID),
		zap.Duration("elapsed", elapsed),
	)
}

func (s *Scheduler) safeRun(e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.job.ID, r)
		}
	}()
	return e.job.Action(s.runCtx)
}

// Stop cancels all future firings and waits, bounded by ctx, for runs
// already in flight.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.tickers.Wait()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.LogEvent(util.LOG_LEVEL_INFO, "Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) State(id string) (State, error) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return StateIdle, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if e.running.Load() {
		return StateRunning, nil
	}
	return StateIdle, nil
}

// JobIDs returns the registered ids, sorted.
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobIDsLocked()
}

func (s *Scheduler) jobIDsLocked() []string {
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
