// Package scheduler runs the fixed set of recurring notification jobs.
//
// Each job has its own goroutine that sleeps until the job's next firing.
// Stop cancels every loop and waits for them to exit: no job fires after
// Stop returns. A firing that is already sending finishes the current user
// and skips the rest of its batch.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/extrace/notify/internal/pkg/distlock"
	"github.com/extrace/notify/internal/pkg/logger"
)

// Job is a named recurring action.
type Job struct {
	Name    string
	Cadence Cadence
	Run     func(ctx context.Context, fireTime time.Time) error
}

// JobStatus reports one job's schedule and last outcome.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int        `json:"runs"`
	Skipped   int        `json:"skipped"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

type jobState struct {
	job       Job
	mu        sync.Mutex
	nextRun   time.Time
	lastRun   time.Time
	lastError string
	runs      int
	skipped   int
}

// Scheduler owns the job loops.
type Scheduler struct {
	jobs  map[string]*jobState
	order []string
	clock Clock
	locks distlock.Factory
	log   *logger.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLocks makes every firing acquire a distributed lock keyed by job and
// fire time. Instances that lose the race skip the firing.
func WithLocks(f distlock.Factory) Option { return func(s *Scheduler) { s.locks = f } }

// New creates a stopped scheduler.
func New(jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:  make(map[string]*jobState, len(jobs)),
		clock: realClock{},
		log:   logger.Default().With("component", "scheduler"),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = &jobState{job: j}
		s.order = append(s.order, j.Name)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches one loop per job. Starting a running scheduler logs a
// warning and does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	for _, name := range s.order {
		js := s.jobs[name]
		s.wg.Add(1)
		go s.loop(ctx, js)
	}
	s.log.Info("scheduler started", "jobs", len(s.order))
}

// Stop cancels every loop and blocks until they have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	for _, js := range s.jobs {
		js.mu.Lock()
		js.nextRun = time.Time{}
		js.mu.Unlock()
	}
	s.log.Info("scheduler stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns every job in registration order.
func (s *Scheduler) Status() Status {
	st := Status{Running: s.Running()}
	for _, name := range s.order {
		js := s.jobs[name]
		js.mu.Lock()
		j := JobStatus{
			Name:      name,
			Schedule:  js.job.Cadence.String(),
			LastError: js.lastError,
			Runs:      js.runs,
			Skipped:   js.skipped,
		}
		if !js.nextRun.IsZero() {
			t := js.nextRun
			j.NextRun = &t
		}
		if !js.lastRun.IsZero() {
			t := js.lastRun
			j.LastRun = &t
		}
		js.mu.Unlock()
		st.Jobs = append(st.Jobs, j)
	}
	return st
}

// JobNames returns the registered job names, sorted.
func (s *Scheduler) JobNames() []string {
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}

// Trigger runs a job immediately on the caller's goroutine, outside its
// cadence. It does not take the distributed lock.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	js, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	return s.run(ctx, js, s.clock.Now())
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	defer s.wg.Done()
	for {
		now := s.clock.Now()
		next := js.job.Cadence.Next(now)
		js.mu.Lock()
		js.nextRun = next
		js.mu.Unlock()

		if !sleep(ctx, s.clock, next.Sub(now)) {
			return
		}
		s.fire(ctx, js, next)
	}
}

func (s *Scheduler) fire(ctx context.Context, js *jobState, fireTime time.Time) {
	if s.locks == nil {
		s.run(ctx, js, fireTime)
		return
	}
	key := fmt.Sprintf("scheduler:%s:%d", js.job.Name, fireTime.Unix())
	acquired, err := distlock.TryRun(ctx, s.locks(key), func(ctx context.Context) {
		s.run(ctx, js, fireTime)
	})
	if err != nil {
		s.log.Error("lock error, skipping firing", "job", js.job.Name, "error", err.Error())
	}
	if !acquired {
		s.log.Info("firing owned by another instance", "job", js.job.Name, "fire_time", fireTime.Format(time.RFC3339))
		js.mu.Lock()
		js.skipped++
		js.mu.Unlock()
	}
}

func (s *Scheduler) run(ctx context.Context, js *jobState, fireTime time.Time) error {
	start := s.clock.Now()
	s.log.Info("job started", "job", js.job.Name, "fire_time", fireTime.Format(time.RFC3339))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return js.job.Run(ctx, fireTime)
	}()

	js.mu.Lock()
	js.lastRun = start
	js.runs++
	js.lastError = ""
	if err != nil {
		js.lastError = err.Error()
	}
	js.mu.Unlock()

	if err != nil {
		s.log.Error("job finished with errors", "job", js.job.Name, "error", err.Error())
	} else {
		s.log.Info("job finished", "job", js.job.Name, "duration", s.clock.Now().Sub(start).String())
	}
	return err
}
