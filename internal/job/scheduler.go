package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is already running")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusFulfill Status = "fulfill"
	StatusReject  Status = "reject"
)

// JobInfo is the serializable state of a registered job.
type JobInfo struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule,omitempty"`
	Scheduled bool       `json:"scheduled"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
	Duration  string     `json:"lastDuration,omitempty"`
	Result    *Result    `json:"lastResult,omitempty"`
}

type jobState struct {
	job      Job
	schedule string
	entryID  cron.EntryID
	hasEntry bool

	mu        sync.Mutex
	status    Status
	message   string
	lastRunAt *time.Time
	duration  time.Duration
	result    *Result
}

// Scheduler owns the registered jobs, runs them on their cron schedules and
// exposes manual runs. A job never runs twice at the same time.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.RWMutex
	jobs    map[string]*jobState
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler creates a scheduler with a seconds-enabled cron parser.
// timeout bounds a single scheduled run; zero disables it.
func NewScheduler(m *metrics.Metrics, logger *zap.Logger, timeout time.Duration) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    make(map[string]*jobState),
		metrics: m,
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds job. An empty schedule registers it for manual runs only.
func (s *Scheduler) Register(job Job, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	state := &jobState{job: job, schedule: schedule, status: StatusIdle}
	if schedule != "" {
		id, err := s.cron.AddFunc(schedule, func() {
			ctx := context.Background()
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			if _, err := s.execute(ctx, state); err != nil && !errors.Is(err, ErrJobRunning) {
				s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("job %q: invalid schedule %q: %w", name, schedule, err)
		}
		state.entryID = id
		state.hasEntry = true
	}

	s.jobs[name] = state
	s.logger.Info("Registered job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Job scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Job scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for running jobs")
	}
}

// Run executes the named job synchronously.
func (s *Scheduler) Run(ctx context.Context, name string) (*Result, error) {
	s.mu.RLock()
	state, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, state)
}

func (s *Scheduler) execute(ctx context.Context, state *jobState) (*Result, error) {
	state.mu.Lock()
	if state.status == StatusRunning {
		state.mu.Unlock()
		return nil, ErrJobRunning
	}
	state.status = StatusRunning
	state.mu.Unlock()

	name := state.job.Name()
	start := time.Now()
	result, err := runJob(ctx, state.job)
	duration := time.Since(start)

	s.metrics.RecordJobRun(name, duration, err)

	state.mu.Lock()
	defer state.mu.Unlock()
	startedAt := start.UTC()
	state.lastRunAt = &startedAt
	state.duration = duration
	state.result = result
	if err != nil {
		state.status = StatusReject
		state.message = err.Error()
	} else {
		state.status = StatusFulfill
		state.message = ""
	}
	return result, err
}

// runJob converts a panic inside job into an error so the job state is
// always settled.
func runJob(ctx context.Context, job Job) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// List returns every registered job sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]JobInfo, 0, len(s.jobs))
	for name, state := range s.jobs {
		info := JobInfo{
			Name:      name,
			Schedule:  state.schedule,
			Scheduled: state.hasEntry,
		}
		if state.hasEntry {
			if next := s.cron.Entry(state.entryID).Next; !next.IsZero() {
				info.NextRunAt = &next
			}
		}

		state.mu.Lock()
		info.Status = state.status
		info.Message = state.message
		info.LastRunAt = state.lastRunAt
		info.Result = state.result
		if state.lastRunAt != nil {
			info.Duration = state.duration.String()
		}
		state.mu.Unlock()

		items = append(items, info)
	}

	sort.Slice(items, func(i, k int) bool { return items[i].Name < items[k].Name })
	return items
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
