package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job, such as the Versus due-record scan.
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the last observed outcome of one registered job, surfaced so
// an operator can tell the Versus scan (or any other background job) is
// actually ticking rather than silently stuck.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	RunCount  uint64    `json:"run_count"`
}

// Scheduler manages background jobs and tracks their last-run outcome.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu       sync.Mutex
	statuses map[string]*JobStatus
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		log:      log.With().Str("component", "scheduler").Logger(),
		statuses: make(map[string]*JobStatus),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 9 * * MON-FRI"  - 9 AM weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	s.statuses[job.Name()] = &JobStatus{Name: job.Name(), Schedule: schedule}
	s.mu.Unlock()

	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")
		s.record(job.Name(), job.Run())
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// record stores the outcome of one job run for Statuses, and logs it.
func (s *Scheduler) record(name string, err error) {
	s.mu.Lock()
	st, ok := s.statuses[name]
	if !ok {
		st = &JobStatus{Name: name}
		s.statuses[name] = st
	}
	st.LastRun = time.Now().UTC()
	st.RunCount++
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Job failed")
	} else {
		s.log.Debug().Str("job", name).Msg("Job completed")
	}
}

// RunNow executes a job immediately (outside schedule) and records its
// outcome just like a scheduled tick.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	err := job.Run()
	s.record(job.Name(), err)
	return err
}

// Statuses returns a snapshot of every registered job's last-run outcome,
// for an operator-facing status endpoint.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	return out
}
