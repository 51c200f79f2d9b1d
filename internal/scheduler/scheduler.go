package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Status            JobStatus `json:"status"`
	LastRun           time.Time `json:"lastRun"`
	NextRun           time.Time `json:"nextRun"`
	Schedule          string    `json:"schedule"`
	RunCount          int       `json:"runCount"`
	ErrorCount        int       `json:"errorCount"`
	LastError         string    `json:"lastError,omitempty"`
	Singleton         bool      `json:"singleton"`
	InstantAfterStart bool      `json:"instantAfterStart,omitempty"`

	gocronJob gocron.Job
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler manages scheduled jobs.
type Scheduler struct {
	gocron gocron.Scheduler

	mu   sync.RWMutex
	jobs map[string]*JobInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler evaluating triggers in loc. Stop waits up to
// stopTimeout for a running job to return.
func New(loc *time.Location, stopTimeout time.Duration) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	opts := []gocron.SchedulerOption{
		gocron.WithLogger(newLogger()),
		gocron.WithLocation(loc),
	}
	if stopTimeout > 0 {
		opts = append(opts, gocron.WithStopTimeout(stopTimeout))
	}

	gocronScheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[string]*JobInfo),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Info("Starting job scheduler")
	s.gocron.Start()
	log.Info("Job scheduler started")

	var instant []string

	s.mu.Lock()
	// after starting the scheduler, populate the next run times for all jobs
	for id, jobInfo := range s.jobs {
		if nextRun, err := jobInfo.gocronJob.NextRun(); err == nil {
			jobInfo.NextRun = nextRun
			log.Debug("Next run time for job", "id", id, "nextRun", nextRun)
		} else {
			log.Warn("Failed to get next run time for job", "id", id, "error", err)
		}
		if jobInfo.InstantAfterStart {
			instant = append(instant, id)
		}
	}
	s.mu.Unlock()

	for _, id := range instant {
		log.Info("Running job immediately after start", "id", id)
		if err := s.RunJobNow(id); err != nil {
			log.Error("Failed to run job immediately after start", "id", id, "error", err)
		}
	}
}

// Stop stops triggering jobs and waits for a running job to finish.
func (s *Scheduler) Stop() error {
	log.Info("Stopping job scheduler")
	err := s.gocron.Shutdown()
	s.cancel()
	return err
}

// AddSingletonJob registers a job that never runs concurrently with itself.
// A trigger that fires while the job is still running is skipped.
// Registering an existing id replaces the previous job.
func (s *Scheduler) AddSingletonJob(
	id, name, description, definitionString string,
	jobDef gocron.JobDefinition,
	jobFunc JobFunc,
	instantAfterStart bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.jobs[id]; exists {
		if err := s.gocron.RemoveJob(old.gocronJob.ID()); err != nil {
			return fmt.Errorf("failed to replace job %s: %w", id, err)
		}
		delete(s.jobs, id)
		log.Info("Replacing job", "id", id)
	}

	jobInfo := &JobInfo{
		ID:                id,
		Name:              name,
		Description:       description,
		Status:            JobStatusScheduled,
		Schedule:          definitionString,
		Singleton:         true,
		InstantAfterStart: instantAfterStart,
	}

	job, err := s.gocron.NewJob(
		jobDef,
		gocron.NewTask(s.wrapJobFunc(jobInfo, jobFunc)),
		gocron.WithName(id),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	jobInfo.gocronJob = job

	s.jobs[id] = jobInfo
	log.Info("Added job to scheduler", "id", id, "name", name, "schedule", definitionString)
	return nil
}

// RunJobNow triggers a job outside its schedule. The singleton mode still
// applies, so a job that is already running is not started twice.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	jobInfo, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	log.Info("Manually triggering job", "id", id, "name", jobInfo.Name)
	if err := jobInfo.gocronJob.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJob returns a snapshot of a job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	snapshot := *job
	if nextRun, err := job.gocronJob.NextRun(); err == nil {
		snapshot.NextRun = nextRun
	}
	return snapshot, true
}

// GetJobs returns a snapshot of every job.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.GetJob(id); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(jobInfo *JobInfo, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		log.Info("Starting job", "id", jobInfo.ID, "name", jobInfo.Name)
		jobInfo.Status = JobStatusRunning
		jobInfo.LastRun = time.Now()
		jobInfo.RunCount++
		s.mu.Unlock()

		err := jobFunc(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if nextRun, nerr := jobInfo.gocronJob.NextRun(); nerr == nil {
			jobInfo.NextRun = nextRun
		}
		if err != nil {
			log.Error("Job failed", "id", jobInfo.ID, "name", jobInfo.Name, "error", err)
			jobInfo.Status = JobStatusFailed
			jobInfo.ErrorCount++
			jobInfo.LastError = err.Error()
			return
		}
		log.Info("Job completed successfully", "id", jobInfo.ID, "name", jobInfo.Name)
		jobInfo.Status = JobStatusCompleted
		jobInfo.LastError = ""
	}
}
