package jobs

import (
	"context"
	"fmt"
	"time"

	"anoa.com/memberclub/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is a unit of background work. An empty Schedule registers it as on-demand only.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	log     *logger.Logger
	timeout time.Duration
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:    make([]Job, 0),
		log:     log,
		timeout: 10 * time.Minute,
	}
}

// Register adds job and schedules it when it has a cron expression.
func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)

	schedule := job.Schedule()
	if schedule == "" {
		s.log.WithField("job", job.Name()).Info("📝 registered as on-demand job")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.log.WithFields(map[string]interface{}{"job": job.Name(), "cron": schedule}).Info("📅 job scheduled")
	return nil
}

func (s *Scheduler) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.WithField("job", job.Name())
	log.Info("🤖 starting scheduled job")
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.WithError(err).Error("❌ job failed")
		return
	}
	log.WithField("took", time.Since(start).String()).Info("✅ job completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("🚀 scheduler started with %d jobs", len(s.jobs))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info("🛑 scheduler stopped")
}

// RunByName runs a registered job once, outside its schedule.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Registered() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}
