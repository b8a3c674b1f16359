package jobs

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Name() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs on their schedule and plain jobs every second.
// A job is never run twice at the same time.
type TaskExecutor struct {
	cron        *cron.Cron
	jobs        []Job
	cronJobs    []CronJob
	runningJobs mapset.Set[string]
	mu          sync.Mutex
}

func NewTaskExecutor(jobs []Job, cronJobs []CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:        cron.New(),
		jobs:        jobs,
		cronJobs:    cronJobs,
		runningJobs: mapset.NewThreadUnsafeSet[string](),
	}
}

// Run registers the jobs and starts the cron in its own goroutine.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		if err := t.cron.AddFunc(job.Schedule(), t.guard(job)); err != nil {
			logrus.Errorf("failed to add job %s to cron: %v", job.Name(), err)
			return err
		}
		logrus.Infof("scheduled job %s at %s", job.Name(), job.Schedule())
	}

	for _, job := range t.jobs {
		if err := t.cron.AddFunc("@every 1s", t.guard(job)); err != nil {
			return err
		}
	}

	t.cron.Start()

	return nil
}

func (t *TaskExecutor) guard(job Job) func() {
	return func() {
		if !t.acquire(job.Name()) {
			logrus.Warnf("job %s is still running, skipping", job.Name())
			return
		}
		defer t.release(job.Name())

		start := time.Now()
		job.Run()
		logrus.Debugf("job %s took %v", job.Name(), time.Since(start))
	}
}

func (t *TaskExecutor) acquire(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningJobs.Add(name)
}

func (t *TaskExecutor) release(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runningJobs.Remove(name)
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all jobs")
	t.cron.Stop()
}
