package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emrgen/qda/internal/jobs"
)

type tickJob struct {
	runs atomic.Int32
}

func (t *tickJob) Name() string     { return "tick" }
func (t *tickJob) Schedule() string { return "@every 1s" }
func (t *tickJob) Run()             { t.runs.Add(1) }

func TestWorker_RunsJobsUntilStopped(t *testing.T) {
	job := &tickJob{}
	worker := NewWorker([]jobs.CronJob{job})

	done := make(chan error, 1)
	go func() {
		done <- worker.Start()
	}()

	assert.Eventually(t, func() bool {
		return job.runs.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	worker.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
