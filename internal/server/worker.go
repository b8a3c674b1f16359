package server

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/emrgen/qda/internal/jobs"
)

// Worker runs the background jobs until it is told to stop.
type Worker struct {
	executor *jobs.TaskExecutor
	stop     chan os.Signal
}

func NewWorker(cronJobs []jobs.CronJob) *Worker {
	return &Worker{
		executor: jobs.NewTaskExecutor(nil, cronJobs),
		stop:     make(chan os.Signal, 1),
	}
}

// Start blocks until SIGTERM, SIGINT or SIGTSTP arrives or Stop is called.
func (w *Worker) Start() error {
	if err := w.executor.Run(); err != nil {
		return err
	}

	logrus.Infof("worker started, press Ctrl+C to stop")

	signal.Notify(w.stop, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	defer signal.Stop(w.stop)
	<-w.stop
	// clean Ctrl+C output
	fmt.Println()

	w.executor.Stop()

	return nil
}

// Stop makes Start return.
func (w *Worker) Stop() {
	w.stop <- unix.SIGTERM
}
