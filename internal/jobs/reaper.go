package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
)

var _ CronJob = (*SessionReaper)(nil)

// IdleEvictor drops sessions that were not used for a while.
type IdleEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// SessionReaper frees the memory held by idle coding sessions.
type SessionReaper struct {
	sessions IdleEvictor
	maxIdle  time.Duration
}

func NewSessionReaper(sessions IdleEvictor, maxIdle time.Duration) *SessionReaper {
	return &SessionReaper{sessions: sessions, maxIdle: maxIdle}
}

func (r *SessionReaper) Name() string {
	return "session_reaper"
}

func (r *SessionReaper) Schedule() string {
	return "@every 1m"
}

func (r *SessionReaper) Run() {
	if n := r.sessions.EvictIdle(r.maxIdle); n > 0 {
		logrus.Infof("evicted %d idle sessions", n)
	}
}
