package service

import (
	"sync"
	"time"
)

// VotingSession is the casting window. A zero duration leaves the window open
// until End is called.
type VotingSession struct {
	startTime time.Time
	endTime   time.Time
	isActive  bool
	mu        sync.RWMutex
}

func NewVotingSession(duration time.Duration) *VotingSession {
	now := time.Now()
	vs := &VotingSession{
		startTime: now,
		isActive:  true,
	}
	if duration > 0 {
		vs.endTime = now.Add(duration)
	}
	return vs
}

func (vs *VotingSession) IsActive() bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	if !vs.isActive {
		return false
	}
	return vs.endTime.IsZero() || time.Now().Before(vs.endTime)
}

func (vs *VotingSession) End() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.isActive = false
}

// Window returns the start and, when bounded, the end of the session.
func (vs *VotingSession) Window() (time.Time, time.Time) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.startTime, vs.endTime
}
