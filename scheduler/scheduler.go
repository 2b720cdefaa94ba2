// Package scheduler runs tasks at a future wall-clock time. It offers
// exactly the two capabilities the payment core needs: one-shot delayed jobs
// and an hourly tick. Task panics are contained per job.
package scheduler

import (
	"sync"
	"time"
)

// JobID identifies a scheduled one-shot job.
type JobID uint64

// Scheduler dispatches one-shot and hourly tasks on their own goroutines.
type Scheduler struct {
	mtx     sync.Mutex
	nextID  JobID
	pending map[JobID]*time.Timer
	stopped bool

	quit chan struct{}
}

// New returns a started scheduler.
func New() *Scheduler {
	return &Scheduler{
		nextID:  1,
		pending: make(map[JobID]*time.Timer),
		quit:    make(chan struct{}),
	}
}

// RunAfter schedules task to run once after the given delay and returns its
// job id. Scheduling on a stopped scheduler returns 0 and does not run the
// task.
func (s *Scheduler) RunAfter(delay time.Duration, task func()) JobID {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.stopped {
		return 0
	}

	id := s.nextID
	s.nextID++
	s.pending[id] = afterFunc(delay, func() {
		s.mtx.Lock()
		delete(s.pending, id)
		stopped := s.stopped
		s.mtx.Unlock()
		if stopped {
			return
		}
		task()
	})
	return id
}

// Cancel stops the pending job with the given id. It reports whether the job
// was still pending; a job that already fired or never existed returns false.
func (s *Scheduler) Cancel(id JobID) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	timer, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	return timer.Stop()
}

// RunHourly runs task once per hour until the scheduler is stopped. The
// first run happens an hour after the call.
func (s *Scheduler) RunHourly(task func()) {
	s.runEvery(time.Hour, task)
}

func (s *Scheduler) runEvery(interval time.Duration, task func()) {
	spawn(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task()
			case <-s.quit:
				return
			}
		}
	})
}

// Stop cancels all pending jobs and stops the hourly tasks. In-flight tasks
// run to completion.
func (s *Scheduler) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.quit)
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
	log.Debugf("Scheduler stopped")
}
