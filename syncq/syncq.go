// Package syncq is the fire-and-forget delivery queue between local
// mutations and their remote mirrors (cart upserts, booking leads). Jobs are
// keyed per entity; a newer write replaces a pending one.
package syncq

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one remote-mirroring attempt.
type Job func(ctx context.Context) error

const maxSyncAttempts = 3

// Syncer is the fire-and-forget queue between local mutations and the remote
// store. Jobs are keyed; a newer job for the same key replaces the pending
// one (last-write-wins), and failed jobs are retried until the attempt
// budget runs out. UI-facing handlers never wait on it.
type Syncer struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	jobs     map[string]Job
	order    []string
	attempts map[string]int

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSyncer(log logrus.FieldLogger) *Syncer {
	return &Syncer{
		log:      log,
		jobs:     make(map[string]Job),
		attempts: make(map[string]int),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue schedules a job under key, replacing any pending job with the same
// key. A fresh write resets the retry budget.
func (s *Syncer) Enqueue(key string, job Job) {
	s.mu.Lock()
	if _, ok := s.jobs[key]; !ok {
		s.order = append(s.order, key)
	}
	s.jobs[key] = job
	s.attempts[key] = 0
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many jobs are queued but not yet delivered.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Flush runs every job pending at the moment of the call. Failed jobs are
// re-queued for a later round unless they ran out of attempts or a newer
// write superseded them while running.
func (s *Syncer) Flush(ctx context.Context) {
	batch := s.drain()

	for _, it := range batch {
		if err := it.job(ctx); err != nil {
			s.requeue(it.key, it.job, it.attempt+1, err)
		}
	}
}

type item struct {
	key     string
	job     Job
	attempt int
}

func (s *Syncer) drain() []item {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]item, 0, len(s.order))
	for _, key := range s.order {
		batch = append(batch, item{key: key, job: s.jobs[key], attempt: s.attempts[key]})
		delete(s.jobs, key)
		delete(s.attempts, key)
	}
	s.order = s.order[:0]
	return batch
}

func (s *Syncer) requeue(key string, job Job, attempt int, cause error) {
	if attempt >= maxSyncAttempts {
		s.log.WithFields(logrus.Fields{"key": key, "message": cause}).
			Warn("dropping remote sync after repeated failures")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer write for this key landed while the job was running; it wins.
	if _, ok := s.jobs[key]; ok {
		return
	}

	s.jobs[key] = job
	s.attempts[key] = attempt
	s.order = append(s.order, key)
}

// Start launches the delivery loop. The ticker doubles as the retry timer.
func (s *Syncer) Start() {
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.wake:
			case <-time.After(5 * time.Second):
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			s.Flush(ctx)
			cancel()
		}
	}()
}

func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
