package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs a set of jobs concurrently, each on its own fixed-period
// cycle, until the context is cancelled. One job's persistent failure
// never stops the others or the scheduler itself.
type Scheduler struct {
	jobs []Job
}

func NewScheduler(jobs []Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run starts one goroutine per job and blocks until every loop has
// observed the cancellation and returned. Cancellation is cooperative:
// in-flight network operations finish or time out on their own.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			s.runJob(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

// runJob fires job once per period. The next fire time is the previous
// fire time plus the period; if a measurement overruns the period the job
// fires again immediately rather than queueing a backlog, so there is
// always exactly one fire in flight.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	log.Infof("starting %s job on a %v period", job.Name(), job.Period())

	next := time.Now()
	for {
		if err := job.Measure(ctx); err != nil {
			// unexpected failure; log it and stay on schedule
			log.Errorf("%s measure failed: %v", job.Name(), err)
		}

		next = next.Add(job.Period())
		wait := time.Until(next)
		if wait <= 0 {
			next = time.Now()
			if ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
