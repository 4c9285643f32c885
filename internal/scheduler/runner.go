// Package scheduler provides the periodic job runner shared by the
// refresh, reconciliation, trade-sync, enrichment and PnL schedulers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTickInProgress is returned by Trigger when the previous tick has
// not finished yet.
var ErrTickInProgress = errors.New("tick already in progress")

// Summary is one tick's outcome.
type Summary struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
	ErrorSamples []string      `json:"errorSamples,omitempty"`
}

// maxErrorSamples bounds the per-tick error list in summaries.
const maxErrorSamples = 5

// AddError counts a failure and keeps the first few messages as
// samples for the tick log.
func (s *Summary) AddError(err error) {
	s.Failed++
	if len(s.ErrorSamples) < maxErrorSamples {
		s.ErrorSamples = append(s.ErrorSamples, err.Error())
	}
}

// Job is one scheduler tick. It must isolate per-item failures and
// report them through the summary instead of failing the tick.
type Job func(ctx context.Context) (Summary, error)

// Runner executes a job on a fixed interval. A tick never overlaps the
// previous one; the loop waits for the job to finish before the next
// tick fires.
type Runner struct {
	name     string
	interval time.Duration
	job      Job
	log      zerolog.Logger

	runImmediately bool

	mu       sync.Mutex
	running  bool
	ticking  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRunner(name string, interval time.Duration, job Job, log zerolog.Logger) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		job:      job,
		log:      log.With().Str("component", name).Logger(),
		stopChan: make(chan struct{}),
	}
}

// RunOnStart makes the first tick fire immediately instead of waiting
// one full interval.
func (r *Runner) RunOnStart() *Runner {
	r.runImmediately = true
	return r
}

// Start launches the periodic loop.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("%s scheduler already running", r.name)
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.mu.Unlock()

	r.log.Info().Dur("interval", r.interval).Msgf("[%s] Scheduler started", r.name)

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("%s scheduler not running", r.name)
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()
	r.log.Info().Msgf("[%s] Scheduler stopped", r.name)
	return nil
}

// IsRunning reports whether the loop is active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Trigger runs one tick on demand. Returns an error when a tick is
// already in flight.
func (r *Runner) Trigger(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	if r.ticking {
		r.mu.Unlock()
		return Summary{}, fmt.Errorf("%s: %w", r.name, ErrTickInProgress)
	}
	r.ticking = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.ticking = false
		r.mu.Unlock()
	}()

	return r.tick(ctx)
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if r.runImmediately {
		if _, err := r.Trigger(context.Background()); err != nil {
			r.log.Warn().Err(err).Msgf("[%s] Initial tick skipped", r.name)
		}
	}

	for {
		select {
		case <-ticker.C:
			if _, err := r.Trigger(context.Background()); err != nil {
				r.log.Warn().Err(err).Msgf("[%s] Tick skipped", r.name)
			}
		case <-r.stopChan:
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) (summary Summary, err error) {
	runID := uuid.New().String()[:8]
	start := time.Now()
	tickLog := r.log.With().Str("runId", runID).Logger()
	tickLog.Info().Msgf("[%s] Tick started", r.name)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s tick panicked: %v", r.name, rec)
			tickLog.Error().Interface("panic", rec).Msgf("[%s] Tick panicked", r.name)
		}
	}()

	summary, err = r.job(ctx)
	summary.Duration = time.Since(start)
	if err != nil {
		tickLog.Error().Err(err).Dur("duration", summary.Duration).Msgf("[%s] Tick failed", r.name)
		return summary, err
	}

	tickLog.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Strs("errorSamples", summary.ErrorSamples).
		Dur("duration", summary.Duration).
		Msgf("[%s] Tick completed", r.name)
	return summary, nil
}
