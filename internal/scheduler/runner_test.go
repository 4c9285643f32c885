package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerTrigger(t *testing.T) {
	var runs int32
	job := func(ctx context.Context) (Summary, error) {
		atomic.AddInt32(&runs, 1)
		return Summary{Total: 3, Succeeded: 3}, nil
	}
	r := NewRunner("TEST", time.Hour, job, zerolog.Nop())

	summary, err := r.Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Duration <= 0 {
		t.Error("duration not recorded")
	}
	if atomic.LoadInt32(&runs) != 1 {
		t.Errorf("job ran %d times, want 1", runs)
	}
}

func TestRunnerTriggerRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once
	job := func(ctx context.Context) (Summary, error) {
		startedOnce.Do(func() { close(started) })
		<-release
		return Summary{}, nil
	}
	r := NewRunner("TEST", time.Hour, job, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Trigger(context.Background())
	}()
	<-started

	_, err := r.Trigger(context.Background())
	if !errors.Is(err, ErrTickInProgress) {
		t.Errorf("err = %v, want ErrTickInProgress", err)
	}

	close(release)
	<-done

	if _, err := r.Trigger(context.Background()); err != nil {
		t.Errorf("trigger after completion: %v", err)
	}
}

func TestRunnerRecoversJobPanic(t *testing.T) {
	job := func(ctx context.Context) (Summary, error) {
		panic("boom")
	}
	r := NewRunner("TEST", time.Hour, job, zerolog.Nop())

	_, err := r.Trigger(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking job")
	}
}

func TestRunnerStartStop(t *testing.T) {
	job := func(ctx context.Context) (Summary, error) {
		return Summary{}, nil
	}
	r := NewRunner("TEST", time.Hour, job, zerolog.Nop())

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !r.IsRunning() {
		t.Error("runner should report running")
	}
	if err := r.Start(); err == nil {
		t.Error("second start should fail")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("runner should report stopped")
	}
	if err := r.Stop(); err == nil {
		t.Error("second stop should fail")
	}
}

func TestSummaryAddErrorCapsSamples(t *testing.T) {
	var s Summary
	for i := 0; i < 10; i++ {
		s.AddError(fmt.Errorf("failure %d", i))
	}
	if s.Failed != 10 {
		t.Errorf("failed = %d, want 10", s.Failed)
	}
	if len(s.ErrorSamples) != maxErrorSamples {
		t.Errorf("samples = %d, want %d", len(s.ErrorSamples), maxErrorSamples)
	}
	if s.ErrorSamples[0] != "failure 0" {
		t.Errorf("first sample = %q", s.ErrorSamples[0])
	}
}
