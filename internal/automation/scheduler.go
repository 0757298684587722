package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"
)

// JobKind identifies an automation; at most one instance of a kind is
// logically active at a time.
type JobKind string

const (
	JobApply   JobKind = "vacancy_apply"
	JobRefresh JobKind = "resume_update"
)

// Default periodic intervals and the flex window applied as random
// jitter before each periodic firing.
const (
	ApplyInterval   = 24 * time.Hour
	RefreshInterval = 4 * time.Hour
	FlexWindow      = 15 * time.Minute
)

// RunState is the observable lifecycle of one job kind.
type RunState int

const (
	StateIdle RunState = iota
	StateScheduled
	StateRunning
)

func (s RunState) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	}
	return "idle"
}

// Job is one schedulable unit of work. A retryable error (see
// Retryable) asks for a bounded backoff retry within the same firing;
// any other error ends the firing, leaving the periodic schedule in
// place.
type Job func(ctx context.Context) error

// Scheduler translates start/stop intents into an immediate run plus a
// periodic cron entry per job kind. Starting a kind replaces any
// pending schedule for that kind.
type Scheduler struct {
	cron          *cron.Cron
	flex          time.Duration
	retryInterval time.Duration
	maxTries      uint

	mu      sync.Mutex
	entries map[JobKind]cron.EntryID
	states  map[JobKind]RunState
	cancels map[JobKind]context.CancelFunc
	wg      sync.WaitGroup

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewScheduler creates a started scheduler. flex is the jitter window
// before periodic firings (0 disables jitter).
func NewScheduler(flex time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:          cron.New(),
		flex:          flex,
		retryInterval: 30 * time.Second,
		maxTries:      3,
		entries:       make(map[JobKind]cron.EntryID),
		states:        make(map[JobKind]RunState),
		cancels:       make(map[JobKind]context.CancelFunc),
		baseCtx:       ctx,
		baseCancel:    cancel,
	}
	s.cron.Start()
	return s
}

// Start schedules kind: one immediate run plus a periodic entry every
// interval. An existing schedule for the same kind is replaced.
func (s *Scheduler) Start(kind JobKind, interval time.Duration, job Job) error {
	s.mu.Lock()
	if id, ok := s.entries[kind]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.execute(kind, job, true)
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: add %s: %w", kind, err)
	}
	s.entries[kind] = id
	if s.states[kind] != StateRunning {
		s.states[kind] = StateScheduled
	}
	s.mu.Unlock()

	slog.Info("scheduler: started",
		slog.String("job", string(kind)), slog.Duration("interval", interval))
	go s.execute(kind, job, false)
	return nil
}

// Stop cancels the periodic schedule for kind and any in-flight run.
func (s *Scheduler) Stop(kind JobKind) {
	s.mu.Lock()
	if id, ok := s.entries[kind]; ok {
		s.cron.Remove(id)
		delete(s.entries, kind)
	}
	if cancel, ok := s.cancels[kind]; ok {
		cancel()
	}
	if s.states[kind] != StateRunning {
		s.states[kind] = StateIdle
	}
	s.mu.Unlock()
	slog.Info("scheduler: stopped", slog.String("job", string(kind)))
}

// State reports the observable state of kind.
func (s *Scheduler) State(kind JobKind) RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[kind]
}

// Shutdown stops the cron substrate, cancels running jobs and waits
// for them to unwind.
func (s *Scheduler) Shutdown() {
	s.cron.Stop()
	s.baseCancel()
	s.wg.Wait()
}

// execute runs one firing of kind: optional flex jitter, then the job
// with bounded exponential-backoff retries for retryable failures.
// Overlapping firings of the same kind are skipped.
func (s *Scheduler) execute(kind JobKind, job Job, jitter bool) {
	s.mu.Lock()
	if s.states[kind] == StateRunning {
		s.mu.Unlock()
		slog.Debug("scheduler: already running, skipping firing", slog.String("job", string(kind)))
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancels[kind] = cancel
	s.states[kind] = StateRunning
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		cancel()
		delete(s.cancels, kind)
		if _, scheduled := s.entries[kind]; scheduled {
			s.states[kind] = StateScheduled
		} else {
			s.states[kind] = StateIdle
		}
		s.wg.Done()
		s.mu.Unlock()
	}()

	if jitter && s.flex > 0 {
		d := time.Duration(rand.Int64N(int64(s.flex)))
		slog.Debug("scheduler: flex jitter", slog.String("job", string(kind)), slog.Duration("delay", d))
		if err := sleepCtx(ctx, d); err != nil {
			return
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := job(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			slog.Warn("scheduler: run failed, will retry",
				slog.String("job", string(kind)), slog.Any("error", err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxTries))

	if err != nil {
		slog.Error("scheduler: run failed",
			slog.String("job", string(kind)), slog.Any("error", err))
	}
}
