// Package scheduler runs the recurring scan-and-dispatch cycle that turns
// due reminders into delivered messages.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
)

const DefaultInterval = 10 * time.Second

// Failure reasons reported to Hooks.OnFailed.
const (
	ReasonDecode   = "decode"
	ReasonDispatch = "dispatch"
)

// Dispatcher delivers text to a destination and reports which host
// convention carried it. *dispatch.Adapter satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, ref destination.Reference, text string) (string, error)
}

// Hooks are metric callbacks; any of them may be nil.
type Hooks struct {
	OnCycle   func(elapsed time.Duration, due int)
	OnSkipped func()
	OnSent    func(convention string)
	OnFailed  func(reason string)
}

func (h *Hooks) fill() {
	if h.OnCycle == nil {
		h.OnCycle = func(time.Duration, int) {}
	}
	if h.OnSkipped == nil {
		h.OnSkipped = func() {}
	}
	if h.OnSent == nil {
		h.OnSent = func(string) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(string) {}
	}
}

// Options tune a Scheduler. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	// Prefix is prepended to every reminder text on delivery.
	Prefix string
	Clock  clock.Clock
	Hooks  Hooks
}

// Scheduler owns the Stopped -> Running -> Stopped lifecycle of the tick loop.
//
// At most one cycle runs at a time: a ticker firing while a cycle is still
// in flight is dropped, not queued. Failed reminders stay pending and are
// retried on every later cycle with no backoff.
type Scheduler struct {
	repo       repository.ReminderRepository
	dispatcher Dispatcher
	clock      clock.Clock
	interval   time.Duration
	prefix     string
	hooks      Hooks
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	ticker *clock.Ticker

	inFlight atomic.Bool

	failMu   sync.Mutex
	failures map[int64]int
}

func New(
	repo repository.ReminderRepository,
	dispatcher Dispatcher,
	opts Options,
	logger *zap.Logger,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	opts.Hooks.fill()

	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      opts.Clock,
		interval:   opts.Interval,
		prefix:     opts.Prefix,
		hooks:      opts.Hooks,
		logger:     logger,
		failures:   make(map[int64]int),
	}
}

// Start begins ticking every interval. Cycles run detached from ctx so that
// cancelling it only stops future firings.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return domain.ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = s.clock.Ticker(s.interval)

	go s.run(loopCtx, s.ticker)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels future firings and returns immediately. A cycle already in
// flight is left to finish on its own. Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.cancel = nil
	s.ticker = nil

	s.logger.Info("scheduler stopping")
}

// Running reports whether the ticker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, ticker *clock.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !s.begin() {
				continue
			}
			go func() {
				defer s.end()
				s.cycle(context.WithoutCancel(ctx))
			}()
		}
	}
}

// Tick runs one cycle synchronously. It returns false, doing nothing, when
// another cycle is already in flight.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.begin() {
		return false
	}
	defer s.end()
	s.cycle(ctx)
	return true
}

func (s *Scheduler) begin() bool {
	if s.inFlight.CompareAndSwap(false, true) {
		return true
	}
	s.logger.Debug("previous cycle still running, tick dropped")
	s.hooks.OnSkipped()
	return false
}

func (s *Scheduler) end() { s.inFlight.Store(false) }

// cycle scans for due reminders and delivers them one at a time, in order.
// Per-reminder failures are logged and leave the reminder pending; a storage
// failure abandons the rest of the cycle.
func (s *Scheduler) cycle(ctx context.Context) {
	start := s.clock.Now()
	now := start.UTC()

	due, err := s.repo.FetchDue(ctx, now)
	if err != nil {
		s.logger.Error("scheduler scan failed", zap.Error(err))
		s.hooks.OnCycle(s.clock.Since(start), 0)
		return
	}

	sent := 0
	for _, r := range due {
		ok, err := s.deliver(ctx, r)
		if err != nil {
			s.logger.Error("failed to mark reminder sent, abandoning cycle",
				zap.Int64("reminder_id", r.ID), zap.Error(err))
			break
		}
		if ok {
			sent++
		}
	}

	s.hooks.OnCycle(s.clock.Since(start), len(due))
	if len(due) > 0 {
		s.logger.Info("scheduler cycle finished",
			zap.Int("due", len(due)),
			zap.Int("sent", sent),
		)
	}
}

// deliver handles one reminder. It reports whether the reminder was sent;
// the error is non-nil only for a storage failure after a successful send.
func (s *Scheduler) deliver(ctx context.Context, r *domain.Reminder) (bool, error) {
	log := s.logger.With(zap.Int64("reminder_id", r.ID))

	ref, err := destination.Decode(r.Destination)
	if err != nil {
		n := s.recordFailure(r.ID)
		log.Warn("cannot decode reminder destination, skipping",
			zap.Int("consecutive_failures", n), zap.Error(err))
		s.hooks.OnFailed(ReasonDecode)
		return false, nil
	}

	convention, err := s.dispatcher.Send(ctx, ref, s.prefix+r.Text)
	if err != nil {
		n := s.recordFailure(r.ID)
		log.Warn("reminder dispatch failed, will retry next cycle",
			zap.String("conversation_id", ref.Conversation.ID),
			zap.Int("consecutive_failures", n),
			zap.Error(err),
		)
		s.hooks.OnFailed(ReasonDispatch)
		return false, nil
	}

	if err := s.repo.MarkSent(ctx, r.ID); err != nil {
		return false, err
	}
	s.clearFailures(r.ID)
	s.hooks.OnSent(convention)
	log.Info("reminder sent",
		zap.String("convention", convention),
		zap.String("conversation_id", ref.Conversation.ID),
	)
	return true, nil
}

// ConsecutiveFailures returns how many cycles in a row failed to deliver id
// since this process started.
func (s *Scheduler) ConsecutiveFailures(id int64) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[id]
}

func (s *Scheduler) recordFailure(id int64) int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[id]++
	return s.failures[id]
}

func (s *Scheduler) clearFailures(id int64) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	delete(s.failures, id)
}
