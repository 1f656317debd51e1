package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/timezone"
	"gedusentinel/services/monitor/report"

	"github.com/robfig/cron/v3"
)

type State int

const (
	StateNeedsLogin State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNeedsLogin:
		return "needs_login"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Portal is the authenticated scraping capability the monitor drives,
// implemented by gedu.Client.
type Portal interface {
	Login(ctx context.Context, username, password string) error
	FetchEvents(ctx context.Context, date time.Time) ([]gedu.Event, error)
}

// Sink receives a rendered change report, implemented by
// report.Mailer.
type Sink interface {
	Deliver(ctx context.Context, subject, html string) error
}

type Options struct {
	Username string
	Password string
	// how many calendar days ahead to watch, at least 1
	DayRange int
	// cron spec with seconds for the update job, defaults to every 30
	// seconds
	UpdateCron string
}

// Service runs the login and update jobs over a single shared poll
// state. The JS-style single-thread discipline of the portal scraper
// this replaces becomes a mutex here since cron ticks are real
// goroutines.
type Service struct {
	portal Portal
	sink   Sink
	opts   Options

	mu          sync.Mutex
	cron        *cron.Cron
	needsLogin  bool
	stopped     bool
	initialized bool
	lastEvents  []gedu.Event

	done     chan struct{}
	reportWG sync.WaitGroup
}

func NewService(portal Portal, sink Sink, opts Options) (*Service, error) {
	if opts.DayRange < 1 {
		return nil, fmt.Errorf("day range must be at least 1, got %d", opts.DayRange)
	}
	if opts.UpdateCron == "" {
		opts.UpdateCron = "*/30 * * * * *"
	}
	return &Service{
		portal:     portal,
		sink:       sink,
		opts:       opts,
		needsLogin: true,
		done:       make(chan struct{}),
	}, nil
}

// Start schedules the login job (every second, only active while a
// login is needed) and the update job. Neither job ever overlaps
// itself, ticks that run long are skipped instead.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(timezone.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc("* * * * * *", func() { s.loginTick(ctx) })
	if err != nil {
		return err
	}
	_, err = c.AddFunc(s.opts.UpdateCron, func() { s.updateTick(ctx) })
	if err != nil {
		return fmt.Errorf("bad update cron spec %q: %w", s.opts.UpdateCron, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("monitor is already stopped")
	}
	s.cron = c
	s.mu.Unlock()

	c.Start()
	slog.InfoContext(ctx, "monitor started",
		"update_cron", s.opts.UpdateCron,
		"day_range", s.opts.DayRange,
	)
	return nil
}

// Stop halts further tick scheduling for both jobs. A tick already in
// flight still runs to completion.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.done)
}

// Done closes once the monitor reaches its terminal state.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return StateStopped
	case s.needsLogin:
		return StateNeedsLogin
	default:
		return StatePolling
	}
}

func (s *Service) loginTick(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || !s.needsLogin {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "start to login")
	err := s.portal.Login(ctx, s.opts.Username, s.opts.Password)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// a refused login won't fix itself, keeping the retry loop
		// alive would only hammer the portal with bad credentials
		slog.ErrorContext(ctx, "login failed, stopping the monitor", "err", err)
		s.stopLocked()
		s.mu.Unlock()
		return
	}
	s.needsLogin = false
	first := !s.initialized
	s.initialized = true
	s.mu.Unlock()

	slog.InfoContext(ctx, "login succeeded")
	if first {
		// don't make the first schedule snapshot wait for the next
		// scheduled update tick
		s.updateTick(ctx)
	}
}

func (s *Service) updateTick(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || s.needsLogin {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	slog.DebugContext(ctx, "start to get events")
	events, err := s.portal.FetchEvents(ctx, timezone.Now())

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, gedu.ErrSessionExpired) {
			slog.InfoContext(ctx, "login session seems expired, waiting for relogin")
			s.needsLogin = true
			s.mu.Unlock()
			return
		}
		if errors.Is(err, gedu.ErrDecode) {
			// the previous event set stays in place, the next
			// scheduled tick retries naturally
			slog.WarnContext(ctx, "got malformed event data", "err", err)
			s.mu.Unlock()
			return
		}
		slog.ErrorContext(ctx, "failed to get events for an unknown reason, stopping the monitor", "err", err)
		s.stopLocked()
		s.mu.Unlock()
		return
	}

	slices.SortFunc(events, func(a, b gedu.Event) int {
		return a.Start.Compare(b.Start)
	})
	prev := s.lastEvents
	s.lastEvents = events
	s.mu.Unlock()

	slog.InfoContext(ctx, "got events", "count", len(events), "total_hours", CalcHours(events))

	// diff and report off the tick path so a slow smtp server never
	// delays the next poll
	s.reportWG.Add(1)
	go func() {
		defer s.reportWG.Done()
		s.compareAndReport(ctx, prev, events)
	}()
}

func (s *Service) compareAndReport(ctx context.Context, prev, curr []gedu.Event) {
	now := timezone.Now()
	prevWindow := RecentWindow(prev, now, s.opts.DayRange)
	currWindow := RecentWindow(curr, now, s.opts.DayRange)

	summary := Compare(prevWindow, currWindow)
	if summary == nil {
		slog.DebugContext(ctx, "no event changes")
		return
	}
	slog.InfoContext(ctx, "events changed",
		"prev_hours", summary.PrevHours,
		"curr_hours", summary.CurrHours,
		"prev_count", len(prevWindow),
		"curr_count", len(currWindow),
	)

	doc := report.Render(prevWindow, currWindow, s.opts.DayRange, now)
	err := s.sink.Deliver(ctx, doc.Subject, doc.Body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to deliver change report", "err", err)
	}
}
