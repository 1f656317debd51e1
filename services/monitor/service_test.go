package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/telemetry"
	"gedusentinel/lib/timezone"

	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	mu         sync.Mutex
	loginErr   error
	fetchErr   error
	events     []gedu.Event
	loginCalls int
	fetchCalls int
}

func (p *fakePortal) Login(ctx context.Context, username, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginCalls++
	return p.loginErr
}

func (p *fakePortal) FetchEvents(ctx context.Context, date time.Time) ([]gedu.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return append([]gedu.Event{}, p.events...), nil
}

func (p *fakePortal) set(events []gedu.Event, fetchErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = events
	p.fetchErr = fetchErr
}

type fakeSink struct {
	mu       sync.Mutex
	subjects []string
}

func (s *fakeSink) Deliver(ctx context.Context, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
	return nil
}

func (s *fakeSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.subjects...)
}

func setupService(t *testing.T, portal *fakePortal, sink *fakeSink) *Service {
	cleanup := telemetry.SetupForTesting(t, "test:services/monitor")
	t.Cleanup(cleanup)

	s, err := NewService(portal, sink, Options{
		Username: "georgina",
		Password: "hunter2",
		DayRange: 7,
	})
	require.NoError(t, err)
	return s
}

func todayEvent(title string, hour int) gedu.Event {
	now := timezone.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, timezone.Location)
	return gedu.Event{
		Title:     title,
		Location:  "Room 3",
		TimeLabel: fmt.Sprintf("%02d:00-%02d:00", hour, hour+1),
		Start:     start,
		End:       start.Add(time.Hour),
	}
}

func TestNewServiceRejectsBadDayRange(t *testing.T) {
	_, err := NewService(&fakePortal{}, &fakeSink{}, Options{DayRange: 0})
	require.Error(t, err)
}

func TestFailedLoginStopsEverything(t *testing.T) {
	portal := &fakePortal{loginErr: gedu.ErrLoginFailed}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	require.Equal(t, StateNeedsLogin, s.State())
	s.loginTick(ctx)
	require.Equal(t, StateStopped, s.State())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done() should be closed after a fatal login failure")
	}

	// further ticks of either job must be no-ops
	s.loginTick(ctx)
	s.updateTick(ctx)
	require.Equal(t, 1, portal.loginCalls)
	require.Equal(t, 0, portal.fetchCalls)
	require.Empty(t, sink.delivered())
}

func TestFirstLoginTriggersImmediateUpdate(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	require.Equal(t, StatePolling, s.State())
	require.Equal(t, 1, portal.loginCalls)
	require.Equal(t, 1, portal.fetchCalls)

	// the very first poll has an empty previous window: a non-empty
	// schedule is itself a change
	s.reportWG.Wait()
	require.Len(t, sink.delivered(), 1)
	require.Contains(t, sink.delivered()[0], "Events Report:")
}

func TestIdenticalPollsNeverReport(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	s.reportWG.Wait()
	require.Len(t, sink.delivered(), 1)

	s.updateTick(ctx)
	s.updateTick(ctx)
	s.reportWG.Wait()
	require.Len(t, sink.delivered(), 1, "unchanged schedule must not produce reports")
}

func TestChangedPollReports(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	s.reportWG.Wait()

	portal.set([]gedu.Event{todayEvent("Algebra", 9), todayEvent("Reading", 14)}, nil)
	s.updateTick(ctx)
	s.reportWG.Wait()
	require.Len(t, sink.delivered(), 2)
}

func TestSessionExpiryRecovers(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	require.Equal(t, StatePolling, s.State())

	portal.set(nil, gedu.ErrSessionExpired)
	s.updateTick(ctx)
	require.Equal(t, StateNeedsLogin, s.State())

	// the login job picks it back up, then polling resumes
	portal.set([]gedu.Event{todayEvent("Algebra", 9)}, nil)
	s.loginTick(ctx)
	require.Equal(t, StatePolling, s.State())

	fetchesBefore := portal.fetchCalls
	s.updateTick(ctx)
	require.Equal(t, fetchesBefore+1, portal.fetchCalls)
	s.reportWG.Wait()
}

func TestDecodeFailureRetriesNextTick(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	s.reportWG.Wait()

	portal.set(nil, fmt.Errorf("%w: decode event array", gedu.ErrDecode))
	s.updateTick(ctx)
	require.Equal(t, StatePolling, s.State(), "a malformed blob must not stop the monitor")

	// the schedule comes back clean on the next tick
	portal.set([]gedu.Event{todayEvent("Algebra", 9)}, nil)
	s.updateTick(ctx)
	s.reportWG.Wait()
	require.Equal(t, StatePolling, s.State())
	require.Len(t, sink.delivered(), 1, "the retained event set still matches")
}

func TestUnknownFetchFailureStops(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	s.loginTick(ctx)
	s.reportWG.Wait()

	portal.set(nil, fmt.Errorf("the portal is on fire"))
	s.updateTick(ctx)
	require.Equal(t, StateStopped, s.State())

	s.updateTick(ctx)
	s.loginTick(ctx)
	require.Equal(t, StateStopped, s.State())
}

func TestStartAndStop(t *testing.T) {
	portal := &fakePortal{events: []gedu.Event{todayEvent("Algebra", 9)}}
	sink := &fakeSink{}
	s := setupService(t, portal, sink)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	s.Stop()
	require.Equal(t, StateStopped, s.State())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() should close on Stop()")
	}

	require.Error(t, s.Start(ctx), "a stopped monitor must not restart")
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	s, err := NewService(&fakePortal{}, &fakeSink{}, Options{
		DayRange:   1,
		UpdateCron: "not a cron spec",
	})
	require.NoError(t, err)
	require.Error(t, s.Start(context.Background()))
}
