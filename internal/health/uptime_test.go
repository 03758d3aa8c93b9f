package health

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAggregator_FirstSample(t *testing.T) {
	a := NewAggregator(0)
	s := a.Record("plex", domain.Up, t0)

	if s.Lifetime.Total() != 0 {
		t.Fatalf("expected zero accumulators, got %+v", s.Lifetime)
	}
	if !s.Since.Equal(t0) || s.State != domain.Up {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if got := s.UptimePct(); got != 100 {
		t.Fatalf("uptime with no elapsed time and Up state: got %v", got)
	}

	d := NewAggregator(0).Record("ssh", domain.Down, t0)
	if d.UptimePct() != 0 || d.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected down summary: %+v", d)
	}
}

func TestAggregator_SumMatchesWallClock(t *testing.T) {
	a := NewAggregator(0)
	states := []domain.HealthState{domain.Up, domain.Up, domain.Degraded, domain.Down, domain.Up, domain.Degraded, domain.Up}
	gaps := []time.Duration{0, 5 * time.Second, 7300 * time.Millisecond, 4 * time.Second, 11 * time.Second, 5 * time.Second, 900 * time.Millisecond}

	at := t0
	var s Summary
	for i, st := range states {
		at = at.Add(gaps[i])
		s = a.Record("radarr", st, at)
	}
	if got, want := s.Lifetime.Total(), at.Sub(t0); got != want {
		t.Fatalf("accumulators sum to %s, want %s", got, want)
	}
	pct := s.UptimePct()
	if pct < 0 || pct > 100 {
		t.Fatalf("uptime out of range: %v", pct)
	}
}

func TestAggregator_AllUpAndAllDown(t *testing.T) {
	a := NewAggregator(0)
	var up, down Summary
	for i := 0; i < 10; i++ {
		at := t0.Add(time.Duration(i) * 5 * time.Second)
		up = a.Record("up", domain.Up, at)
		down = a.Record("down", domain.Down, at)
	}
	if up.UptimePct() != 100 {
		t.Fatalf("all-up uptime = %v", up.UptimePct())
	}
	if down.UptimePct() != 0 {
		t.Fatalf("all-down uptime = %v", down.UptimePct())
	}
	if down.ConsecutiveFailures != 10 {
		t.Fatalf("consecutive failures = %d", down.ConsecutiveFailures)
	}
}

// Local endpoint down, remote answering: the service is Degraded and
// that time is credited to the Degraded bucket, not to Up.
func TestAggregator_DegradedAccumulates(t *testing.T) {
	a := NewAggregator(0)
	a.Record("sonarr", domain.Up, t0)
	a.Record("sonarr", domain.Degraded, t0.Add(5*time.Second))
	s := a.Record("sonarr", domain.Degraded, t0.Add(15*time.Second))

	if s.State != domain.Degraded || !s.Since.Equal(t0.Add(5*time.Second)) {
		t.Fatalf("unexpected state/since: %+v", s)
	}
	if s.Lifetime.Up != 5*time.Second || s.Lifetime.Degraded != 10*time.Second {
		t.Fatalf("unexpected durations: %+v", s.Lifetime)
	}
	if s.ConsecutiveFailures != 0 {
		t.Fatalf("degraded must not count as failure: %d", s.ConsecutiveFailures)
	}
	if got := s.UptimePct(); math.Abs(got-100.0/3) > 1e-9 {
		t.Fatalf("uptime = %v", got)
	}
}

func TestAggregator_ConsecutiveFailures(t *testing.T) {
	a := NewAggregator(0)
	seq := []struct {
		st   domain.HealthState
		want int
	}{
		{domain.Up, 0},
		{domain.Down, 1},
		{domain.Down, 2},
		{domain.Degraded, 2},
		{domain.Down, 3},
		{domain.Up, 0},
	}
	for i, step := range seq {
		s := a.Record("ssh", step.st, t0.Add(time.Duration(i)*5*time.Second))
		if s.ConsecutiveFailures != step.want {
			t.Fatalf("step %d (%s): failures = %d want %d", i, step.st, s.ConsecutiveFailures, step.want)
		}
	}
}

func TestAggregator_SinceOnlyMovesOnChange(t *testing.T) {
	a := NewAggregator(0)
	a.Record("ha", domain.Up, t0)
	s := a.Record("ha", domain.Up, t0.Add(5*time.Second))
	if !s.Since.Equal(t0) {
		t.Fatalf("since moved without a state change: %s", s.Since)
	}
	s = a.Record("ha", domain.Down, t0.Add(10*time.Second))
	if !s.Since.Equal(t0.Add(10 * time.Second)) {
		t.Fatalf("since = %s", s.Since)
	}
}

func TestAggregator_ClockStepBackwards(t *testing.T) {
	a := NewAggregator(0)
	a.Record("x", domain.Up, t0)
	a.Record("x", domain.Up, t0.Add(10*time.Second))
	s := a.Record("x", domain.Down, t0.Add(4*time.Second))

	if s.Lifetime.Total() != 10*time.Second {
		t.Fatalf("accumulators = %+v", s.Lifetime)
	}
	if s.Lifetime.Down != 0 {
		t.Fatalf("negative interval must not be credited: %+v", s.Lifetime)
	}
	if !s.LastSample.Equal(t0.Add(10 * time.Second)) {
		t.Fatalf("last sample moved backwards: %s", s.LastSample)
	}
}

func TestAggregator_Window(t *testing.T) {
	a := NewAggregator(time.Minute)
	// 2 minutes down, then 1 minute up: lifetime 33%, trailing minute 100%.
	a.Record("prowlarr", domain.Down, t0)
	a.Record("prowlarr", domain.Up, t0.Add(2*time.Minute))
	s := a.Record("prowlarr", domain.Up, t0.Add(3*time.Minute))

	if s.Lifetime.Down != 2*time.Minute || s.Lifetime.Up != time.Minute {
		t.Fatalf("lifetime = %+v", s.Lifetime)
	}
	if s.Windowed.Total() != time.Minute {
		t.Fatalf("windowed total = %s", s.Windowed.Total())
	}
	if s.UptimePct() != 100 {
		t.Fatalf("windowed uptime = %v", s.UptimePct())
	}

	// Straddling the cutoff: 30s of the Down segment is still inside.
	b := NewAggregator(time.Minute)
	b.Record("p", domain.Down, t0)
	b.Record("p", domain.Up, t0.Add(time.Minute))
	s = b.Record("p", domain.Up, t0.Add(90*time.Second))
	if s.Windowed.Down != 30*time.Second || s.Windowed.Up != 30*time.Second {
		t.Fatalf("windowed = %+v", s.Windowed)
	}
	if s.UptimePct() != 50 {
		t.Fatalf("uptime = %v", s.UptimePct())
	}
}

func TestAggregator_Summary(t *testing.T) {
	a := NewAggregator(0)
	if _, ok := a.Summary("missing"); ok {
		t.Fatal("expected no summary for unknown target")
	}
	a.Record("plex", domain.Up, t0)
	s, ok := a.Summary("plex")
	if !ok || s.State != domain.Up {
		t.Fatalf("unexpected summary: %+v ok=%v", s, ok)
	}
}

func TestSummary_JSONIncludesUptime(t *testing.T) {
	a := NewAggregator(0)
	a.Record("plex", domain.Up, t0)
	s := a.Record("plex", domain.Down, t0.Add(time.Second))

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["state"] != "down" || m["uptime_pct"] != float64(100) {
		t.Fatalf("unexpected json: %s", b)
	}
	if _, ok := m["windowed"]; ok {
		t.Fatalf("lifetime-only summary should omit windowed: %s", b)
	}
}

func TestSummary_JSONWindowed(t *testing.T) {
	a := NewAggregator(time.Minute)
	a.Record("plex", domain.Up, t0)
	s := a.Record("plex", domain.Up, t0.Add(10*time.Second))

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	w, ok := m["windowed"].(map[string]any)
	if !ok || w["up"] != float64(10*time.Second) {
		t.Fatalf("expected windowed durations: %s", b)
	}
}

func TestAggregator_ConcurrentTargets(t *testing.T) {
	a := NewAggregator(0)
	ids := []domain.TargetID{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.TargetID) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				a.Record(id, domain.Up, t0.Add(time.Duration(i)*time.Second))
			}
		}(id)
	}
	wg.Wait()
	for _, id := range ids {
		s, _ := a.Summary(id)
		if s.Lifetime.Up != 199*time.Second {
			t.Fatalf("%s: up = %s", id, s.Lifetime.Up)
		}
	}
}
