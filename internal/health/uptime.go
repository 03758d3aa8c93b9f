package health

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// Durations is time spent per state.
type Durations struct {
	Up       time.Duration `json:"up"`
	Degraded time.Duration `json:"degraded"`
	Down     time.Duration `json:"down"`
}

func (d Durations) Total() time.Duration { return d.Up + d.Degraded + d.Down }

func (d *Durations) add(s domain.HealthState, v time.Duration) {
	switch s {
	case domain.Up:
		d.Up += v
	case domain.Degraded:
		d.Degraded += v
	default:
		d.Down += v
	}
}

// uptimePct falls back to the current state when no time has been observed.
func (d Durations) uptimePct(current domain.HealthState) float64 {
	total := d.Total()
	if total <= 0 {
		if current == domain.Up {
			return 100
		}
		return 0
	}
	return float64(d.Up) / float64(total) * 100
}

// Summary is a read-only view of a target's uptime record.
type Summary struct {
	State               domain.HealthState `json:"state"`
	Since               time.Time          `json:"since"`
	FirstSample         time.Time          `json:"first_sample"`
	LastSample          time.Time          `json:"last_sample"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	Lifetime            Durations          `json:"lifetime"`
	Window              time.Duration      `json:"window,omitempty"`
	Windowed            Durations          `json:"-"`
}

// UptimePct is Up/(Up+Degraded+Down) in [0,100], over the trailing window
// when one is configured.
func (s Summary) UptimePct() float64 {
	if s.Window > 0 {
		return s.Windowed.uptimePct(s.State)
	}
	return s.Lifetime.uptimePct(s.State)
}

// MarshalJSON adds uptime_pct, and windowed only when a window is set.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	var windowed *Durations
	if s.Window > 0 {
		windowed = &s.Windowed
	}
	return json.Marshal(struct {
		plain
		Windowed  *Durations `json:"windowed,omitempty"`
		UptimePct float64    `json:"uptime_pct"`
	}{plain(s), windowed, s.UptimePct()})
}

type segment struct {
	state    domain.HealthState
	from, to time.Time
}

// record is the UptimeRecord of one target.
type record struct {
	mu       sync.Mutex
	state    domain.HealthState
	created  time.Time
	since    time.Time
	last     time.Time
	acc      Durations
	failures int
	segments []segment
}

// Aggregator keeps one record per target. Writes for a target are expected
// from a single logical writer; records of different targets never share a lock.
type Aggregator struct {
	window time.Duration

	mu      sync.RWMutex
	records map[domain.TargetID]*record
}

// NewAggregator returns an Aggregator. window > 0 computes uptime over the
// trailing window; 0 keeps lifetime-cumulative uptime.
func NewAggregator(window time.Duration) *Aggregator {
	if window < 0 {
		window = 0
	}
	return &Aggregator{window: window, records: make(map[domain.TargetID]*record)}
}

// Record applies one classified sample taken at at and returns the updated summary.
func (a *Aggregator) Record(id domain.TargetID, state domain.HealthState, at time.Time) Summary {
	r := a.recordFor(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.created.IsZero() {
		r.state = state
		r.created, r.since, r.last = at, at, at
		if state == domain.Down {
			r.failures = 1
		}
		return a.summarize(r)
	}

	// Samples are applied in completion order; a clock that steps backwards
	// credits nothing rather than un-counting time.
	if at.Before(r.last) {
		at = r.last
	}
	r.acc.add(r.state, at.Sub(r.last))
	if a.window > 0 {
		r.extend(r.state, r.last, at)
		r.trim(at.Add(-a.window))
	}
	r.last = at

	switch state {
	case domain.Down:
		r.failures++
	case domain.Up:
		r.failures = 0
	}
	if state != r.state {
		r.state = state
		r.since = at
	}
	return a.summarize(r)
}

// Summary returns the current view of a target's record.
func (a *Aggregator) Summary(id domain.TargetID) (Summary, bool) {
	a.mu.RLock()
	r, ok := a.records[id]
	a.mu.RUnlock()
	if !ok {
		return Summary{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return a.summarize(r), true
}

func (a *Aggregator) recordFor(id domain.TargetID) *record {
	a.mu.RLock()
	r, ok := a.records[id]
	a.mu.RUnlock()
	if ok {
		return r
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok = a.records[id]; !ok {
		r = &record{}
		a.records[id] = r
	}
	return r
}

func (a *Aggregator) summarize(r *record) Summary {
	s := Summary{
		State:               r.state,
		Since:               r.since,
		FirstSample:         r.created,
		LastSample:          r.last,
		ConsecutiveFailures: r.failures,
		Lifetime:            r.acc,
	}
	if a.window > 0 {
		s.Window = a.window
		cutoff := r.last.Add(-a.window)
		for _, seg := range r.segments {
			from := seg.from
			if from.Before(cutoff) {
				from = cutoff
			}
			if seg.to.After(from) {
				s.Windowed.add(seg.state, seg.to.Sub(from))
			}
		}
	}
	return s
}

func (r *record) extend(state domain.HealthState, from, to time.Time) {
	if !to.After(from) {
		return
	}
	if n := len(r.segments); n > 0 {
		last := &r.segments[n-1]
		if last.state == state && last.to.Equal(from) {
			last.to = to
			return
		}
	}
	r.segments = append(r.segments, segment{state: state, from: from, to: to})
}

func (r *record) trim(cutoff time.Time) {
	i := 0
	for i < len(r.segments) && !r.segments[i].to.After(cutoff) {
		i++
	}
	if i > 0 {
		r.segments = append(r.segments[:0], r.segments[i:]...)
	}
}
