package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/health"
	"github.com/hamed0406/homelabmon/internal/metrics"
	"github.com/hamed0406/homelabmon/internal/probe"
	"github.com/hamed0406/homelabmon/internal/store"
)

var (
	ErrUnknownTarget = errors.New("unknown target")
	ErrNotRunning    = errors.New("poller not running")
	ErrRunning       = errors.New("poller already running")
)

// HTTPResolver runs the local-first check of an http target.
type HTTPResolver interface {
	Resolve(ctx context.Context, t domain.Target) probe.Outcome
}

type TorrentFetcher interface {
	Fetch(ctx context.Context) ([]domain.TorrentItem, probe.Outcome)
}

type HostSampler interface {
	Sample() (domain.HostMetrics, error)
}

// Checkers supplies the check chain of each kind. Torrent and Host build one
// instance per target.
type Checkers struct {
	HTTP    HTTPResolver
	TCP     probe.Prober
	Torrent func(domain.Target) TorrentFetcher
	Host    func(domain.Target) (HostSampler, error)
}

type tracked struct {
	target  domain.Target
	torrent TorrentFetcher
	host    HostSampler

	// serialises applying results so samples land in completion order
	mu sync.Mutex
}

type result struct {
	outcome  probe.Outcome
	torrents []domain.TorrentItem
	host     *domain.HostMetrics
}

// Poller runs one ticker per target. Every firing checks the target in its
// own goroutine, so a slow check never delays any ticker.
type Poller struct {
	Logger     *zap.Logger
	Aggregator *health.Aggregator
	Store      *store.Store
	// Observer, when set before Run, receives every published entry in
	// per-target order.
	Observer func(store.Entry)

	checkers Checkers
	targets  []*tracked
	byID     map[domain.TargetID]*tracked
	now      func() time.Time

	mu     sync.Mutex
	runCtx context.Context
}

// ExcludedTarget reports a target NewPoller left out of scheduling.
type ExcludedTarget struct {
	TargetID domain.TargetID
	Reason   string
}

func (e *ExcludedTarget) Error() string {
	return fmt.Sprintf("target %q excluded: %s", e.TargetID, e.Reason)
}

// ExcludedTargets unpacks the error returned by NewPoller.
func ExcludedTargets(err error) []*ExcludedTarget {
	var out []*ExcludedTarget
	for _, e := range multierr.Errors(err) {
		var ex *ExcludedTarget
		if errors.As(e, &ex) {
			out = append(out, ex)
		}
	}
	return out
}

// NewPoller always returns a usable Poller. Targets that cannot be scheduled
// are left out and reported in err as *ExcludedTarget values; the rest run.
func NewPoller(
	logger *zap.Logger,
	targets []domain.Target,
	checkers Checkers,
	agg *health.Aggregator,
	st *store.Store,
) (*Poller, error) {
	p := &Poller{
		Logger:     logger,
		Aggregator: agg,
		Store:      st,
		checkers:   checkers,
		byID:       make(map[domain.TargetID]*tracked, len(targets)),
		now:        time.Now,
	}
	var errs error
	for _, t := range targets {
		tt, reason := p.track(t)
		if reason != "" {
			errs = multierr.Append(errs, &ExcludedTarget{TargetID: t.ID, Reason: reason})
			continue
		}
		p.targets = append(p.targets, tt)
		p.byID[t.ID] = tt
	}
	return p, errs
}

func (p *Poller) track(t domain.Target) (*tracked, string) {
	if _, dup := p.byID[t.ID]; dup {
		return nil, "duplicate id"
	}
	if t.Interval <= 0 {
		return nil, "interval must be positive"
	}
	tt := &tracked{target: t}
	switch t.Kind {
	case domain.KindHTTP:
		if p.checkers.HTTP == nil {
			return nil, "no http checker"
		}
	case domain.KindTCP:
		if p.checkers.TCP == nil {
			return nil, "no tcp checker"
		}
	case domain.KindTorrent:
		if p.checkers.Torrent == nil {
			return nil, "no torrent client"
		}
		tt.torrent = p.checkers.Torrent(t)
	case domain.KindMetrics:
		if p.checkers.Host == nil {
			return nil, "no host sampler"
		}
		h, err := p.checkers.Host(t)
		if err != nil {
			return nil, err.Error()
		}
		tt.host = h
	default:
		return nil, fmt.Sprintf("unsupported kind %q", t.Kind)
	}
	return tt, ""
}

// Targets returns the scheduled targets in configuration order.
func (p *Poller) Targets() []domain.Target {
	out := make([]domain.Target, 0, len(p.targets))
	for _, tt := range p.targets {
		out = append(out, tt.target)
	}
	return out
}

// Run polls every target immediately and then on its own interval, until
// ctx is cancelled. In-flight checks are abandoned on return.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.runCtx != nil {
		p.mu.Unlock()
		return ErrRunning
	}
	p.runCtx = ctx
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.runCtx = nil
		p.mu.Unlock()
	}()

	p.Logger.Info("poller_started", zap.Int("targets", len(p.targets)))

	g, gctx := errgroup.WithContext(ctx)
	for _, tt := range p.targets {
		tt := tt
		g.Go(func() error {
			p.loop(gctx, tt)
			return nil
		})
	}
	err := g.Wait()
	p.Logger.Info("poller_stopped")
	return err
}

func (p *Poller) loop(ctx context.Context, tt *tracked) {
	p.fire(ctx, tt, "start")

	t := time.NewTicker(tt.target.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.fire(ctx, tt, "tick")
		}
	}
}

// ForcePoll checks one target now without touching its ticker.
func (p *Poller) ForcePoll(id domain.TargetID) error {
	tt, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	ctx, err := p.running()
	if err != nil {
		return err
	}
	p.fire(ctx, tt, "force")
	return nil
}

// ForcePollAll checks every target now.
func (p *Poller) ForcePollAll() error {
	ctx, err := p.running()
	if err != nil {
		return err
	}
	for _, tt := range p.targets {
		p.fire(ctx, tt, "force")
	}
	return nil
}

func (p *Poller) running() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runCtx == nil || p.runCtx.Err() != nil {
		return nil, ErrNotRunning
	}
	return p.runCtx, nil
}

func (p *Poller) fire(ctx context.Context, tt *tracked, trigger string) {
	runID := uuid.NewString()
	go func() {
		res := p.check(ctx, tt)
		p.apply(ctx, tt, res, runID, trigger)
	}()
}

func (p *Poller) check(ctx context.Context, tt *tracked) result {
	t := tt.target
	switch t.Kind {
	case domain.KindHTTP:
		return result{outcome: p.checkers.HTTP.Resolve(ctx, t)}
	case domain.KindTCP:
		return result{outcome: p.checkers.TCP.Probe(ctx, probe.Request{
			Role:    probe.Local,
			Address: t.Local,
			Timeout: t.Timeout,
		})}
	case domain.KindTorrent:
		items, out := tt.torrent.Fetch(ctx)
		return result{outcome: out, torrents: items}
	case domain.KindMetrics:
		return sampleHost(tt.host, t)
	}
	return result{outcome: probe.Outcome{
		At:       time.Now(),
		Kind:     t.Kind,
		Category: probe.CategoryProtocol,
		Message:  "unsupported kind " + string(t.Kind),
	}}
}

func sampleHost(h HostSampler, t domain.Target) result {
	start := time.Now()
	m, err := h.Sample()
	out := probe.Outcome{
		At:      time.Now(),
		Kind:    domain.KindMetrics,
		Role:    probe.Local,
		Address: t.Local,
		Latency: time.Since(start),
	}
	if err != nil {
		out.Category = probe.CategoryUnreachable
		out.Message = err.Error()
		return result{outcome: out}
	}
	out.Reachable = true
	out.Message = "sampled"
	return result{outcome: out, host: &m}
}

func (p *Poller) apply(ctx context.Context, tt *tracked, res result, runID, trigger string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	id := tt.target.ID
	if ctx.Err() != nil {
		metrics.AbandonedChecks.Inc()
		p.Logger.Debug("poll_abandoned", zap.String("target_id", string(id)), zap.String("run_id", runID))
		return
	}

	at := p.now()
	state := health.Classify(res.outcome)
	sum := p.Aggregator.Record(id, state, at)

	e := store.Entry{
		ID:        id,
		Kind:      tt.target.Kind,
		State:     state,
		Summary:   sum,
		Outcome:   res.outcome,
		Torrents:  res.torrents,
		Host:      res.host,
		RunID:     runID,
		UpdatedAt: at,
	}
	p.Store.Put(e)
	if p.Observer != nil {
		p.Observer(e)
	}

	metrics.ObserveCheck(id, res.outcome, state, sum)
	if res.host != nil {
		metrics.ObserveHost(*res.host)
	}
	if tt.target.Kind == domain.KindTorrent && res.outcome.Reachable {
		metrics.ObserveTorrents(len(res.torrents))
	}

	p.Logger.Debug("poll_checked",
		zap.String("target_id", string(id)),
		zap.String("run_id", runID),
		zap.String("trigger", trigger),
		zap.String("state", state.String()),
		zap.String("role", string(res.outcome.Role)),
		zap.Int("status", res.outcome.StatusCode),
		zap.Float64("latency_ms", res.outcome.LatencyMS()),
		zap.String("category", string(res.outcome.Category)),
		zap.String("reason", res.outcome.Message),
		zap.Float64("uptime_pct", sum.UptimePct()),
	)
}
