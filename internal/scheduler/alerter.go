package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/notify"
	"github.com/hamed0406/homelabmon/internal/store"
)

// alertQueue bounds the transitions waiting for the alerter.
const alertQueue = 256

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// EntryLister is the read side of the state store.
type EntryLister interface {
	List() []store.Entry
}

// AlertStore keeps the last notified state per target.
type AlertStore interface {
	Get(id domain.TargetID) (store.AlertRecord, bool)
	Set(id domain.TargetID, state domain.HealthState, sentAt time.Time)
}

// Alerter notifies on state transitions. Transitions arrive through Observe
// as the Poller publishes them, so a flap shorter than any scan interval is
// still reported. If the queue overflows, the next tick rescans the store.
// It only reports; it never acts on a target.
type Alerter struct {
	entries  EntryLister
	alertDB  AlertStore
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      AlerterConfig
	now      func() time.Time

	events  chan store.Entry
	dropped atomic.Bool
}

func NewAlerter(
	entries EntryLister,
	alertDB AlertStore,
	notifier notify.Notifier,
	logger *zap.Logger,
	cfg AlerterConfig,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Alerter{
		entries:  entries,
		alertDB:  alertDB,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		events:   make(chan store.Entry, alertQueue),
	}
}

// Observe queues a published entry. It never blocks the caller.
func (a *Alerter) Observe(e store.Entry) {
	select {
	case a.events <- e:
	default:
		a.dropped.Store(true)
		a.logger.Warn("alert_queue_full", zap.String("target_id", string(e.ID)))
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-a.events:
			a.evaluate(ctx, e, a.now())
		case <-t.C:
			if a.dropped.Swap(false) {
				a.scanOnce(ctx)
			}
		}
	}
}

func (a *Alerter) scanOnce(ctx context.Context) {
	now := a.now()
	for _, e := range a.entries.List() {
		a.evaluate(ctx, e, now)
	}
}

func (a *Alerter) evaluate(ctx context.Context, e store.Entry, now time.Time) {
	rec, seen := a.alertDB.Get(e.ID)

	// A target first seen Up has nothing to report.
	if !seen && e.State == domain.Up {
		a.alertDB.Set(e.ID, e.State, time.Time{})
		return
	}
	if seen && rec.LastState == e.State {
		return
	}

	// Cooldown only applies to Down and Degraded alerts.
	cooled := rec.LastSentAt.IsZero() || now.Sub(rec.LastSentAt) >= a.cfg.Cooldown

	var title string
	switch e.State {
	case domain.Down:
		if cooled {
			title = "🔴 Target DOWN"
		}
	case domain.Degraded:
		if cooled {
			title = "🟠 Target DEGRADED (remote only)"
		}
	case domain.Up:
		if a.cfg.AlertOnRecovery {
			title = "🟢 Target RECOVERED"
		}
	}

	if title == "" {
		// Suppressed (cooldown or recovery alerts disabled): still record
		// the new state so the next transition is measured from it.
		a.alertDB.Set(e.ID, e.State, time.Time{})
		return
	}

	err := a.notifier.Send(ctx, notify.Alert{
		TargetID: e.ID,
		State:    e.State,
		Title:    title,
		Text:     alertText(e),
		At:       e.UpdatedAt,
	})
	if err != nil {
		a.logger.Warn("alert_send_error", zap.String("target_id", string(e.ID)), zap.Error(err))
	}
	a.alertDB.Set(e.ID, e.State, now)
}

func alertText(e store.Entry) string {
	httpTxt := "n/a"
	if e.Outcome.StatusCode != 0 {
		httpTxt = fmt.Sprintf("%d", e.Outcome.StatusCode)
	}
	reason := e.Outcome.Message
	if e.Outcome.Category != "" {
		reason = string(e.Outcome.Category) + ": " + reason
	}
	return fmt.Sprintf(
		"Target: %s\nAddress: %s\nHTTP: %s\nLatency: %.0f ms\nReason: %s\nUptime: %.1f%%\nChecked: %s",
		e.ID, e.Outcome.Address, httpTxt, e.Outcome.LatencyMS(), reason,
		e.Summary.UptimePct(), e.UpdatedAt.Format(time.RFC3339),
	)
}
