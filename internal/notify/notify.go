package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// Alert is one state transition worth telling someone about.
type Alert struct {
	TargetID domain.TargetID
	State    domain.HealthState
	Title    string
	Text     string
	At       time.Time
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans a notification out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, a))
	}
	return err
}

// Log writes notifications to the structured log.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, a Alert) error {
	l.Logger.Info("alert_sent",
		zap.String("target_id", string(a.TargetID)),
		zap.String("state", a.State.String()),
		zap.String("title", a.Title),
		zap.String("text", a.Text),
	)
	return nil
}
