package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/homelabmon/internal/domain"
)

type countNotifier struct {
	n   int
	err error
}

func (c *countNotifier) Send(ctx context.Context, a Alert) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &countNotifier{err: errors.New("a failed")}
	b := &countNotifier{}
	c := &countNotifier{err: errors.New("c failed")}

	err := Multi{a, nil, b, c, Log{Logger: zap.NewNop()}}.Send(context.Background(), Alert{TargetID: "plex", State: domain.Down, Title: "t", Text: "x"})
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("expected every notifier to be called: %d %d %d", a.n, b.n, c.n)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d (%v)", got, err)
	}
}

func TestMulti_NoErrors(t *testing.T) {
	if err := (Multi{&countNotifier{}}).Send(context.Background(), Alert{TargetID: "plex", State: domain.Down, Title: "t", Text: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
