package store

import (
	"sync"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// AlertRecord holds the last state a notification was decided on and when
// the last notification was actually sent (zero if never).
type AlertRecord struct {
	TargetID   domain.TargetID
	LastState  domain.HealthState
	LastSentAt time.Time
}

// Alerts is the in-memory alert bookkeeping used for cooldowns.
type Alerts struct {
	mu   sync.Mutex
	recs map[domain.TargetID]AlertRecord
}

func NewAlerts() *Alerts {
	return &Alerts{recs: make(map[domain.TargetID]AlertRecord)}
}

// Get returns false if the target has no record yet.
func (a *Alerts) Get(id domain.TargetID) (AlertRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.recs[id]
	return r, ok
}

// Set upserts the record. A zero sentAt keeps the previous send time so the
// cooldown still runs from the last real notification.
func (a *Alerts) Set(id domain.TargetID, state domain.HealthState, sentAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.recs[id]
	r.TargetID = id
	r.LastState = state
	if !sentAt.IsZero() {
		r.LastSentAt = sentAt
	}
	a.recs[id] = r
}
