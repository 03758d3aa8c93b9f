package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/health"
	"github.com/hamed0406/homelabmon/internal/probe"
)

// Entry is the published state of one target.
type Entry struct {
	ID        domain.TargetID      `json:"id"`
	Kind      domain.CheckKind     `json:"kind"`
	State     domain.HealthState   `json:"state"`
	Summary   health.Summary       `json:"summary"`
	Outcome   probe.Outcome        `json:"outcome"`
	Torrents  []domain.TorrentItem `json:"torrents,omitempty"`
	Host      *domain.HostMetrics  `json:"host,omitempty"`
	RunID     string               `json:"run_id,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (e Entry) clone() Entry {
	e.Torrents = slices.Clone(e.Torrents)
	if e.Host != nil {
		h := *e.Host
		e.Host = &h
	}
	return e
}

// Snapshot is a consistent view of every published entry, sorted by id.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Entries []Entry   `json:"entries"`
}

// Store holds the latest Entry per target. Put replaces an entry as a whole,
// so readers see either the previous or the next value, never a mix.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.TargetID]*Entry
}

func New() *Store {
	return &Store{entries: make(map[domain.TargetID]*Entry)}
}

func (s *Store) Put(e Entry) {
	cp := e.clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.entries[cp.ID] = &cp
	s.mu.Unlock()
}

func (s *Store) Get(id domain.TargetID) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (s *Store) List() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{TakenAt: time.Now().UTC(), Entries: s.List()}
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
