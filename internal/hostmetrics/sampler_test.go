package hostmetrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type seqSource struct {
	reads []Counters
	i     int
	err   error
}

func (s *seqSource) Read() (Counters, error) {
	if s.err != nil {
		return Counters{}, s.err
	}
	c := s.reads[s.i]
	if s.i < len(s.reads)-1 {
		s.i++
	}
	return c, nil
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func newTestSampler(src Source, step time.Duration) *Sampler {
	s := NewSampler(src)
	clk := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
	s.now = clk.now
	return s
}

func TestSampler_FirstSampleHasNoRates(t *testing.T) {
	src := &seqSource{reads: []Counters{{CPUBusy: 50, CPUTotal: 100, MemTotal: 1000, MemAvailable: 250, RxBytes: 1 << 20, TxBytes: 1 << 20}}}
	m, err := newTestSampler(src, time.Second).Sample()
	if err != nil {
		t.Fatal(err)
	}
	if m.CPUPercent != 0 || m.NetRxRate != 0 || m.NetTxRate != 0 {
		t.Fatalf("first sample must report zero cpu and rates: %+v", m)
	}
	if m.MemPercent != 75 {
		t.Fatalf("mem = %v", m.MemPercent)
	}
}

func TestSampler_DeltaRates(t *testing.T) {
	src := &seqSource{reads: []Counters{
		{CPUBusy: 10, CPUTotal: 100, MemTotal: 1000, MemAvailable: 500, RxBytes: 1000, TxBytes: 500},
		{CPUBusy: 35, CPUTotal: 200, MemTotal: 1000, MemAvailable: 500, RxBytes: 5000, TxBytes: 2500},
	}}
	s := newTestSampler(src, 2*time.Second)
	if _, err := s.Sample(); err != nil {
		t.Fatal(err)
	}
	m, err := s.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if m.CPUPercent != 25 {
		t.Fatalf("cpu = %v", m.CPUPercent)
	}
	if m.NetRxRate != 2000 || m.NetTxRate != 1000 {
		t.Fatalf("rates = rx %v tx %v", m.NetRxRate, m.NetTxRate)
	}
}

func TestSampler_CounterResetYieldsZero(t *testing.T) {
	src := &seqSource{reads: []Counters{
		{CPUTotal: 100, MemTotal: 1, RxBytes: 9000, TxBytes: 9000},
		{CPUTotal: 200, MemTotal: 1, RxBytes: 10, TxBytes: 20},
	}}
	s := newTestSampler(src, time.Second)
	_, _ = s.Sample()
	m, _ := s.Sample()
	if m.NetRxRate != 0 || m.NetTxRate != 0 {
		t.Fatalf("expected zero rates after reset, got %+v", m)
	}
}

func TestSampler_ReadError(t *testing.T) {
	s := newTestSampler(&seqSource{err: errors.New("boom")}, time.Second)
	if _, err := s.Sample(); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcSource_ReadsFixture(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("stat", "cpu  100 0 100 700 100 0 0 0 0 0\n"+
		"cpu0 100 0 100 700 100 0 0 0 0 0\n"+
		"intr 0\nctxt 0\nbtime 0\nprocesses 0\nprocs_running 1\nprocs_blocked 0\nsoftirq 0 0 0 0 0 0 0 0 0 0 0\n")
	write("meminfo", "MemTotal:        1000 kB\nMemFree:          100 kB\nMemAvailable:     400 kB\n")
	write("net/dev", "Inter-|   Receive                                                |  Transmit\n"+
		" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"+
		"    lo:    5000      10    0    0    0     0          0         0     5000      10    0    0    0     0       0          0\n"+
		"  eth0:    1200      10    0    0    0     0          0         0      800      10    0    0    0     0       0          0\n")

	src, err := NewProcSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	c, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if c.MemTotal != 1000 || c.MemAvailable != 400 {
		t.Fatalf("mem = %+v", c)
	}
	if c.RxBytes != 1200 || c.TxBytes != 800 {
		t.Fatalf("loopback must be excluded: %+v", c)
	}
	if c.CPUTotal <= 0 || c.CPUBusy <= 0 || c.CPUBusy >= c.CPUTotal {
		t.Fatalf("cpu = %+v", c)
	}
}
