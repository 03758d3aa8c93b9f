// Package hostmetrics samples CPU, memory and network usage of the machine
// the monitor runs on.
package hostmetrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/hamed0406/homelabmon/internal/domain"
)

// Counters is one raw reading. CPU values are cumulative seconds, network
// values cumulative bytes, memory values kB.
type Counters struct {
	CPUBusy      float64
	CPUTotal     float64
	MemTotal     uint64
	MemAvailable uint64
	RxBytes      uint64
	TxBytes      uint64
}

// Source reads the current counters.
type Source interface {
	Read() (Counters, error)
}

// ProcSource reads counters from a procfs mount.
type ProcSource struct {
	fs procfs.FS
}

func NewProcSource(mountPoint string) (*ProcSource, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mountPoint, err)
	}
	return &ProcSource{fs: fs}, nil
}

func (p *ProcSource) Read() (Counters, error) {
	var c Counters

	st, err := p.fs.Stat()
	if err != nil {
		return c, fmt.Errorf("read stat: %w", err)
	}
	cpu := st.CPUTotal
	idle := cpu.Idle + cpu.Iowait
	c.CPUTotal = cpu.User + cpu.Nice + cpu.System + cpu.Idle + cpu.Iowait + cpu.IRQ + cpu.SoftIRQ + cpu.Steal
	c.CPUBusy = c.CPUTotal - idle

	mi, err := p.fs.Meminfo()
	if err != nil {
		return c, fmt.Errorf("read meminfo: %w", err)
	}
	c.MemTotal = deref(mi.MemTotal)
	if mi.MemAvailable != nil {
		c.MemAvailable = *mi.MemAvailable
	} else {
		// kernels before 3.14
		c.MemAvailable = deref(mi.MemFree) + deref(mi.Buffers) + deref(mi.Cached)
	}

	nd, err := p.fs.NetDev()
	if err != nil {
		return c, fmt.Errorf("read net/dev: %w", err)
	}
	for name, line := range nd {
		if name == "lo" {
			continue
		}
		c.RxBytes += line.RxBytes
		c.TxBytes += line.TxBytes
	}
	return c, nil
}

func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

// Sampler turns successive counter readings into percentages and rates.
// The first sample has no baseline and reports zero CPU and zero rates.
type Sampler struct {
	src Source
	now func() time.Time

	mu     sync.Mutex
	prev   *Counters
	prevAt time.Time
}

func NewSampler(src Source) *Sampler {
	return &Sampler{src: src, now: time.Now}
}

func (s *Sampler) Sample() (domain.HostMetrics, error) {
	cur, err := s.src.Read()
	if err != nil {
		return domain.HostMetrics{}, err
	}
	at := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	m := domain.HostMetrics{SampledAt: at.UTC()}
	if cur.MemTotal > 0 && cur.MemAvailable <= cur.MemTotal {
		m.MemPercent = float64(cur.MemTotal-cur.MemAvailable) / float64(cur.MemTotal) * 100
	}

	if s.prev != nil {
		if dt := cur.CPUTotal - s.prev.CPUTotal; dt > 0 {
			if db := cur.CPUBusy - s.prev.CPUBusy; db > 0 {
				m.CPUPercent = clampPct(db / dt * 100)
			}
		}
		if elapsed := at.Sub(s.prevAt).Seconds(); elapsed > 0 {
			m.NetRxRate = rate(s.prev.RxBytes, cur.RxBytes, elapsed)
			m.NetTxRate = rate(s.prev.TxBytes, cur.TxBytes, elapsed)
		}
	}

	s.prev = &cur
	s.prevAt = at
	return m, nil
}

// rate is zero when the counter went backwards (interface reset or wrap).
func rate(prev, cur uint64, seconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / seconds
}

func clampPct(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
