// Package metrics exports poll results in the Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/health"
	"github.com/hamed0406/homelabmon/internal/probe"
)

var (
	// ChecksTotal counts completed checks by target and resulting state.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homelabmon_checks_total",
			Help: "Total number of completed checks",
		},
		[]string{"target", "kind", "state"},
	)

	// ProbeFailures counts failed checks by error category.
	ProbeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homelabmon_probe_failures_total",
			Help: "Total number of failed checks by error category",
		},
		[]string{"target", "category"},
	)

	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "homelabmon_check_duration_seconds",
			Help:    "Check latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"target", "kind"},
	)

	// TargetState is 2 for up, 1 for degraded and 0 for down.
	TargetState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homelabmon_target_state",
			Help: "Current health state of a target (2=up, 1=degraded, 0=down)",
		},
		[]string{"target"},
	)

	UptimeRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homelabmon_uptime_ratio",
			Help: "Fraction of observed time a target was up",
		},
		[]string{"target"},
	)

	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homelabmon_consecutive_failures",
			Help: "Consecutive Down samples of a target",
		},
		[]string{"target"},
	)

	ActiveTorrents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "homelabmon_active_torrents",
			Help: "Number of transfers reported by the torrent client",
		},
	)

	HostCPU = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "homelabmon_host_cpu_percent",
			Help: "Host CPU utilisation in percent",
		},
	)

	HostMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "homelabmon_host_memory_percent",
			Help: "Host memory utilisation in percent",
		},
	)

	HostNetwork = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homelabmon_host_network_bytes_per_second",
			Help: "Host network throughput excluding loopback",
		},
		[]string{"direction"},
	)

	// AbandonedChecks counts results discarded because the poller was stopping.
	AbandonedChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homelabmon_abandoned_checks_total",
			Help: "Total number of check results discarded on shutdown",
		},
	)
)

// ObserveCheck records one applied check result.
func ObserveCheck(id domain.TargetID, out probe.Outcome, state domain.HealthState, sum health.Summary) {
	target := string(id)
	ChecksTotal.WithLabelValues(target, string(out.Kind), state.String()).Inc()
	CheckDuration.WithLabelValues(target, string(out.Kind)).Observe(out.Latency.Seconds())
	if !out.Reachable {
		cat := string(out.Category)
		if cat == "" {
			cat = string(probe.CategoryUnreachable)
		}
		ProbeFailures.WithLabelValues(target, cat).Inc()
	}
	TargetState.WithLabelValues(target).Set(float64(state))
	UptimeRatio.WithLabelValues(target).Set(sum.UptimePct() / 100)
	ConsecutiveFailures.WithLabelValues(target).Set(float64(sum.ConsecutiveFailures))
}

func ObserveTorrents(n int) {
	ActiveTorrents.Set(float64(n))
}

func ObserveHost(m domain.HostMetrics) {
	HostCPU.Set(m.CPUPercent)
	HostMemory.Set(m.MemPercent)
	HostNetwork.WithLabelValues("rx").Set(m.NetRxRate)
	HostNetwork.WithLabelValues("tx").Set(m.NetTxRate)
}
