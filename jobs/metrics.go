// Package jobs runs the configured measurement jobs on their periodic
// cycles and records the results as prometheus metrics.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	probeLabels   = []string{"type", "destination"}
	channelLabels = []string{"host", "frequency_megahertz"}
)

// Metrics bundles every metric the jobs update. It registers against an
// explicit Registerer rather than the package-global default so jobs stay
// independently testable.
type Metrics struct {
	ProbeDuration *prometheus.HistogramVec
	ProbeFailures *prometheus.CounterVec
	ProbeTotal    *prometheus.CounterVec

	// The codeword totals are counters at heart, but the modem only ever
	// reports instantaneous totals and those reset on reboot, so they are
	// modeled as gauges we can set.
	ChannelPower         *prometheus.GaugeVec
	ChannelSNR           *prometheus.GaugeVec
	ChannelCorrected     *prometheus.GaugeVec
	ChannelUncorrectable *prometheus.GaugeVec

	SelfIPInfo *prometheus.GaugeVec
}

// NewMetrics builds and registers the full metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "probe_duration_seconds",
			Help: "Histogram measuring latency with a probe",
		}, probeLabels),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_failure_total",
			Help: "Counter for probe failures (timeout, network error, etc)",
		}, probeLabels),
		ProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_total",
			Help: "Counter for total probes",
		}, probeLabels),
		ChannelPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_dbmv",
			Help: "Power in decibels per millivolt",
		}, channelLabels),
		ChannelSNR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "snr_db",
			Help: "Signal to noise ratio in decibels",
		}, channelLabels),
		ChannelCorrected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corrected_codewords_total",
			Help: "Number of corrected codewords",
		}, channelLabels),
		ChannelUncorrectable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uncorrectable_codewords_total",
			Help: "Number of uncorrectable codewords",
		}, channelLabels),
		SelfIPInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ip_info",
			Help: "Records the current own IP address",
		}, []string{"ip"}),
	}

	reg.MustRegister(
		m.ProbeDuration, m.ProbeFailures, m.ProbeTotal,
		m.ChannelPower, m.ChannelSNR, m.ChannelCorrected, m.ChannelUncorrectable,
		m.SelfIPInfo,
	)
	return m
}
