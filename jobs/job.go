package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/wirepulse/wirepulse-agent/modem"
	"github.com/wirepulse/wirepulse-agent/probes"
)

const (
	// DefaultPingPeriod is how often ping and modem jobs fire.
	DefaultPingPeriod = 15 * time.Second
	// DefaultSelfIPPeriod is how often the self-IP job fires.
	DefaultSelfIPPeriod = 60 * time.Second
)

// Job is one periodically-scheduled unit of measurement work bound to a
// target and a metric label set. Measure takes one measurement and records
// it; it returns an error only for unexpected failures — expected probe
// failures are converted to metric updates inside.
type Job interface {
	Name() string
	Period() time.Duration
	Measure(ctx context.Context) error
}

// PingJob wraps a single probe call (ICMP, TCP SYN, or DNS round trip)
// and records its outcome under the {type, destination} label set.
type PingJob struct {
	name   string
	period time.Duration
	labels prometheus.Labels
	probe  func() (time.Duration, error)

	metrics *Metrics
}

// NewICMPPingJob builds a ping job probing host with a raw ICMP echo.
func NewICMPPingJob(m *Metrics, host, name string, period time.Duration) *PingJob {
	return &PingJob{
		name:   "icmp-ping " + host,
		period: period,
		labels: prometheus.Labels{
			"type":        "icmp-ping",
			"destination": host + "-" + name,
		},
		probe: func() (time.Duration, error) {
			return probes.ICMPPing(host, probes.DefaultTimeout)
		},
		metrics: m,
	}
}

// NewTCPPingJob builds a ping job probing host:port with a half-open TCP
// SYN.
func NewTCPPingJob(m *Metrics, host string, port int, name string, period time.Duration) *PingJob {
	return &PingJob{
		name:   fmt.Sprintf("tcp-ping %s:%d", host, port),
		period: period,
		labels: prometheus.Labels{
			"type":        "tcp-ping",
			"destination": fmt.Sprintf("%s:%d-%s", host, port, name),
		},
		probe: func() (time.Duration, error) {
			return probes.TCPPing(host, port, probes.DefaultTimeout)
		},
		metrics: m,
	}
}

// NewDNSPingJob builds a ping job measuring a DNS round trip to host over
// network ("udp" or "tcp").
func NewDNSPingJob(m *Metrics, host, network, name string, period time.Duration) *PingJob {
	return &PingJob{
		name:   fmt.Sprintf("%s-dns-ping %s", network, host),
		period: period,
		labels: prometheus.Labels{
			"type":        network + "-dns-ping",
			"destination": host + "-" + name,
		},
		probe: func() (time.Duration, error) {
			return probes.DNSPing(host, network, probes.DefaultTimeout)
		},
		metrics: m,
	}
}

func (j *PingJob) Name() string          { return j.name }
func (j *PingJob) Period() time.Duration { return j.period }

// Measure runs the probe once. Success observes the duration histogram,
// an expected probe failure increments the failure counter, and the
// attempt counter increments no matter what.
func (j *PingJob) Measure(ctx context.Context) error {
	defer j.metrics.ProbeTotal.With(j.labels).Inc()

	duration, err := j.probe()
	switch {
	case err == nil:
		j.metrics.ProbeDuration.With(j.labels).Observe(duration.Seconds())
		log.Infof("%s: duration=%v", j.name, duration)
	case probes.IsProbeError(err):
		j.metrics.ProbeFailures.With(j.labels).Inc()
		log.Warnf("%s: failure counted because %v", j.name, err)
	default:
		return err
	}
	return nil
}

// ModemScrapeJob owns one modem session and publishes per-channel gauges
// under the {host, frequency_megahertz} label set.
type ModemScrapeJob struct {
	period  time.Duration
	client  *modem.Client
	metrics *Metrics
}

// NewModemScrapeJob builds a scrape job around client. The job owns the
// client exclusively; the scheduler never runs two measurements of the
// same job concurrently.
func NewModemScrapeJob(m *Metrics, client *modem.Client, period time.Duration) *ModemScrapeJob {
	return &ModemScrapeJob{period: period, client: client, metrics: m}
}

func (j *ModemScrapeJob) Name() string          { return "modem-scrape " + j.client.Host }
func (j *ModemScrapeJob) Period() time.Duration { return j.period }

func (j *ModemScrapeJob) Measure(ctx context.Context) error {
	downstream, _, err := j.client.GetChannelInfo(ctx)
	if err != nil {
		return err
	}

	for _, ch := range downstream {
		labels := prometheus.Labels{
			"host": j.client.Host,
			// Hz is unreadable in a label, report MHz
			"frequency_megahertz": strconv.FormatInt(ch.FrequencyHz/1_000_000, 10),
		}

		j.metrics.ChannelPower.With(labels).Set(ch.PowerDBmV)
		j.metrics.ChannelSNR.With(labels).Set(ch.SNRdB)
		j.metrics.ChannelCorrected.With(labels).Set(float64(ch.CorrectedCodewordsTotal))
		j.metrics.ChannelUncorrectable.With(labels).Set(float64(ch.UncorrectableCodewordsTotal))

		log.Debugf("%s: channel %d MHz power=%.1f snr=%.1f corrected=%d uncorrectable=%d",
			j.Name(), ch.FrequencyHz/1_000_000, ch.PowerDBmV, ch.SNRdB,
			ch.CorrectedCodewordsTotal, ch.UncorrectableCodewordsTotal)
	}
	return nil
}

// SelfIPJob periodically looks up the agent's own public IP and records it
// as an ip_info gauge.
type SelfIPJob struct {
	period  time.Duration
	metrics *Metrics
}

func NewSelfIPJob(m *Metrics, period time.Duration) *SelfIPJob {
	return &SelfIPJob{period: period, metrics: m}
}

func (j *SelfIPJob) Name() string          { return "self-ip" }
func (j *SelfIPJob) Period() time.Duration { return j.period }

func (j *SelfIPJob) Measure(ctx context.Context) error {
	ip, err := probes.SelfIP(probes.DefaultTimeout)
	if err != nil {
		return err
	}

	// drop the stale label set when the IP changes
	j.metrics.SelfIPInfo.Reset()
	j.metrics.SelfIPInfo.With(prometheus.Labels{"ip": ip}).Set(1)
	log.Infof("self-ip: %s", ip)
	return nil
}
