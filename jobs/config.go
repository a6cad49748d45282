package jobs

import (
	"github.com/wirepulse/wirepulse-agent/config"
	"github.com/wirepulse/wirepulse-agent/modem"
)

// FromConfig turns a validated configuration into the job set the
// scheduler will run. Each ping entry fans out into one job per requested
// probe type; the modem job owns its session client for the process
// lifetime.
func FromConfig(cfg config.Config, m *Metrics) []Job {
	var jobList []Job

	for _, ping := range cfg.Pings {
		for _, t := range ping.Types {
			switch t {
			case "icmp":
				jobList = append(jobList, NewICMPPingJob(m, ping.Host, ping.Name, ping.Interval))
			case "tcp":
				jobList = append(jobList, NewTCPPingJob(m, ping.Host, ping.Port, ping.Name, ping.Interval))
			case "dns-udp":
				jobList = append(jobList, NewDNSPingJob(m, ping.Host, "udp", ping.Name, ping.Interval))
			case "dns-tcp":
				jobList = append(jobList, NewDNSPingJob(m, ping.Host, "tcp", ping.Name, ping.Interval))
			}
		}
	}

	if cfg.Modem != nil {
		client := modem.NewClient(cfg.Modem.Host, cfg.Modem.Password)
		jobList = append(jobList, NewModemScrapeJob(m, client, cfg.Modem.Interval))
	}

	if cfg.IP {
		jobList = append(jobList, NewSelfIPJob(m, config.DefaultSelfIPInterval))
	}

	return jobList
}
