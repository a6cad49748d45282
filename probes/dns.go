package probes

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sys/unix"
)

// DNSPing measures a DNS round trip by asking host for its own A record
// over the given network ("udp" or "tcp"). Querying a host for itself is a
// deliberate shortcut for a latency proxy, not a real ping.
//
// A transport timeout fails with ErrTimeout; an actively refused
// connection fails with a DNSError.
func DNSPing(host, network string, timeout time.Duration) (time.Duration, error) {
	if network != "udp" && network != "tcp" {
		return 0, fmt.Errorf("invalid dns network %q", network)
	}

	client := &dns.Client{
		Net:          network,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	msg := new(dns.Msg).SetQuestion(dns.Fqdn(host), dns.TypeA)

	_, rtt, err := client.Exchange(msg, net.JoinHostPort(host, "53"))
	if err != nil {
		if isTimeout(err) {
			return 0, ErrTimeout
		}
		if errors.Is(err, unix.ECONNREFUSED) {
			return 0, &DNSError{Host: host, Err: err}
		}
		return 0, err
	}
	return rtt, nil
}
