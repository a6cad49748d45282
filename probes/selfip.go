package probes

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Google's resolver answers this TXT name with the address the query came
// from, which is how the agent learns its own public IP.
const (
	selfIPResolver   = "ns1.google.com"
	selfIPRecordName = "o-o.myaddr.l.google.com."
)

// SelfIP returns this host's public IP address as reported by the
// special-case TXT lookup against ns1.google.com.
func SelfIP(timeout time.Duration) (string, error) {
	server, err := lookupIPv4(selfIPResolver)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", selfIPResolver, err)
	}

	client := &dns.Client{
		Net:          "tcp",
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	msg := new(dns.Msg).SetQuestion(selfIPRecordName, dns.TypeTXT)

	resp, _, err := client.Exchange(msg, net.JoinHostPort(server.String(), "53"))
	if err != nil {
		if isTimeout(err) {
			return "", ErrTimeout
		}
		return "", err
	}

	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok && len(txt.Txt) > 0 {
			return txt.Txt[0], nil
		}
	}
	return "", fmt.Errorf("no TXT answer for %s", selfIPRecordName)
}
