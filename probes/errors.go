package probes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is returned when a probe's timeout budget runs out, either
// before a socket operation starts or while one is blocked.
var ErrTimeout = errors.New("probe operation timed out")

// ICMPError reports an ICMP reply that matched the request's id/sequence
// but was not an echo reply, e.g. destination unreachable or TTL exceeded.
type ICMPError struct {
	Type int
	Code int
}

func (e *ICMPError) Error() string {
	return fmt.Sprintf("got ICMP reply with type=%d code=%d", e.Type, e.Code)
}

// TCPError reports a matching TCP reply whose flags were not SYN+ACK,
// e.g. an RST from a closed port.
type TCPError struct {
	Flags uint8
}

func (e *TCPError) Error() string {
	return fmt.Sprintf("host did not respond with SYN+ACK (actual flags: %s)", flagNames(e.Flags))
}

// DNSError reports a DNS probe failure other than a timeout, such as the
// target actively refusing the connection.
type DNSError struct {
	Host string
	Err  error
}

func (e *DNSError) Error() string {
	return fmt.Sprintf("dns ping to %s failed: %v", e.Host, e.Err)
}

func (e *DNSError) Unwrap() error { return e.Err }

// IsProbeError reports whether err is one of the expected probe failure
// kinds. Anything else is unexpected and should not be counted as a
// routine probe failure.
func IsProbeError(err error) bool {
	var (
		icmpErr *ICMPError
		tcpErr  *TCPError
		dnsErr  *DNSError
	)
	return errors.Is(err, ErrTimeout) ||
		errors.As(err, &icmpErr) ||
		errors.As(err, &tcpErr) ||
		errors.As(err, &dnsErr)
}

const (
	tcpFlagFIN = 0x01
	tcpFlagSYN = 0x02
	tcpFlagRST = 0x04
	tcpFlagPSH = 0x08
	tcpFlagACK = 0x10
	tcpFlagURG = 0x20
)

func flagNames(flags uint8) string {
	known := []struct {
		bit  uint8
		name string
	}{
		{tcpFlagFIN, "FIN"},
		{tcpFlagSYN, "SYN"},
		{tcpFlagRST, "RST"},
		{tcpFlagPSH, "PSH"},
		{tcpFlagACK, "ACK"},
		{tcpFlagURG, "URG"},
	}

	var names []string
	for _, f := range known {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
