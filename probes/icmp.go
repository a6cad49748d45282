package probes

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultTimeout is the total budget a probe attempt gets across all of
// its socket operations.
const DefaultTimeout = 5 * time.Second

// IANA protocol number for ICMPv4.
const protoICMP = 1

// Timestamps embedded in echo payloads are relative to process start so
// they stay on the monotonic clock.
var monoStart = time.Now()

func nowSeconds() float64 {
	return time.Since(monoStart).Seconds()
}

func lookupIPv4(host string) (net.IP, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

// ICMPPing sends a single ICMP echo request to host and returns the round
// trip time, measured from the timestamp embedded in the request payload
// to the moment the matching reply arrived.
//
// The receive loop skips traffic that is not for us: a raw ICMP socket
// sees every ICMP packet on the host, so replies are matched on the
// request's identifier and sequence number. A matching reply that is not
// an echo reply (destination unreachable, TTL exceeded, ...) fails with an
// ICMPError. The reply's source address is deliberately not checked,
// because intermediate routers legitimately answer on the target's behalf.
//
// All socket operations share one timeout budget; when it runs out the
// probe fails with ErrTimeout. Requires Linux and a raw-socket capable
// process.
func ICMPPing(host string, timeout time.Duration) (time.Duration, error) {
	dst, err := lookupIPv4(host)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", host, err)
	}

	conn, err := openICMP(dst)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	id := uint16(rand.Intn(1 << 16))
	seq := uint16(rand.Intn(1 << 16))

	return icmpExchange(conn, id, seq, NewBudget(timeout))
}

func icmpExchange(conn packetConn, id, seq uint16, budget *Budget) (time.Duration, error) {
	// The payload is the send timestamp as a big-endian float64; the host
	// echoes it back, so the reply carries its own start time.
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, math.Float64bits(nowSeconds()))

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: int(id), Seq: int(seq), Data: payload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo request: %w", err)
	}

	if err := budget.Scope(conn, func() error { return conn.Send(wb) }); err != nil {
		return 0, err
	}

	buf := make([]byte, 2048)
	for {
		var n int
		err := budget.Scope(conn, func() error {
			var rerr error
			n, rerr = conn.Recv(buf)
			return rerr
		})
		if err != nil {
			return 0, err
		}
		recvAt := nowSeconds()

		hdr, err := ipv4.ParseHeader(buf[:n])
		if err != nil || hdr.Protocol != protoICMP {
			// shared raw socket, not even our protocol
			continue
		}

		m, err := icmp.ParseMessage(protoICMP, buf[hdr.Len:n])
		if err != nil {
			continue
		}
		typ, ok := m.Type.(ipv4.ICMPType)
		if !ok {
			continue
		}

		switch body := m.Body.(type) {
		case *icmp.Echo:
			if body.ID != int(id) || body.Seq != int(seq) {
				// very possibly someone else's ping reply
				continue
			}
			if typ == ipv4.ICMPTypeEchoReply && m.Code == 0 {
				if len(body.Data) < 8 {
					continue
				}
				sentAt := math.Float64frombits(binary.BigEndian.Uint64(body.Data))
				return time.Duration((recvAt - sentAt) * float64(time.Second)), nil
			}
			return 0, &ICMPError{Type: int(typ), Code: m.Code}
		case *icmp.DstUnreach:
			if invokedEchoMatches(body.Data, id, seq) {
				return 0, &ICMPError{Type: int(typ), Code: m.Code}
			}
		case *icmp.TimeExceeded:
			if invokedEchoMatches(body.Data, id, seq) {
				return 0, &ICMPError{Type: int(typ), Code: m.Code}
			}
		}
	}
}

// invokedEchoMatches digs into an ICMP error body, which carries the IP
// header plus the first 8 bytes of the invoking datagram, and reports
// whether that datagram was our echo request.
func invokedEchoMatches(data []byte, id, seq uint16) bool {
	hdr, err := ipv4.ParseHeader(data)
	if err != nil || hdr.Protocol != protoICMP {
		return false
	}
	if len(data) < hdr.Len+8 {
		return false
	}
	inner := data[hdr.Len:]
	if inner[0] != 8 { // must be an echo request
		return false
	}
	return binary.BigEndian.Uint16(inner[4:6]) == id &&
		binary.BigEndian.Uint16(inner[6:8]) == seq
}
