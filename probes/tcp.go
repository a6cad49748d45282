package probes

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

const (
	ephemeralPortStart = 32768
	ephemeralPortEnd   = 61000

	tcpHeaderLen  = 20
	ipv4HeaderLen = 20
)

// TCPPing sends a single TCP SYN to host:port and returns the time until a
// matching SYN-ACK arrives. The handshake is never completed; this is a
// half-open probe purely for latency and reachability.
//
// A reply matches when it comes from the target, its sequence number
// equals our acknowledgment number, and its acknowledgment number equals
// our sequence number plus one. A matching reply without SYN+ACK set fails
// with a TCPError carrying the observed flags (an RST means the port is
// closed). All socket operations share one timeout budget. Requires Linux
// and a raw-socket capable process.
func TCPPing(host string, port int, timeout time.Duration) (time.Duration, error) {
	dst, err := lookupIPv4(host)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", host, err)
	}

	src, err := preferredSourceIP(dst, port)
	if err != nil {
		return 0, fmt.Errorf("pick source address for %s: %w", host, err)
	}

	conn, err := openTCP(dst, port)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return tcpExchange(conn, src, dst, port, rand.Uint32(), rand.Uint32(), NewBudget(timeout))
}

// preferredSourceIP returns the local address the kernel would route
// packets to dst from. Dialing UDP sends nothing; it only binds.
func preferredSourceIP(dst net.IP, port int) (net.IP, error) {
	c, err := net.Dial("udp4", net.JoinHostPort(dst.String(), fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).IP.To4(), nil
}

func tcpExchange(conn packetConn, src, dst net.IP, port int, seqNum, ackNum uint32, budget *Budget) (time.Duration, error) {
	srcPort := uint16(ephemeralPortStart + rand.Intn(ephemeralPortEnd-ephemeralPortStart))
	segment := buildSYNPacket(src, dst, srcPort, uint16(port), seqNum, ackNum)

	txTime := time.Now()
	if err := budget.Scope(conn, func() error { return conn.Send(segment) }); err != nil {
		return 0, err
	}

	// the server swaps seq and ack, acknowledging seq+1
	expSeq := ackNum
	expAck := seqNum + 1 // uint32 wraparound handles mod 2^32

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
		rxTime := time.Now()

		hdr, err := ipv4.ParseHeader(buf[:n])
		if err != nil || hdr.Protocol != unix.IPPROTO_TCP {
			continue
		}
		if !hdr.Src.Equal(dst) {
			continue
		}

		seg := buf[hdr.Len:n]
		if len(seg) < tcpHeaderLen {
			continue
		}
		if binary.BigEndian.Uint32(seg[4:8]) != expSeq ||
			binary.BigEndian.Uint32(seg[8:12]) != expAck {
			continue
		}

		flags := seg[13]
		if flags&(tcpFlagSYN|tcpFlagACK) == tcpFlagSYN|tcpFlagACK {
			return rxTime.Sub(txTime), nil
		}
		return 0, &TCPError{Flags: flags}
	}
}

// buildSYNPacket assembles a complete IPv4+TCP SYN packet with checksums.
// The kernel will not synthesize the IP header on an IP_HDRINCL socket.
func buildSYNPacket(src, dst net.IP, srcPort, dstPort uint16, seq, ack uint32) []byte {
	ip := make([]byte, ipv4HeaderLen)
	ip[0] = 0x45 // version=4, ihl=5
	binary.BigEndian.PutUint16(ip[2:], ipv4HeaderLen+tcpHeaderLen)
	binary.BigEndian.PutUint16(ip[4:], uint16(rand.Intn(1<<16))) // IP ID
	ip[8] = 64 // TTL
	ip[9] = unix.IPPROTO_TCP
	copy(ip[12:16], src.To4())
	copy(ip[16:20], dst.To4())
	binary.BigEndian.PutUint16(ip[10:], inetChecksum(ip))

	tcp := make([]byte, tcpHeaderLen)
	binary.BigEndian.PutUint16(tcp[0:], srcPort)
	binary.BigEndian.PutUint16(tcp[2:], dstPort)
	binary.BigEndian.PutUint32(tcp[4:], seq)
	binary.BigEndian.PutUint32(tcp[8:], ack)
	tcp[12] = 5 << 4 // data offset
	tcp[13] = tcpFlagSYN
	binary.BigEndian.PutUint16(tcp[14:], 65535) // window
	binary.BigEndian.PutUint16(tcp[16:], tcpChecksum(src, dst, tcp))

	return append(ip, tcp...)
}

// inetChecksum is the RFC 1071 ones-complement sum.
func inetChecksum(data []byte) uint16 {
	sum := uint32(0)
	for len(data) > 1 {
		sum += uint32(binary.BigEndian.Uint16(data))
		data = data[2:]
	}
	if len(data) > 0 {
		sum += uint32(data[0]) << 8
	}
	for sum>>16 > 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// tcpChecksum computes the TCP checksum over the IPv4 pseudo-header and
// the segment.
func tcpChecksum(src, dst net.IP, seg []byte) uint16 {
	psh := make([]byte, 12+len(seg))
	copy(psh[0:4], src.To4())
	copy(psh[4:8], dst.To4())
	psh[9] = unix.IPPROTO_TCP
	binary.BigEndian.PutUint16(psh[10:12], uint16(len(seg)))
	copy(psh[12:], seg)
	return inetChecksum(psh)
}
