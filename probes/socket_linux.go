//go:build linux

package probes

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// packetConn is one raw socket bound to a destination. Both directions
// carry whole IP packets: receives include the IP header, and for TCP the
// kernel is told not to synthesize one on send either.
type packetConn interface {
	deadlineSetter
	Send(b []byte) error
	Recv(b []byte) (int, error)
	Close() error
}

// rawConn implements packetConn over an AF_INET SOCK_RAW file descriptor.
// Opening one requires CAP_NET_RAW (typically root).
type rawConn struct {
	fd   int
	dest unix.SockaddrInet4
}

func openRaw(proto int, dst net.IP, port int) (*rawConn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, fmt.Errorf("open raw socket (proto %d): %w", proto, err)
	}

	sa := unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], dst.To4())

	return &rawConn{fd: fd, dest: sa}, nil
}

// openICMP opens a raw ICMP socket toward dst. The port is zero: ICMP is
// portless, the sockaddr just requires one.
func openICMP(dst net.IP) (*rawConn, error) {
	return openRaw(unix.IPPROTO_ICMP, dst, 0)
}

// openTCP opens a raw TCP socket toward dst:port with IP_HDRINCL set, so
// the caller supplies the IP header. Without IP_HDRINCL no replies show up
// on the socket.
func openTCP(dst net.IP, port int) (*rawConn, error) {
	c, err := openRaw(unix.IPPROTO_TCP, dst, port)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		c.Close()
		return nil, fmt.Errorf("set IP_HDRINCL: %w", err)
	}
	return c, nil
}

func (c *rawConn) SetTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return err
	}
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
}

func (c *rawConn) Send(b []byte) error {
	return unix.Sendto(c.fd, b, 0, &c.dest)
}

func (c *rawConn) Recv(b []byte) (int, error) {
	n, _, err := unix.Recvfrom(c.fd, b, 0)
	return n, err
}

func (c *rawConn) Close() error {
	return unix.Close(c.fd)
}
