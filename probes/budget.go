package probes

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// deadlineSetter is a socket whose per-operation timeout the budget
// controls.
type deadlineSetter interface {
	SetTimeout(time.Duration) error
}

// Budget limits the cumulative time spent in blocking socket operations
// performed inside Scope calls to an initial amount. A probe attempt owns
// exactly one Budget; it is not safe for concurrent use.
//
// The remaining time only ever shrinks: every Scope call deducts the wall
// time it spent, whether or not the wrapped operation succeeded. Note that
// time-in-scope is conflated with time-waiting-for-socket, so the
// accounting is close but not exact.
type Budget struct {
	left time.Duration
}

// NewBudget returns a Budget with the given initial amount of time.
func NewBudget(initial time.Duration) *Budget {
	return &Budget{left: initial}
}

// Remaining returns the unspent portion of the budget.
func (b *Budget) Remaining() time.Duration {
	return b.left
}

// Scope runs op, which must perform exactly one blocking operation on
// sock. Before op runs, sock's timeout is set to the remaining budget; if
// the budget is already spent, Scope returns ErrTimeout without touching
// the socket. On exit the elapsed time is deducted, and transport-level
// timeouts from op are translated to ErrTimeout.
//
// Putting more than one blocking operation inside op breaks the timeout
// accounting; Scope cannot detect that.
func (b *Budget) Scope(sock deadlineSetter, op func() error) error {
	if b.left <= 0 {
		return ErrTimeout
	}

	if err := sock.SetTimeout(b.left); err != nil {
		return fmt.Errorf("set socket timeout: %w", err)
	}

	start := time.Now()
	err := op()
	b.left -= time.Since(start)

	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
