package probes

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// fakeSock records the timeouts the budget sets on it.
type fakeSock struct {
	timeouts []time.Duration
}

func (s *fakeSock) SetTimeout(d time.Duration) error {
	s.timeouts = append(s.timeouts, d)
	return nil
}

func TestBudget_DeductsElapsedTime(t *testing.T) {
	t.Parallel()

	initial := 500 * time.Millisecond
	b := NewBudget(initial)
	sock := &fakeSock{}

	spent := 50 * time.Millisecond
	if err := b.Scope(sock, func() error {
		time.Sleep(spent)
		return nil
	}); err != nil {
		t.Fatalf("Scope: %v", err)
	}

	if got := b.Remaining(); got > initial-spent {
		t.Fatalf("remaining %v, want <= %v", got, initial-spent)
	}
	if len(sock.timeouts) != 1 || sock.timeouts[0] != initial {
		t.Fatalf("socket timeouts %v, want [%v]", sock.timeouts, initial)
	}
}

func TestBudget_DeductsOnFailureToo(t *testing.T) {
	t.Parallel()

	b := NewBudget(time.Second)
	sock := &fakeSock{}
	opErr := errors.New("boom")

	err := b.Scope(sock, func() error {
		time.Sleep(20 * time.Millisecond)
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("err=%v, want %v", err, opErr)
	}
	if b.Remaining() >= time.Second {
		t.Fatalf("remaining %v did not shrink", b.Remaining())
	}
}

func TestBudget_SecondScopeSeesReducedTimeout(t *testing.T) {
	t.Parallel()

	b := NewBudget(time.Second)
	sock := &fakeSock{}

	for i := 0; i < 2; i++ {
		if err := b.Scope(sock, func() error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}); err != nil {
			t.Fatalf("Scope %d: %v", i, err)
		}
	}

	if len(sock.timeouts) != 2 {
		t.Fatalf("timeouts %v, want 2 entries", sock.timeouts)
	}
	if sock.timeouts[1] >= sock.timeouts[0] {
		t.Fatalf("second timeout %v not smaller than first %v", sock.timeouts[1], sock.timeouts[0])
	}
}

func TestBudget_ExhaustedFailsBeforeTouchingSocket(t *testing.T) {
	t.Parallel()

	b := NewBudget(time.Millisecond)
	sock := &fakeSock{}

	// burn the whole budget
	if err := b.Scope(sock, func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("Scope: %v", err)
	}

	called := false
	err := b.Scope(sock, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v, want ErrTimeout", err)
	}
	if called {
		t.Fatal("op ran after budget was exhausted")
	}
	if len(sock.timeouts) != 1 {
		t.Fatalf("socket touched after exhaustion: %v", sock.timeouts)
	}
}

func TestBudget_TranslatesTransportTimeout(t *testing.T) {
	t.Parallel()

	b := NewBudget(time.Second)
	sock := &fakeSock{}

	err := b.Scope(sock, func() error { return unix.EAGAIN })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v, want ErrTimeout", err)
	}
}
