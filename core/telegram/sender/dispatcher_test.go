package sender

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	err := d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		calls.Add(1)
		return &net.OpError{Op: "dial", Err: errors.New("refused")}
	})
	d.Close()

	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("chat not found")
	})
	d.Close()

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})

	_ = d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	})
	<-started
	if err := d.Enqueue(context.Background(), "queued", "", func() error { return nil }); err != nil {
		t.Fatalf("second job: %v", err)
	}
	if err := d.Enqueue(context.Background(), "dropped", "", func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(release)
	d.Close()
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	if err := d.Enqueue(context.Background(), "x", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if err := d.Enqueue(context.Background(), "x", "", nil); err == nil {
		t.Fatal("nil job must be rejected")
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": timeout`)
	got := redact(err)
	if strings.Contains(got, "123456") || !strings.Contains(got, "bot<redacted>/sendMessage") {
		t.Fatalf("redact = %q", got)
	}
}
