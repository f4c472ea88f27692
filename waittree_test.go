package taskgraph

import (
	"errors"
	"testing"
	"time"
)

func TestCountingWaitTreeReserveRelease(t *testing.T) {
	w := NewCountingWaitTree()
	w.Reserve()
	w.Reserve()

	select {
	case <-w.Done():
		t.Fatal("should not be done with reservations outstanding")
	case <-time.After(10 * time.Millisecond):
	}

	w.Release()
	select {
	case <-w.Done():
		t.Fatal("should not be done with one reservation still outstanding")
	case <-time.After(10 * time.Millisecond):
	}

	w.Release()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("should be done once every reservation is released")
	}
}

func TestCountingWaitTreeFailRetainsFirstError(t *testing.T) {
	w := NewCountingWaitTree()
	w.Reserve()
	w.Reserve()

	errFirst := errors.New("first")
	errSecond := errors.New("second")
	w.Fail(errFirst)
	w.Fail(errSecond)

	<-w.Done()
	if got := w.Err(); got != errFirst {
		t.Fatalf("expected the first recorded error, got %v", got)
	}
}
