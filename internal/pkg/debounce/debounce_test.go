package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTrigger_RunsOnceAfterQuiet(t *testing.T) {
	d := New(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Value

	for _, q := range []string{"I", "Ib", "Ibb"} {
		q := q
		d.Trigger(func() {
			calls.Add(1)
			last.Store(q)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
	if got := last.Load(); got != "Ibb" {
		t.Errorf("expected last input to win, got %v", got)
	}
	if d.Pending() {
		t.Error("nothing should be pending after the call ran")
	}
}

func TestCancel_DropsPendingCall(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	if !d.Cancel() {
		t.Fatal("expected a pending call to be cancelled")
	}
	if d.Cancel() {
		t.Error("second cancel should report nothing pending")
	}

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("cancelled call ran %d times", got)
	}
}

func TestStop_DisablesTrigger(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no calls after Stop, got %d", got)
	}
	if d.Pending() {
		t.Error("stopped debouncer must not report pending work")
	}
}
