package tracker

import (
	"testing"
	"time"
)

func TestNotifyBumpsVersionAndWakesWaiters(t *testing.T) {
	tr := New()
	if tr.Version("comics") != 0 {
		t.Fatalf("initial version = %d", tr.Version("comics"))
	}

	changed := tr.Changed("comics")
	other := tr.Changed("remote_keys")

	tr.Notify("comics", "comics")

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatalf("waiter was not woken")
	}
	select {
	case <-other:
		t.Fatalf("unrelated table waiter was woken")
	default:
	}

	if got := tr.Version("comics"); got != 1 {
		t.Fatalf("version after duplicate notify = %d, want 1", got)
	}
	if tr.Changed("comics") == changed {
		t.Fatalf("Changed() should return a fresh channel after notify")
	}
}
