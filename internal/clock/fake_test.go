package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc_FiresOnlyPastDeadline(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d before deadline", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("fired = %d after second advance, want 1", fired)
	}
}

func TestFakeAfterFunc_StopPreventsFire(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatalf("Stop() = false, want true for pending timer")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatalf("second Stop() = true, want false")
	}
}

func TestFakeAdvance_ChainedTimersInsideWindow(t *testing.T) {
	c := Fake(epoch)
	var at []time.Time
	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(2*time.Second, func() { at = append(at, c.Now()) })
	})
	c.Advance(10 * time.Second)
	if len(at) != 2 {
		t.Fatalf("fired %d callbacks, want 2", len(at))
	}
	if got := at[0].Sub(epoch); got != time.Second {
		t.Fatalf("first callback at +%v, want +1s", got)
	}
	if got := at[1].Sub(epoch); got != 3*time.Second {
		t.Fatalf("second callback at +%v, want +3s", got)
	}
	if got := c.Now().Sub(epoch); got != 10*time.Second {
		t.Fatalf("Now() = +%v, want +10s", got)
	}
}

func TestFakeTicker_DeliversPerInterval(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatalf("expected tick after one interval")
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 (ticker rescheduled)", c.Pending())
	}
}
