package clock

import (
	"testing"
	"time"
)

func TestMockClock_Now(t *testing.T) {
	start := time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)
	clk := NewMockClock(start)

	if !clk.Now().Equal(start) {
		t.Errorf("Expected %v, got %v", start, clk.Now())
	}

	clk.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !clk.Now().Equal(want) {
		t.Errorf("Expected %v, got %v", want, clk.Now())
	}
}

func TestMockClock_AfterFunc(t *testing.T) {
	clk := NewMockClock(time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC))

	fired := false
	clk.AfterFunc(10*time.Second, func() { fired = true })

	clk.Advance(9 * time.Second)
	if fired {
		t.Error("Timer fired before its deadline")
	}

	clk.Advance(1 * time.Second)
	if !fired {
		t.Error("Timer did not fire at its deadline")
	}
}

func TestMockClock_FiresInDeadlineOrder(t *testing.T) {
	clk := NewMockClock(time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC))

	var order []string
	clk.AfterFunc(30*time.Second, func() { order = append(order, "b") })
	clk.AfterFunc(10*time.Second, func() { order = append(order, "a") })
	clk.AfterFunc(60*time.Second, func() { order = append(order, "c") })

	clk.Advance(time.Minute)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("Expected firing order [a b c], got %v", order)
	}
}

func TestMockClock_ChainedTimers(t *testing.T) {
	clk := NewMockClock(time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC))

	// Each callback schedules the next step, like a volume ramp
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			clk.AfterFunc(10*time.Second, tick)
		}
	}
	clk.AfterFunc(10*time.Second, tick)

	clk.Advance(50 * time.Second)
	if ticks != 5 {
		t.Errorf("Expected 5 chained ticks, got %d", ticks)
	}
}

func TestMockClock_CallbackSeesDeadlineTime(t *testing.T) {
	start := time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)
	clk := NewMockClock(start)

	var seen time.Time
	clk.AfterFunc(10*time.Second, func() { seen = clk.Now() })

	clk.Advance(time.Hour)
	if !seen.Equal(start.Add(10 * time.Second)) {
		t.Errorf("Callback observed %v, expected deadline time", seen)
	}
}

func TestMockClock_Stop(t *testing.T) {
	clk := NewMockClock(time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC))

	fired := false
	timer := clk.AfterFunc(10*time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Expected Stop to return true for a pending timer")
	}
	if timer.Stop() {
		t.Error("Expected Stop to return false for an already stopped timer")
	}

	clk.Advance(time.Minute)
	if fired {
		t.Error("Stopped timer fired")
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	clk := NewRealClock()

	done := make(chan struct{})
	clk.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timer did not fire")
	}
}
