package clock

import (
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManual(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestManual_AfterFiresOnAdvance(t *testing.T) {
	c := NewManual(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	ch := c.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before deadline")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire at deadline")
	}
}

func TestManual_AfterZeroFiresImmediately(t *testing.T) {
	c := NewManual(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	select {
	case <-c.After(0):
	case <-time.After(time.Second):
		t.Fatal("zero-duration timer did not fire")
	}
}

func TestReal_Now(t *testing.T) {
	c := Real()
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real().Now() = %v outside [%v, %v]", got, before, after)
	}
}
