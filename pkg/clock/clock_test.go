package clock

import (
	"testing"
	"time"
)

func TestClockImplementations(t *testing.T) {
	var _ Clock = NewSystem(time.Second)
	var _ Clock = NewManual(time.Now())
}

func TestSystemTickMonotone(t *testing.T) {
	c := NewSystem(time.Hour)
	first := c.Tick()
	second := c.Tick()
	if second < first {
		t.Fatalf("Tick() went backward: %d then %d", first, second)
	}
}

func TestSystemTickAdvancesWithInterval(t *testing.T) {
	c := NewSystem(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if got := c.Tick(); got == 0 {
		t.Fatal("Tick() = 0 after sleeping past the block interval")
	}
}

func TestSystemDefaultInterval(t *testing.T) {
	c := NewSystem(0)
	if c.interval != DefaultBlockInterval {
		t.Fatalf("interval = %v, want %v", c.interval, DefaultBlockInterval)
	}
	c = NewSystem(-time.Second)
	if c.interval != DefaultBlockInterval {
		t.Fatalf("interval = %v, want %v", c.interval, DefaultBlockInterval)
	}
}

func TestSystemUnix(t *testing.T) {
	c := NewSystem(time.Second)
	before := uint64(time.Now().Unix())
	got := c.Unix()
	after := uint64(time.Now().Unix())
	if got < before || got > after {
		t.Fatalf("Unix() = %d, want between %d and %d", got, before, after)
	}
}
