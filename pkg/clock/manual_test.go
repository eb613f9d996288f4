package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_StartsAtTickZero(t *testing.T) {
	mc := NewManual(epoch)
	if got := mc.Tick(); got != 0 {
		t.Errorf("Tick() = %d, want 0", got)
	}
	if got := mc.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
}

func TestManual_AdvanceTicks(t *testing.T) {
	mc := NewManual(epoch)
	mc.AdvanceTicks(5)
	mc.AdvanceTicks(7)

	if got := mc.Tick(); got != 12 {
		t.Errorf("Tick() after advances = %d, want 12", got)
	}
	// Ticks advance independently of wall time.
	if got := mc.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
}

func TestManual_Advance(t *testing.T) {
	mc := NewManual(epoch)
	mc.Advance(90 * time.Second)

	want := epoch.Add(90 * time.Second)
	if got := mc.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
	if got, wantSecs := mc.Unix(), uint64(epoch.Unix())+90; got != wantSecs {
		t.Errorf("Unix() = %d, want %d", got, wantSecs)
	}
}

func TestManual_AdvanceNegativePanics(t *testing.T) {
	mc := NewManual(epoch)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on negative advance")
		}
	}()
	mc.Advance(-1 * time.Second)
}

func TestManual_SetTick(t *testing.T) {
	mc := NewManual(epoch)
	mc.SetTick(42)

	if got := mc.Tick(); got != 42 {
		t.Errorf("Tick() after SetTick = %d, want 42", got)
	}
	// Setting to the same value is allowed.
	mc.SetTick(42)
}

func TestManual_SetTickBackwardPanics(t *testing.T) {
	mc := NewManual(epoch)
	mc.SetTick(10)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on setting tick to the past")
		}
	}()
	mc.SetTick(9)
}

func TestManual_Set(t *testing.T) {
	mc := NewManual(epoch)
	target := epoch.Add(24 * time.Hour)
	mc.Set(target)

	if got := mc.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
}

func TestManual_SetPastPanics(t *testing.T) {
	mc := NewManual(epoch)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on setting time to the past")
		}
	}()
	mc.Set(epoch.Add(-1 * time.Hour))
}

func TestManual_UnixBeforeEpochClampsToZero(t *testing.T) {
	mc := NewManual(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))
	if got := mc.Unix(); got != 0 {
		t.Errorf("Unix() = %d, want 0 for pre-1970 time", got)
	}
}

func TestManual_ConcurrentAccess(t *testing.T) {
	mc := NewManual(epoch)

	var wg sync.WaitGroup
	// Readers.
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mc.Tick()
			_ = mc.Unix()
			_ = mc.Now()
		}()
	}
	// Writers.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			mc.AdvanceTicks(1)
			mc.Advance(time.Millisecond)
		}
	}()

	wg.Wait()

	if got := mc.Tick(); got != 100 {
		t.Errorf("after concurrent ops, Tick() = %d, want 100", got)
	}
	want := epoch.Add(100 * time.Millisecond)
	if got := mc.Now(); !got.Equal(want) {
		t.Errorf("after concurrent ops, Now() = %v, want %v", got, want)
	}
}
