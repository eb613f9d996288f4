package generate

import (
	"testing"
	"time"
)

func TestTraffic_AllPatterns(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patterns := []string{PatternSteady, PatternBurst, PatternRamp}

	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			records, err := Traffic(&Options{
				Count:    32,
				Keys:     3,
				Duration: 2 * time.Minute,
				Pattern:  p,
				Start:    start,
				Seed:     7,
			})
			if err != nil {
				t.Fatalf("Traffic() error = %v", err)
			}
			if len(records) != 32 {
				t.Fatalf("len(records) = %d, want 32", len(records))
			}
			for _, rec := range records {
				if len(rec.Key) == 0 || rec.Amount == 0 {
					t.Fatalf("record should have key and amount: %+v", rec)
				}
			}
		})
	}
}

func TestTraffic_NilOptions(t *testing.T) {
	if _, err := Traffic(nil); err == nil {
		t.Fatal("expected error for nil options")
	}
}

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := DefaultOptions()
	records, err := Traffic(&opts)
	if err != nil {
		t.Fatalf("Traffic() with defaults error = %v", err)
	}
	if len(records) != opts.Count {
		t.Fatalf("len(records) = %d, want %d", len(records), opts.Count)
	}
}
