package recorder

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRecorder_Record(t *testing.T) {
	rec := New(nil)

	err := rec.Record(TrafficRecord{
		Time:      epoch,
		LimiterID: "api",
		Key:       []byte("user1"),
		Amount:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Len() != 1 {
		t.Errorf("Len() = %d, want 1", rec.Len())
	}
}

func TestRecorder_Records_ReturnsCopy(t *testing.T) {
	rec := New(nil)
	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user1"), Amount: 1})

	records := rec.Records()
	records[0].LimiterID = "mutated"

	original := rec.Records()
	if original[0].LimiterID != "api" {
		t.Error("Records() should return a copy, original was mutated")
	}
}

func TestRecorder_StreamToWriter(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf)

	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user1"), Amount: 1})
	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user2"), Amount: 2})

	// Should have 2 newline-delimited JSON lines.
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var r TrafficRecord
	json.Unmarshal(lines[0], &r)
	if string(r.Key) != "user1" {
		t.Errorf("first record key = %q, want %q", r.Key, "user1")
	}
}

func TestRecorder_ExportJSON(t *testing.T) {
	rec := New(nil)
	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user1"), Amount: 1})
	rec.Record(TrafficRecord{Time: epoch.Add(time.Second), Tick: 1, LimiterID: "api", Key: []byte("user2"), Amount: 3})

	var buf bytes.Buffer
	err := rec.ExportJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}

	var records []TrafficRecord
	json.NewDecoder(&buf).Decode(&records)
	if len(records) != 2 {
		t.Fatalf("exported %d records, want 2", len(records))
	}
	if string(records[0].Key) != "user1" {
		t.Errorf("records[0].Key = %q, want %q", records[0].Key, "user1")
	}
	if records[1].Tick != 1 || records[1].Amount != 3 {
		t.Errorf("records[1] = %+v, want tick 1 amount 3", records[1])
	}
}

func TestRecorder_ExportFile(t *testing.T) {
	rec := New(nil)
	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user1"), Amount: 1})

	path := filepath.Join(t.TempDir(), "traffic.json")
	err := rec.ExportFile(path)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var records []TrafficRecord
	json.Unmarshal(data, &records)
	if len(records) != 1 {
		t.Fatalf("exported %d records, want 1", len(records))
	}
}

func TestLoadJSON(t *testing.T) {
	input := `[
		{"time": "2024-01-01T00:00:00Z", "limiter_id": "api", "key": "dXNlcjE=", "amount": 1},
		{"time": "2024-01-01T00:00:01Z", "tick": 1, "limiter_id": "api", "key": "dXNlcjI=", "amount": 2}
	]`

	records, err := LoadJSON(bytes.NewReader([]byte(input)))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2", len(records))
	}
	if string(records[0].Key) != "user1" {
		t.Errorf("records[0].Key = %q, want %q", records[0].Key, "user1")
	}
}

func TestLoadNDJSON(t *testing.T) {
	input := `{"time": "2024-01-01T00:00:00Z", "limiter_id": "api", "key": "dXNlcjE=", "amount": 1}
{"time": "2024-01-01T00:00:01Z", "tick": 1, "limiter_id": "rpc", "key": "dXNlcjI=", "amount": 2}
`

	records, err := LoadNDJSON(bytes.NewReader([]byte(input)))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("loaded %d records, want 2", len(records))
	}
	if records[1].LimiterID != "rpc" || records[1].Tick != 1 {
		t.Errorf("records[1] = %+v, want rpc tick 1", records[1])
	}
}

func TestLoadFile_DetectsFormat(t *testing.T) {
	dir := t.TempDir()

	array := filepath.Join(dir, "array.json")
	os.WriteFile(array, []byte(`[{"limiter_id": "api", "key": "YQ==", "amount": 1}]`), 0o644)

	ndjson := filepath.Join(dir, "stream.ndjson")
	os.WriteFile(ndjson, []byte(`{"limiter_id": "api", "key": "YQ==", "amount": 1}
{"limiter_id": "api", "key": "Yg==", "amount": 2}
`), 0o644)

	records, err := LoadFile(array)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("array load: got %d records, want 1", len(records))
	}

	records, err = LoadFile(ndjson)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("ndjson load: got %d records, want 2", len(records))
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ndjson")
	os.WriteFile(path, nil, 0o644)

	records, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("empty file: got %d records, want 0", len(records))
	}
}

func TestLoadFile_Roundtrip(t *testing.T) {
	rec := New(nil)
	rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user1"), Amount: 1, Metadata: map[string]string{"region": "us"}})
	rec.Record(TrafficRecord{Time: epoch.Add(5 * time.Second), Tick: 5, LimiterID: "api", Key: []byte("user2"), Amount: 2})

	path := filepath.Join(t.TempDir(), "traffic.json")
	if err := rec.ExportFile(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("roundtrip: got %d records, want 2", len(loaded))
	}
	if loaded[0].Metadata["region"] != "us" {
		t.Error("metadata not preserved in roundtrip")
	}
	if loaded[1].Tick != 5 {
		t.Errorf("roundtrip tick = %d, want 5", loaded[1].Tick)
	}
}

func TestRecorder_ConcurrentAccess(t *testing.T) {
	rec := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(TrafficRecord{Time: epoch, LimiterID: "api", Key: []byte("user"), Amount: 1})
		}()
	}
	wg.Wait()

	if rec.Len() != 100 {
		t.Errorf("Len() = %d, want 100", rec.Len())
	}
}
