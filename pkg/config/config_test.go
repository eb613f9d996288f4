package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should be valid: %v", err)
	}
}

func TestWriteExampleRoundTrips(t *testing.T) {
	path := t.TempDir() + "/ratewarden.yaml"
	if err := WriteExample(path); err != nil {
		t.Fatalf("WriteExample() error = %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config should be valid: %v", err)
	}
}

func TestWriteExampleRulesRoundTrips(t *testing.T) {
	path := t.TempDir() + "/rules.yaml"
	if err := WriteExampleRules(path); err != nil {
		t.Fatalf("WriteExampleRules() error = %v", err)
	}

	rf, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFile() error = %v", err)
	}
	if len(rf.Limiters) == 0 {
		t.Fatal("example rules file declares no limiters")
	}
}
