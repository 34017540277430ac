package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if cfg.Port != 6379 || cfg.Bind != "127.0.0.1" || cfg.AdminPort != 16379 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.AppendOnly {
		t.Fatal("appendonly should default false")
	}
	if cfg.ReplicaOf != nil {
		t.Fatal("replicaof should default nil")
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--port", "6380", "--bind", "0.0.0.0", "--dir", "/data", "--dbfilename", "x.rdb"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 6380 || cfg.Bind != "0.0.0.0" || cfg.Dir != "/data" || cfg.DBFilename != "x.rdb" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseEqualsForm(t *testing.T) {
	cfg, err := Parse([]string{"--port=7000"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 7000 {
		t.Fatalf("port = %d, want 7000", cfg.Port)
	}
}

func TestParseAppendOnlyFlagWithNoValue(t *testing.T) {
	cfg, err := Parse([]string{"--appendonly"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.AppendOnly {
		t.Fatal("appendonly should be true")
	}
}

func TestParseAdminPort(t *testing.T) {
	cfg, err := Parse([]string{"--admin-port", "9999"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AdminPort != 9999 {
		t.Fatalf("admin port = %d, want 9999", cfg.AdminPort)
	}
}

func TestParseReplicaOf(t *testing.T) {
	cfg, err := Parse([]string{"--replicaof", "10.0.0.5 6379"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ReplicaOf == nil || cfg.ReplicaOf.Host != "10.0.0.5" || cfg.ReplicaOf.Port != 6379 {
		t.Fatalf("replicaof = %+v", cfg.ReplicaOf)
	}
}

func TestParseUnknownFlagErrors(t *testing.T) {
	if _, err := Parse([]string{"--bogus", "1"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParseMissingValueErrors(t *testing.T) {
	if _, err := Parse([]string{"--port"}); err == nil {
		t.Fatal("expected error for missing value")
	}
}

func TestParseBadPortErrors(t *testing.T) {
	if _, err := Parse([]string{"--port", "notanumber"}); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestParseBadReplicaOfErrors(t *testing.T) {
	if _, err := Parse([]string{"--replicaof", "onlyhost"}); err == nil {
		t.Fatal("expected error for malformed --replicaof")
	}
}

func TestParseNonFlagArgumentErrors(t *testing.T) {
	if _, err := Parse([]string{"notaflag"}); err == nil {
		t.Fatal("expected error for bare argument")
	}
}
