package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/metrics"
)

type fakeReplication struct {
	replicas int
	offset   int64
}

func (f fakeReplication) NumReplicas() int  { return f.replicas }
func (f fakeReplication) CurrentOffset() int64 { return f.offset }

func doRequest(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturnsOK(t *testing.T) {
	router := NewRouter(nil, keyspace.New(nil), metrics.New(), nil, false)
	rec := doRequest(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsReturnsSnapshot(t *testing.T) {
	reg := metrics.New()
	reg.SetConnections(3)
	router := NewRouter(nil, keyspace.New(nil), reg, nil, false)

	rec := doRequest(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Connections != 3 {
		t.Fatalf("connections = %d, want 3", snap.Connections)
	}
}

func TestInfoOmitsReplicationWhenNil(t *testing.T) {
	router := NewRouter(nil, keyspace.New(nil), metrics.New(), nil, false)
	rec := doRequest(t, router, "/info")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["connected_replicas"]; ok {
		t.Fatal("connected_replicas should be absent with no replication configured")
	}
}

func TestInfoIncludesReplicationWhenSet(t *testing.T) {
	router := NewRouter(nil, keyspace.New(nil), metrics.New(), fakeReplication{replicas: 2, offset: 42}, false)
	rec := doRequest(t, router, "/info")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if int(body["connected_replicas"].(float64)) != 2 {
		t.Fatalf("connected_replicas = %v, want 2", body["connected_replicas"])
	}
	if int64(body["master_repl_offset"].(float64)) != 42 {
		t.Fatalf("master_repl_offset = %v, want 42", body["master_repl_offset"])
	}
}
