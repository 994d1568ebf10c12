package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/smileynet/benchdash/internal/cache"
	"github.com/smileynet/benchdash/internal/report"
)

var (
	runA = uuid.MustParse("6f1c1f0e-1d1b-4a53-9c55-0a4f6c1e9a01")
	runB = uuid.MustParse("6f1c1f0e-1d1b-4a53-9c55-0a4f6c1e9a02")
	runC = uuid.MustParse("6f1c1f0e-1d1b-4a53-9c55-0a4f6c1e9a03")
)

// fixtureJSON renders a full report with a time series the light form drops.
func fixtureJSON(id uuid.UUID, hw, gitref, date, name string) string {
	return fmt.Sprintf(`{
  "timestamp": "2025-03-01T10:00:00Z",
  "uuid": %q,
  "params": {
    "benchmark_kind": "pinned_producer",
    "transport": "tcp",
    "pretty_name": %q,
    "messages_per_batch": 1000,
    "message_batches": 1000,
    "message_size": 1000,
    "producers": 8,
    "consumers": 0,
    "streams": 8,
    "partitions": 1,
    "gitref": %q,
    "gitref_date": %q,
    "params_identifier": "pinned_producer_8_tcp"
  },
  "hardware": {
    "identifier": %q,
    "cpu_name": "AMD Ryzen 9",
    "cpu_cores": 16,
    "total_memory_mb": 65536,
    "os_name": "Linux",
    "os_version": "6.8"
  },
  "group_metrics": [{
    "summary": {"kind": "producers", "total_throughput_megabytes_per_second": 950.5},
    "avg_throughput_mb_ts": {"points": [{"time_s": 0.5, "value": 901.2}]}
  }],
  "individual_metrics": []
}`, id, name, gitref, date, hw)
}

func writeFixture(t *testing.T, root, dir, body string) string {
	t.Helper()
	runDir := filepath.Join(root, dir)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(runDir, report.FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestServer loads a cache over three runs on two machines.
func newTestServer(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "a", fixtureJSON(runA, "box-1", "v0.5.0", "2025-02-01T00:00:00Z", "8 producers"))
	writeFixture(t, root, "b", fixtureJSON(runB, "box-1", "v0.4.0", "2025-01-01T00:00:00Z", "8 producers"))
	writeFixture(t, root, "c", fixtureJSON(runC, "box-2", "v0.5.0", "2025-02-01T00:00:00Z", "8 producers"))

	c := cache.New(root)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return New(c, opts...), root
}

func get(t *testing.T, s *Server, target string) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s, "/health")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got := decode[map[string]string](t, body); got["status"] != "healthy" {
		t.Errorf("body = %s", body)
	}
}

func TestListEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name    string
		target  string
		wantIDs []uuid.UUID
	}{
		{"runs for hardware and gitref", "/api/benchmarks/box-1/v0.5.0", []uuid.UUID{runA}},
		{"runs for gitref on any hardware", "/api/benchmarks/gitref/v0.5.0", []uuid.UUID{runA, runC}},
		{"unknown gitref", "/api/benchmarks/box-1/v9", nil},
		{"trend ordered by gitref date", "/api/benchmark/trend/box-1/pinned_producer_8_tcp", []uuid.UUID{runB, runA}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, s, tt.target)
			if code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", code, body)
			}
			runs := decode[[]report.Report](t, body)
			if len(runs) != len(tt.wantIDs) {
				t.Fatalf("got %d runs, want %d: %s", len(runs), len(tt.wantIDs), body)
			}
			for i, r := range runs {
				if r.UUID != tt.wantIDs[i] {
					t.Errorf("runs[%d] = %s, want %s", i, r.UUID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestHardwareAndGitrefs(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := get(t, s, "/api/hardware")
	hw := decode[[]report.Hardware](t, body)
	if len(hw) != 2 || *hw[0].Identifier != "box-1" || *hw[1].Identifier != "box-2" {
		t.Errorf("hardware = %s", body)
	}

	_, body = get(t, s, "/api/gitrefs/box-1")
	refs := decode[[]string](t, body)
	if len(refs) != 2 {
		t.Errorf("gitrefs(box-1) = %v, want two entries", refs)
	}

	_, body = get(t, s, "/api/gitrefs/nope")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("gitrefs(unknown) = %s, want []", body)
	}
}

func TestLightAndFullReport(t *testing.T) {
	s, _ := newTestServer(t)

	// Given a cached run
	code, light := get(t, s, "/api/benchmark/"+runA.String())
	if code != http.StatusOK {
		t.Fatalf("light status = %d", code)
	}
	code, full := get(t, s, "/api/benchmark/full/"+runA.String())
	if code != http.StatusOK {
		t.Fatalf("full status = %d", code)
	}

	// Then only the full report carries the time series
	if strings.Contains(string(light), "avg_throughput_mb_ts") {
		t.Error("light report should not include time series")
	}
	if !strings.Contains(string(full), "avg_throughput_mb_ts") {
		t.Error("full report should include time series")
	}
	if r := decode[report.Report](t, light); r.UUID != runA || r.Gitref() != "v0.5.0" {
		t.Errorf("light report = %s", light)
	}
}

func TestErrors(t *testing.T) {
	s, root := newTestServer(t)
	missing := uuid.MustParse("00000000-0000-4000-8000-000000000001")

	// The file of a cached run disappears before the next reload.
	if err := os.Remove(filepath.Join(root, "c", report.FileName)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"malformed uuid", "/api/benchmark/not-a-uuid", http.StatusBadRequest},
		{"malformed uuid on full report", "/api/benchmark/full/xyz", http.StatusBadRequest},
		{"unknown run", "/api/benchmark/" + missing.String(), http.StatusNotFound},
		{"unknown run full report", "/api/benchmark/full/" + missing.String(), http.StatusNotFound},
		{"vanished report file", "/api/benchmark/full/" + runC.String(), http.StatusNotFound},
		{"unknown route", "/api/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, s, tt.target)
			if code != tt.want {
				t.Fatalf("status = %d, want %d: %s", code, tt.want, body)
			}
			if got := decode[map[string]string](t, body); got["error"] == "" {
				t.Errorf("error body = %s, want an error message", body)
			}
		})
	}
}

func TestStatsAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "benchdash_cached_runs 3\n")
	})
	s, _ := newTestServer(t, WithMetrics("/metrics", metrics))

	_, body := get(t, s, "/api/stats")
	if st := decode[cache.Stats](t, body); st.Runs != 3 || st.Hardware != 2 || st.Gitrefs != 2 {
		t.Errorf("stats = %s", body)
	}

	code, body := get(t, s, "/metrics")
	if code != http.StatusOK || !strings.Contains(string(body), "benchdash_cached_runs 3") {
		t.Errorf("metrics = %d %s", code, body)
	}
}

func TestParamUnescape(t *testing.T) {
	s, root := newTestServer(t)
	writeFixture(t, root, "d", fixtureJSON(uuid.New(), "rack 7", "v0.5.0", "2025-02-01T00:00:00Z", "8 producers"))
	c := cache.New(root)
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	s = New(c)

	_, body := get(t, s, "/api/gitrefs/rack%207")
	if refs := decode[[]string](t, body); len(refs) != 1 || refs[0] != "v0.5.0" {
		t.Errorf("gitrefs(rack 7) = %s", body)
	}
}
