// Package report defines the benchmark report documents stored in the results
// directory and the decoders used to read them.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileName is the report file expected inside every run directory.
const FileName = "report.json"

// Sentinel errors for caller-checkable conditions.
var (
	ErrInvalidReport   = errors.New("report: invalid report")
	ErrMissingHardware = errors.New("report: missing hardware identifier")
	ErrMissingGitref   = errors.New("report: missing gitref")
)

// epoch is the commit date assumed for runs without a parseable gitref_date.
var epoch = time.Unix(0, 0).UTC()

var gitrefDateLayouts = []string{time.RFC3339, time.DateOnly}

// Report is the light form of a benchmark report. Time series samples present
// in the full file are dropped during decoding; only summaries are kept.
type Report struct {
	Timestamp         string              `json:"timestamp"`
	UUID              uuid.UUID           `json:"uuid"`
	ServerStats       json.RawMessage     `json:"server_stats,omitempty"`
	Params            Params              `json:"params"`
	Hardware          Hardware            `json:"hardware"`
	GroupMetrics      []GroupMetrics      `json:"group_metrics"`
	IndividualMetrics []IndividualMetrics `json:"individual_metrics"`
}

// Params describes the shape of a benchmark run.
type Params struct {
	BenchmarkKind    string  `json:"benchmark_kind"`
	Transport        string  `json:"transport"`
	PrettyName       string  `json:"pretty_name"`
	MessagesPerBatch uint64  `json:"messages_per_batch"`
	MessageBatches   uint64  `json:"message_batches"`
	MessageSize      uint64  `json:"message_size"`
	Producers        uint32  `json:"producers"`
	Consumers        uint32  `json:"consumers"`
	Streams          uint32  `json:"streams"`
	Partitions       uint32  `json:"partitions"`
	Gitref           *string `json:"gitref,omitempty"`
	GitrefDate       *string `json:"gitref_date,omitempty"`
	ParamsIdentifier string  `json:"params_identifier"`
	Remark           *string `json:"remark,omitempty"`
}

// Hardware describes the machine a run executed on.
type Hardware struct {
	Identifier    *string `json:"identifier,omitempty"`
	CPUName       string  `json:"cpu_name"`
	CPUCores      uint32  `json:"cpu_cores"`
	TotalMemoryMB uint64  `json:"total_memory_mb"`
	OSName        string  `json:"os_name"`
	OSVersion     string  `json:"os_version"`
}

// GroupMetrics holds the summary of one actor group.
type GroupMetrics struct {
	Summary GroupSummary `json:"summary"`
}

// IndividualMetrics holds the summary of a single actor.
type IndividualMetrics struct {
	Summary ActorSummary `json:"summary"`
}

// GroupSummary aggregates latency and throughput across an actor group.
type GroupSummary struct {
	Kind                                GroupKind `json:"kind"`
	TotalThroughputMegabytesPerSecond   float64   `json:"total_throughput_megabytes_per_second"`
	TotalThroughputMessagesPerSecond    float64   `json:"total_throughput_messages_per_second"`
	AverageThroughputMegabytesPerSecond float64   `json:"average_throughput_megabytes_per_second"`
	AverageThroughputMessagesPerSecond  float64   `json:"average_throughput_messages_per_second"`
	AverageP50LatencyMs                 float64   `json:"average_p50_latency_ms"`
	AverageP90LatencyMs                 float64   `json:"average_p90_latency_ms"`
	AverageP95LatencyMs                 float64   `json:"average_p95_latency_ms"`
	AverageP99LatencyMs                 float64   `json:"average_p99_latency_ms"`
	AverageP999LatencyMs                float64   `json:"average_p999_latency_ms"`
	AverageP9999LatencyMs               float64   `json:"average_p9999_latency_ms"`
	AverageLatencyMs                    float64   `json:"average_latency_ms"`
	AverageMedianLatencyMs              float64   `json:"average_median_latency_ms"`
	MinLatencyMs                        float64   `json:"min_latency_ms"`
	MaxLatencyMs                        float64   `json:"max_latency_ms"`
	StdDevLatencyMs                     float64   `json:"std_dev_latency_ms"`
}

// ActorSummary is the per-actor counterpart of GroupSummary.
type ActorSummary struct {
	ActorKind                    string  `json:"actor_kind"`
	ActorID                      uint32  `json:"actor_id"`
	TotalTimeSecs                float64 `json:"total_time_secs"`
	TotalUserDataBytes           uint64  `json:"total_user_data_bytes"`
	TotalBytes                   uint64  `json:"total_bytes"`
	TotalMessages                uint64  `json:"total_messages"`
	ThroughputMegabytesPerSecond float64 `json:"throughput_megabytes_per_second"`
	ThroughputMessagesPerSecond  float64 `json:"throughput_messages_per_second"`
	P50LatencyMs                 float64 `json:"p50_latency_ms"`
	P90LatencyMs                 float64 `json:"p90_latency_ms"`
	P95LatencyMs                 float64 `json:"p95_latency_ms"`
	P99LatencyMs                 float64 `json:"p99_latency_ms"`
	P999LatencyMs                float64 `json:"p999_latency_ms"`
	AvgLatencyMs                 float64 `json:"avg_latency_ms"`
	MedianLatencyMs              float64 `json:"median_latency_ms"`
}

// HardwareID returns the hardware identifier, or "" when absent.
func (r *Report) HardwareID() string {
	if r.Hardware.Identifier == nil {
		return ""
	}
	return *r.Hardware.Identifier
}

// Gitref returns the source revision the run was built from, or "" when absent.
func (r *Report) Gitref() string {
	if r.Params.Gitref == nil {
		return ""
	}
	return *r.Params.Gitref
}

// GitrefDate returns the commit date of the run's gitref, given as RFC 3339
// or as a bare date. Missing or malformed dates map to the Unix epoch so
// they sort first.
func (r *Report) GitrefDate() time.Time {
	if r.Params.GitrefDate == nil {
		return epoch
	}
	for _, layout := range gitrefDateLayouts {
		if t, err := time.Parse(layout, *r.Params.GitrefDate); err == nil {
			return t
		}
	}
	return epoch
}

// Validate checks that the fields required for indexing are present.
func (r *Report) Validate() error {
	if r.UUID == uuid.Nil {
		return fmt.Errorf("%w: missing uuid", ErrInvalidReport)
	}
	if r.HardwareID() == "" {
		return ErrMissingHardware
	}
	if r.Gitref() == "" {
		return ErrMissingGitref
	}
	return nil
}

// GroupSummary returns the first group summary of the given kind.
func (r *Report) GroupSummary(kind GroupKind) (GroupSummary, bool) {
	for _, g := range r.GroupMetrics {
		if g.Summary.Kind == kind {
			return g.Summary, true
		}
	}
	return GroupSummary{}, false
}

// TotalThroughput returns the system-wide throughput summary when the report
// has one. Send-and-poll benchmarks record it under either combined kind.
func (r *Report) TotalThroughput() (GroupSummary, bool) {
	for _, g := range r.GroupMetrics {
		switch g.Summary.Kind {
		case ProducersAndConsumers, ProducingConsumers:
			return g.Summary, true
		case Producers, Consumers:
		}
	}
	return GroupSummary{}, false
}

func (r *Report) String() string {
	return fmt.Sprintf("%s (%s, %s@%s)", r.Params.PrettyName, r.UUID, r.HardwareID(), r.Gitref())
}
