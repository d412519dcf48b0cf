package report

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one test run of a backend under one
// overflow policy.
type BenchmarkResult struct {
	Backend       string  `json:"backend"`
	Policy        string  `json:"policy"`
	NumProducers  int     `json:"num_producers"`
	NumConsumers  int     `json:"num_consumers"`
	RequestLimit  int     `json:"request_limit"`
	BatchSize     int     `json:"batch_size"`
	NumEnqueued   int64   `json:"num_enqueued"`          // enqueue calls made
	NumDelivered  int64   `json:"num_delivered"`         // events handed to consumers
	NumDropped    int64   `json:"num_dropped"`           // events evicted by the discard policy
	TestDuration  string  `json:"test_duration"`         // e.g. "5s"
	ActualElapsed string  `json:"actual_elapsed"`        // measured time
	Throughput    float64 `json:"throughput_events_sec"` // based on delivered count
	Timestamp     int64   `json:"timestamp"`
	GoVersion     string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// GatherSystemInfo collects basic CPU and memory details.
func GatherSystemInfo() SystemInfo {
	numCPU := runtime.NumCPU()
	goArch := runtime.GOARCH

	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      numCPU,
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      goArch,
		TotalMemory: totalMemory,
	}
}

// NewSession stamps a report with the current time.
func NewSession(info SystemInfo, benchmarks []BenchmarkResult) FullReport {
	return FullReport{
		SessionTime: time.Now().Format(time.RFC3339),
		SystemInfo:  info,
		Benchmarks:  benchmarks,
	}
}

// LoadSessions reads previously exported sessions from a JSON file. A missing
// file yields an empty slice so a first run can append to nothing.
func LoadSessions(path string) ([]FullReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshalling %q: %w", path, err)
	}
	return sessions, nil
}

// AppendSessions loads the file, appends the new sessions and writes the
// combined list back.
func AppendSessions(path string, sessions []FullReport) error {
	previous, err := LoadSessions(path)
	if err != nil {
		return err
	}
	updated := append(previous, sessions...)
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling sessions: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}
