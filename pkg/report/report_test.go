package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(backend, policy string) BenchmarkResult {
	return BenchmarkResult{
		Backend:       backend,
		Policy:        policy,
		NumProducers:  10,
		NumConsumers:  10,
		RequestLimit:  1024,
		BatchSize:     64,
		NumEnqueued:   100000,
		NumDelivered:  99000,
		NumDropped:    1000,
		TestDuration:  "5s",
		ActualElapsed: "5.01s",
		Throughput:    19760.5,
		Timestamp:     1700000000,
		GoVersion:     "go1.22.2",
	}
}

func TestGatherSystemInfo(t *testing.T) {
	info := GatherSystemInfo()
	assert.Greater(t, info.NumCPU, 0)
	assert.NotEmpty(t, info.GOARCH)
}

func TestNewSessionStampsTime(t *testing.T) {
	results := []BenchmarkResult{sampleResult("SegmentedMPMCQueue", "discard")}
	session := NewSession(SystemInfo{NumCPU: 8, GOARCH: "amd64"}, results)

	assert.NotEmpty(t, session.SessionTime)
	assert.Equal(t, 8, session.SystemInfo.NumCPU)
	require.Len(t, session.Benchmarks, 1)
	assert.Equal(t, "discard", session.Benchmarks[0].Policy)
}

func TestLoadSessionsMissingFile(t *testing.T) {
	sessions, err := LoadSessions(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLoadSessionsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	sessions, err := LoadSessions(path)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLoadSessionsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := LoadSessions(path)
	assert.Error(t, err)
}

func TestAppendSessionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	first := NewSession(SystemInfo{NumCPU: 4, GOARCH: "amd64"},
		[]BenchmarkResult{sampleResult("SegmentedMPMCQueue", "raw")})
	require.NoError(t, AppendSessions(path, []FullReport{first}))

	second := NewSession(SystemInfo{NumCPU: 4, GOARCH: "amd64"},
		[]BenchmarkResult{
			sampleResult("LinkedMPMCQueue", "block"),
			sampleResult("MutexRingQueue", "grow"),
		})
	require.NoError(t, AppendSessions(path, []FullReport{second}))

	sessions, err := LoadSessions(path)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.Len(t, sessions[0].Benchmarks, 1)
	assert.Equal(t, "SegmentedMPMCQueue", sessions[0].Benchmarks[0].Backend)
	assert.Equal(t, "raw", sessions[0].Benchmarks[0].Policy)

	require.Len(t, sessions[1].Benchmarks, 2)
	assert.Equal(t, "block", sessions[1].Benchmarks[0].Policy)
	assert.Equal(t, "grow", sessions[1].Benchmarks[1].Policy)
	assert.EqualValues(t, 99000, sessions[1].Benchmarks[1].NumDelivered)
}
