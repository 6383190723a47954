package sampler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphummel/sitewatch/internal/apiclient"
	"github.com/tphummel/sitewatch/internal/sampler"
)

type fakeHost struct {
	loads  [3]float64
	memory sampler.Memory
	uptime uint64
	ifaces []string
	err    error
}

func (h fakeHost) LoadAverages(context.Context) ([3]float64, error) { return h.loads, h.err }
func (h fakeHost) Memory(context.Context) (sampler.Memory, error)   { return h.memory, h.err }
func (h fakeHost) Uptime(context.Context) (uint64, error)           { return h.uptime, h.err }
func (h fakeHost) Interfaces(context.Context) ([]string, error)     { return h.ifaces, h.err }

type fakeNeighbors struct {
	lines []string
	err   error
}

func (n fakeNeighbors) Scan(context.Context) ([]string, error) { return n.lines, n.err }

type fakeReporter struct {
	mu      sync.Mutex
	agentID string
	reports []apiclient.Report
	err     error
}

func (r *fakeReporter) SubmitReport(_ context.Context, agentID string, rep apiclient.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agentID = agentID
	r.reports = append(r.reports, rep)
	return r.err
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

var (
	testHost = fakeHost{
		loads:  [3]float64{0.1, 0.2, 0.3},
		memory: sampler.Memory{Total: 8 << 30, Free: 2 << 30},
		uptime: 12345,
		ifaces: []string{"lo", "eth0"},
	}
	fixedNow = time.Date(2024, 3, 9, 23, 59, 30, 0, time.UTC)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCollectMetrics_WritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	a := &sampler.Agent{
		Host:   testHost,
		Log:    &sampler.DailyLog{Dir: dir},
		Logger: quietLogger(),
		Now:    func() time.Time { return fixedNow },
	}

	s, err := a.CollectMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, s.CPUUsage)

	raw, err := os.ReadFile(filepath.Join(dir, "metrics-2024-03-09.log"))
	require.NoError(t, err)
	line := string(raw)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.Contains(t, line, `"uptime":12345`)
	assert.Contains(t, line, `"cpuUsage":[0.1,0.2,0.3]`)
	assert.Contains(t, line, `"timestamp":"2024-03-09T23:59:30Z"`)
	assert.Contains(t, line, `"memoryUsage":{"total":8589934592,"free":2147483648}`)
}

func TestDailyLog_AppendsAndRollsByDay(t *testing.T) {
	dir := t.TempDir()
	l := &sampler.DailyLog{Dir: dir}

	day1 := sampler.Sample{Timestamp: fixedNow, CPUUsage: []float64{0, 0, 0}}
	day2 := sampler.Sample{Timestamp: fixedNow.Add(time.Minute), CPUUsage: []float64{0, 0, 0}}
	require.NoError(t, l.Append(day1))
	require.NoError(t, l.Append(day1))
	require.NoError(t, l.Append(day2))

	raw, err := os.ReadFile(filepath.Join(dir, "metrics-2024-03-09.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))

	assert.FileExists(t, filepath.Join(dir, "metrics-2024-03-10.log"))
}

func TestDailyLog_MissingDir(t *testing.T) {
	l := &sampler.DailyLog{Dir: filepath.Join(t.TempDir(), "absent")}
	assert.Error(t, l.Append(sampler.Sample{Timestamp: fixedNow}))
}

func TestCollect_HostError(t *testing.T) {
	_, err := sampler.Collect(context.Background(), fakeHost{err: errors.New("no procfs")}, fixedNow)
	assert.ErrorContains(t, err, "no procfs")
}

func TestScan_RecordsDevices(t *testing.T) {
	a := &sampler.Agent{
		Host:      testHost,
		Neighbors: fakeNeighbors{lines: []string{"? (192.168.1.1) at aa:bb:cc:dd:ee:ff on eth0"}},
		Logger:    quietLogger(),
	}
	require.NoError(t, a.Scan(context.Background()))
	assert.Equal(t, []string{"? (192.168.1.1) at aa:bb:cc:dd:ee:ff on eth0"}, a.Devices())

	a.Neighbors = fakeNeighbors{err: errors.New("arp: not found")}
	assert.Error(t, a.Scan(context.Background()))
	assert.Len(t, a.Devices(), 1, "failed scan keeps previous devices")
}

func TestCollectMetrics_Reports(t *testing.T) {
	rep := &fakeReporter{}
	a := &sampler.Agent{
		Host:      testHost,
		Neighbors: fakeNeighbors{lines: []string{"gateway"}},
		Reporter:  rep,
		AgentID:   "agent-1",
		Logger:    quietLogger(),
		Now:       func() time.Time { return fixedNow },
	}
	require.NoError(t, a.Scan(context.Background()))
	_, err := a.CollectMetrics(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, rep.count())
	assert.Equal(t, "agent-1", rep.agentID)
	assert.Equal(t, []string{"gateway"}, rep.reports[0].Devices)
	require.NotNil(t, rep.reports[0].Timestamp)
	assert.True(t, rep.reports[0].Timestamp.Equal(fixedNow))
}

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	rep := &fakeReporter{err: errors.New("server down")}
	a := &sampler.Agent{
		Host:            testHost,
		Neighbors:       fakeNeighbors{err: errors.New("arp missing")},
		Log:             &sampler.DailyLog{Dir: filepath.Join(t.TempDir(), "absent")},
		Reporter:        rep,
		AgentID:         "agent-1",
		ScanInterval:    5 * time.Millisecond,
		MetricsInterval: 5 * time.Millisecond,
		Logger:          quietLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return rep.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestARP_ReturnsNonEmptyLines(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	arp := sampler.ARP{Command: "/bin/sh", Args: []string{"-c", `printf 'first\n\nsecond\r\n'`}}
	lines, err := arp.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, lines)

	_, err = sampler.ARP{Command: "/bin/sh", Args: []string{"-c", "exit 3"}}.Scan(context.Background())
	assert.Error(t, err)
}

func TestScan_InterfaceErrorStillScansNeighbors(t *testing.T) {
	var buf bytes.Buffer
	a := &sampler.Agent{
		Host:      fakeHost{err: errors.New("netlink unavailable")},
		Neighbors: fakeNeighbors{lines: []string{"? (10.0.0.1) at aa:bb:cc:dd:ee:ff on eth0"}},
		Logger:    slog.New(slog.NewJSONHandler(&buf, nil)),
	}

	require.NoError(t, a.Scan(context.Background()))
	assert.Equal(t, []string{"? (10.0.0.1) at aa:bb:cc:dd:ee:ff on eth0"}, a.Devices())
	assert.Contains(t, buf.String(), "netlink unavailable")
	assert.Contains(t, buf.String(), "device detected")
}
