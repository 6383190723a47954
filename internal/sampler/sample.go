// Package sampler collects host metrics and network neighbours for the
// monitoring agent, writes them to daily log files and optionally reports
// them to the server.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Memory is total and free physical memory in bytes.
type Memory struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
}

// Sample is one metrics reading. CPUUsage holds the 1, 5 and 15 minute load
// averages.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    []float64 `json:"cpuUsage"`
	MemoryUsage Memory    `json:"memoryUsage"`
	Uptime      uint64    `json:"uptime"`
}

// Host reads system information.
type Host interface {
	LoadAverages(ctx context.Context) ([3]float64, error)
	Memory(ctx context.Context) (Memory, error)
	Uptime(ctx context.Context) (uint64, error)
	Interfaces(ctx context.Context) ([]string, error)
}

// SystemHost is the Host backed by gopsutil.
type SystemHost struct{}

func (SystemHost) LoadAverages(ctx context.Context) ([3]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{avg.Load1, avg.Load5, avg.Load15}, nil
}

func (SystemHost) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, err
	}
	return Memory{Total: vm.Total, Free: vm.Free}, nil
}

func (SystemHost) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}

func (SystemHost) Interfaces(ctx context.Context) ([]string, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, iface.Name)
	}
	return names, nil
}

// Collect reads one Sample from h, stamped with at in UTC.
func Collect(ctx context.Context, h Host, at time.Time) (Sample, error) {
	loads, err := h.LoadAverages(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("load averages: %w", err)
	}
	memory, err := h.Memory(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("memory: %w", err)
	}
	uptime, err := h.Uptime(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("uptime: %w", err)
	}
	return Sample{
		Timestamp:   at.UTC(),
		CPUUsage:    loads[:],
		MemoryUsage: memory,
		Uptime:      uptime,
	}, nil
}
