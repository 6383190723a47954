package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphummel/sitewatch/internal/apiclient"
)

// Reporter posts samples to the server. *apiclient.Client satisfies it.
type Reporter interface {
	SubmitReport(ctx context.Context, agentID string, r apiclient.Report) error
}

// Agent runs the network scan and metrics loops.
type Agent struct {
	SiteID          string
	Host            Host
	Neighbors       Neighbors
	Log             *DailyLog
	ScanInterval    time.Duration
	MetricsInterval time.Duration

	// Reporter and AgentID are optional; samples are only logged locally
	// when Reporter is nil.
	Reporter Reporter
	AgentID  string

	Logger *slog.Logger
	Now    func() time.Time

	mu      sync.Mutex
	devices []string
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Devices returns the neighbour lines from the most recent successful scan.
func (a *Agent) Devices() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.devices...)
}

// Scan lists the network interfaces and neighbours, logging each line. The
// neighbour scan runs even when the interfaces cannot be listed.
func (a *Agent) Scan(ctx context.Context) error {
	log := a.logger()
	if ifaces, err := a.Host.Interfaces(ctx); err != nil {
		log.Error("listing network interfaces failed", "site_id", a.SiteID, "error", err)
	} else {
		log.Info("network interfaces", "site_id", a.SiteID, "interfaces", ifaces)
	}

	lines, err := a.Neighbors.Scan(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		log.Info("device detected", "site_id", a.SiteID, "device", line)
	}

	a.mu.Lock()
	a.devices = lines
	a.mu.Unlock()
	return nil
}

// CollectMetrics takes one sample, appends it to the daily log and reports it
// when a Reporter is set. A logging failure does not prevent the report.
func (a *Agent) CollectMetrics(ctx context.Context) (Sample, error) {
	s, err := Collect(ctx, a.Host, a.now())
	if err != nil {
		return Sample{}, err
	}

	var logErr error
	if a.Log != nil {
		logErr = a.Log.Append(s)
	}
	if a.Reporter != nil {
		ts := s.Timestamp
		err := a.Reporter.SubmitReport(ctx, a.AgentID, apiclient.Report{
			Timestamp: &ts,
			Metrics:   s,
			Devices:   a.Devices(),
		})
		if err != nil {
			return s, err
		}
	}
	return s, logErr
}

// Run scans once, then runs the scan and metrics loops until ctx is
// cancelled. Failures are logged and never end the loops.
func (a *Agent) Run(ctx context.Context) error {
	log := a.logger()
	log.Info("agent started", "site_id", a.SiteID,
		"scan_interval", a.ScanInterval.String(),
		"metrics_interval", a.MetricsInterval.String(),
		"reporting", a.Reporter != nil)

	if err := a.Scan(ctx); err != nil {
		log.Error("initial scan failed", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		every(ctx, a.ScanInterval, func() {
			if err := a.Scan(ctx); err != nil {
				log.Error("network scan failed", "error", err)
			}
		})
	}()
	go func() {
		defer wg.Done()
		every(ctx, a.MetricsInterval, func() {
			if _, err := a.CollectMetrics(ctx); err != nil {
				log.Error("metrics collection failed", "error", err)
			}
		})
	}()
	wg.Wait()

	log.Info("agent stopped")
	return nil
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
