package daemon

import (
	"os"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/upload"
	"git.home.luguber.info/inful/prnpusher/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// A cycle is considered overdue after this many intervals without a report.
const staleIntervals = 3

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime,omitempty"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks. A stopped daemon is
// unhealthy; any failing check otherwise degrades the result.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	now := time.Now()
	checks := []HealthCheck{
		d.checkRunning(now),
		d.checkFolder(now),
		d.checkLastScan(now),
		d.checkBackend(now),
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		if c.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
			break
		}
		if c.Status != HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
	}

	resp := &HealthResponse{
		Status:    overall,
		Timestamp: now,
		Version:   version.Version,
		Checks:    checks,
	}
	if st := d.Status(); st.Running {
		resp.Uptime = st.Uptime
	}
	return resp
}

func (d *Daemon) checkRunning(now time.Time) HealthCheck {
	c := HealthCheck{Name: "scheduler", Status: HealthStatusHealthy, LastChecked: now}
	if !d.Running() {
		c.Status = HealthStatusUnhealthy
		c.Message = "scan timer is stopped"
	}
	return c
}

func (d *Daemon) checkFolder(now time.Time) HealthCheck {
	c := HealthCheck{Name: "folder", Status: HealthStatusHealthy, LastChecked: now}
	folder := d.Config().Input.Folder
	if folder == "" {
		c.Status = HealthStatusDegraded
		c.Message = "no input folder configured"
		return c
	}
	info, err := os.Stat(folder)
	switch {
	case err != nil:
		c.Status = HealthStatusDegraded
		c.Message = err.Error()
	case !info.IsDir():
		c.Status = HealthStatusDegraded
		c.Message = folder + " is not a directory"
	}
	return c
}

func (d *Daemon) checkLastScan(now time.Time) HealthCheck {
	c := HealthCheck{Name: "last_scan", Status: HealthStatusHealthy, LastChecked: now}
	report, ok := d.activity.lastScan()
	if !ok {
		c.Message = "no scan completed yet"
		return c
	}
	limit := staleIntervals * d.Config().ScanInterval()
	if age := now.Sub(report.Finished()); age > limit {
		c.Status = HealthStatusDegraded
		c.Message = "last scan finished " + age.Round(time.Second).String() + " ago"
		return c
	}
	if report.Failed > 0 {
		c.Status = HealthStatusDegraded
		c.Message = "uploads failed in the last scan"
	}
	return c
}

func (d *Daemon) checkBackend(now time.Time) HealthCheck {
	c := HealthCheck{Name: "backend", Status: HealthStatusHealthy, LastChecked: now}
	b := d.Config().Backend
	switch {
	case !upload.Configured(b):
		c.Status = HealthStatusDegraded
		c.Message = "backend url is not set, new data is held back"
	case b.Token == "":
		c.Status = HealthStatusDegraded
		c.Message = "backend token is not set, uploads are dry runs"
	}
	return c
}
