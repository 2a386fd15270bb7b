package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.parser != nil {
		status.Components["parser"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	current := s.app.Current()
	status.Components["analysis"] = fmt.Sprintf("ok (%d files, %d violations, %d failed)", current.Files, len(current.Violations), len(current.Failures))

	if s.app.history != nil {
		status.Components["history"] = "ok"
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}

	if s.app.writeSpool != nil {
		pending, err := s.app.writeSpool.PendingCount(ctx)
		switch {
		case err != nil:
			status.Status = "degraded"
			status.Components["write_spool"] = "error: " + err.Error()
		case pending > 0:
			status.Components["write_spool"] = fmt.Sprintf("ok (%d pending)", pending)
		default:
			status.Components["write_spool"] = "ok"
		}
	}

	return status
}

// Probe adapts Check to the metrics server's health endpoint.
func (s *HealthService) Probe(ctx context.Context) (any, bool) {
	status := s.Check(ctx)
	return status, status.Status == "up"
}
