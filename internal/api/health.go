package api

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Instance  string           `json:"instance,omitempty"`
	Relay     string           `json:"relay"`
	Online    int              `json:"online"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Pinger is anything health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthDeps struct {
	Instance string
	Relay    string
	Online   func() int
	// Checks maps a name to its probe; nil probes are reported as not configured.
	Checks map[string]Pinger
}

func HealthHandler(deps HealthDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]Check, len(deps.Checks))
		healthy := true
		for name, p := range deps.Checks {
			if p == nil {
				checks[name] = Check{Status: "pass", Message: "not configured"}
				continue
			}
			start := time.Now()
			if err := p.Ping(ctx); err != nil {
				checks[name] = Check{Status: "fail", Message: "connection failed"}
				healthy = false
				continue
			}
			checks[name] = Check{Status: "pass", Latency: time.Since(start).String()}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		online := 0
		if deps.Online != nil {
			online = deps.Online()
		}

		JSON(w, code, HealthResponse{
			Status:    status,
			Version:   version,
			Instance:  deps.Instance,
			Relay:     deps.Relay,
			Online:    online,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
