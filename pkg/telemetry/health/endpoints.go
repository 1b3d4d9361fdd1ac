package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler serves GET /health.
//
//	{"status": "ok", "uptime_ms": 81234, "timestamp": "2026-05-04T09:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, r, http.StatusOK, c.Liveness())
	}
}

// ReadinessHandler serves GET /ready. It answers 503 only when a required
// check fails; a degraded relay still serves traffic.
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "history": {"status": "ok", "duration_ms": 1},
//	        "engine": {"status": "unhealthy", "message": "proxy server is not running", "optional": true, "duration_ms": 0}
//	    },
//	    "timestamp": "2026-05-04T09:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Readiness(r.Context())
		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		write(w, r, code, status)
	}
}

// VersionHandler serves GET /version.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, r, http.StatusOK, info)
	}
}

func write(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
