// Package health provides the relay's liveness, readiness and version
// endpoints.
//
//	checker := health.New(2*time.Second, nil)
//	checker.Register("history", store.Ping)
//	checker.RegisterOptional("engine", func(ctx context.Context) error {
//	    if !engine.IsRunning() {
//	        return errors.New("proxy server is not running")
//	    }
//	    return nil
//	})
//
//	mux.HandleFunc("GET /health", checker.LivenessHandler())
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
//
// Readiness is "ready" when every check passes, "degraded" when only
// optional checks fail and "unhealthy" (503) when a required check fails.
// Checks run concurrently, each bounded by the checker's timeout.
package health
