package app

import (
	"context"
	"net/http"
	"time"

	"listinggen/cmd/internal/audit"
	listingapi "listinggen/cmd/internal/listing/api"
	"listinggen/cmd/internal/metrics"
	"listinggen/cmd/internal/realtime"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	ready audit.Pinger,
	m *metrics.Metrics,
	api *listingapi.Handler,
	ws *realtime.WSGateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && ready == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", m.Handler())

	if api != nil {
		api.Register(mux)
	}
	if ws != nil {
		mux.Handle("/ws", ws)
	}
}
