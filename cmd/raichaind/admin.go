package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raichain/bootstrap"
	"raichain/callback"
	"raichain/election"
	"raichain/metrics"
	"raichain/pkg/config"
	"raichain/process"
)

// statusReport is the JSON body for GET /status (spec §4.9 "Status CLI").
type statusReport struct {
	AdmitQueueDepth  int  `json:"admit_queue_depth"`
	ForkQueueDepth   int  `json:"fork_queue_depth"`
	AdmitQueueDrops  int64 `json:"admit_queue_drops"`
	ActiveElections  int  `json:"active_elections"`
	BootstrapRunning bool `json:"bootstrap_running"`
}

// newAdminRouter builds the chi router serving /metrics, /healthz, /status
// and the bootstrap_restart admin action (spec §4.8 "wallet HTTP API +
// /metrics"; the status/admin surface this CLI drives over loopback).
func newAdminRouter(m *metrics.Handle, proc *process.Processor, mgr *election.Manager, bsClient *bootstrap.Client, cb *callback.Broadcaster, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Server.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	if cfg.Callback.WSEnabled && cb != nil {
		r.Get("/ws/callback", cb.ServeWS)
	}
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		report := statusReport{
			AdmitQueueDepth:  proc.QueueDepth(),
			ForkQueueDepth:   proc.ForkQueueDepth(),
			AdmitQueueDrops:  proc.Drops(),
			ActiveElections:  mgr.ActiveCount(),
			BootstrapRunning: bsClient != nil,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})
	r.Post("/admin/bootstrap_restart", func(w http.ResponseWriter, r *http.Request) {
		if bsClient == nil {
			http.Error(w, "bootstrap client not configured", http.StatusServiceUnavailable)
			return
		}
		bsClient.Restart()
		w.WriteHeader(http.StatusAccepted)
	})
	return r
}
