package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ariana-dev/timeline-gateway/internal/metrics"
	"github.com/ariana-dev/timeline-gateway/internal/timeline"
	"github.com/ariana-dev/timeline-gateway/internal/trace"
)

type deps struct {
	cfg       config
	store     trace.Store
	writer    *trace.Writer
	wsHandler http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/webview", d.wsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /api/vaults", d.handleCreateVault)
	mux.HandleFunc("GET /api/vaults", d.handleListVaults)
	mux.HandleFunc("POST /api/vaults/{key}/traces", d.handlePushTraces)
	mux.HandleFunc("GET /api/vaults/{key}/traces", d.handleGetTraces)
	mux.HandleFunc("GET /api/vaults/{key}/timeline", d.handleGetTimeline)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	key, err := d.writer.NewVaultKey()
	if err != nil {
		slog.Error("create vault", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("vault created", "vault", key)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"vault_key": key})
}

func (d deps) handleListVaults(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", d.cfg.vaultListDefault)
	offset := queryInt(r, "offset", 0)
	vaults, total, err := d.store.ListVaults(limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"vaults": vaults, "total": total})
}

// handlePushTraces accepts a JSON array of trace records from the CLI and
// queues them for persistence. Webview notification happens downstream, in
// the writer's drain loop, once the batch has landed in the store.
func (d deps) handlePushTraces(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var records []trace.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(records) > d.cfg.ingestMaxRecords {
		http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)
		return
	}

	d.writer.Enqueue(key, records)

	metrics.IngestBatches.Inc()
	metrics.RecordsIngested.Add(float64(len(records)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "accepted", "records": len(records)})
}

func (d deps) handleGetTraces(w http.ResponseWriter, r *http.Request) {
	records, err := d.store.Records(r.PathValue("key"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"records": records})
}

// handleGetTimeline builds the vault's timeline on demand. Repeated ?root=
// parameters supply workspace roots for label shortening.
func (d deps) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	records, err := d.store.Records(r.PathValue("key"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	roots := r.URL.Query()["root"]
	start := time.Now()
	tl := timeline.Build(records, roots)
	metrics.ObserveBuild(time.Since(start), len(tl.Spans), len(tl.Families))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tl)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
