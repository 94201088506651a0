package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/oxygene76/fractaltree/internal/types"
	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/jobs"
	"github.com/oxygene76/fractaltree/pkg/utils"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the growth job service",
		Long: `Start an HTTP service that grows trees as background jobs.
Snapshots of running jobs are streamed over a websocket.

Example:
  fractaltree serve --port 8080 --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("workers") {
				cfg.Server.Workers, _ = cmd.Flags().GetInt("workers")
			}
			if cmd.Flags().Changed("max-jobs") {
				cfg.Server.MaxJobs, _ = cmd.Flags().GetInt("max-jobs")
			}

			service := NewGrowthService(cfg)
			return service.Start(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().Int("workers", 2, "worker goroutines")
	cmd.Flags().Int("max-jobs", 16, "maximum queued and running jobs")

	return cmd
}

// GrowthService exposes the job manager over HTTP
type GrowthService struct {
	config     *utils.Config
	jobManager *jobs.JobManager
	upgrader   websocket.Upgrader
	startedAt  time.Time
}

// NewGrowthService creates a service and starts its workers
func NewGrowthService(cfg *utils.Config) *GrowthService {
	return &GrowthService{
		config:     cfg,
		jobManager: jobs.NewJobManager(cfg.Server.MaxJobs, cfg.Server.Workers),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		startedAt: time.Now(),
	}
}

// Router builds the HTTP routes
func (gs *GrowthService) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/jobs", gs.handleSubmitJob).Methods("POST")
	api.HandleFunc("/jobs", gs.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", gs.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", gs.handleCancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/snapshot", gs.handleSnapshot).Methods("GET")
	api.HandleFunc("/presets", gs.handlePresets).Methods("GET")
	api.HandleFunc("/status", gs.handleStatus).Methods("GET")

	r.HandleFunc("/ws/jobs/{id}", gs.handleStream)

	r.Use(corsMiddleware)
	return r
}

// Start serves until ctx is done or an interrupt arrives
func (gs *GrowthService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", gs.config.Server.Port),
		Handler:           gs.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Growth service listening on :%d (%d workers, %d max jobs)",
		gs.config.Server.Port, gs.config.Server.Workers, gs.config.Server.MaxJobs)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		gs.jobManager.Shutdown()
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down growth service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	gs.jobManager.Shutdown()
	return err
}

// HTTP Handlers

func (gs *GrowthService) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	cfg := *utils.DefaultConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	job, err := gs.jobManager.SubmitJob(cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":        job,
		"status_url": fmt.Sprintf("/api/v1/jobs/%s", job.ID),
		"stream_url": fmt.Sprintf("/ws/jobs/%s", job.ID),
	})
}

func (gs *GrowthService) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list := gs.jobManager.ListJobs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

func (gs *GrowthService) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := gs.jobManager.GetJob(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (gs *GrowthService) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := gs.jobManager.CancelJob(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id":  id,
		"message": "Job cancellation requested",
	})
}

func (gs *GrowthService) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := gs.jobManager.LastSnapshot(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if snap == nil {
		http.Error(w, "No snapshot yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (gs *GrowthService) handlePresets(w http.ResponseWriter, r *http.Request) {
	type presetInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Planes      int    `json:"planes"`
	}
	var out []presetInfo
	for _, p := range colonization.Presets() {
		planes, err := p.Build()
		if err != nil {
			continue
		}
		out = append(out, presetInfo{Name: p.Name, Description: p.Description, Planes: len(planes)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (gs *GrowthService) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := make(map[jobs.JobStatus]int)
	for _, j := range gs.jobManager.ListJobs() {
		counts[j.Status]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "online",
		"version":  types.Version,
		"uptime":   time.Since(gs.startedAt).String(),
		"workers":  gs.config.Server.Workers,
		"max_jobs": gs.config.Server.MaxJobs,
		"jobs":     counts,
	})
}

// handleStream upgrades to a websocket and forwards snapshots of one job
// until it finishes or the client goes away
func (gs *GrowthService) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snapshots, unsubscribe, err := gs.jobManager.Subscribe(id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unsubscribe()

	conn, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for job %s: %v", id, err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-snapshots:
			if !ok {
				if job, err := gs.jobManager.GetJob(id); err == nil {
					_ = conn.WriteJSON(map[string]interface{}{"kind": "end", "job": job})
				}
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(map[string]interface{}{"kind": "snapshot", "snapshot": snap}); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps registered error codes to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrJobFinished):
		status = http.StatusConflict
	case errors.Is(err, colonization.ErrInvalidOptions), errors.Is(err, colonization.ErrInvalidEnvelope):
		status = http.StatusBadRequest
	}

	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	writeJSON(w, status, map[string]interface{}{
		"error":     err.Error(),
		"codespace": codespace,
		"code":      code,
	})
}

// corsMiddleware enables CORS for web client integration
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
