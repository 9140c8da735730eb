package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/precipqc/internal/store"
)

type Server struct {
	store *store.Store
	port  string
}

func NewServer(store *store.Store, port string) *Server {
	return &Server{store: store, port: port}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/coverage", s.handleAPICoverageList).Methods(http.MethodGet)
	r.HandleFunc("/api/coverage/{station}/{period}", s.handleAPICoverage).Methods(http.MethodGet)
	r.HandleFunc("/api/mismatches", s.handleAPIMismatches).Methods(http.MethodGet)
	r.HandleFunc("/api/periods/{kind:daily|hourly}/{station}", s.handleAPIPeriods).Methods(http.MethodGet)
	r.HandleFunc("/api/loads", s.handleAPILoads).Methods(http.MethodGet)
	return r
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string                    `json:"status"`
	MigrationVersion int                       `json:"migration_version"`
	Coverage         map[string]int            `json:"coverage"`
	Loads            []store.LoadHealthSummary `json:"loads"`
	Errors           []string                  `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{Status: "ok"}

	version, err := s.store.MigrationVersion()
	if err != nil {
		health.Errors = append(health.Errors, "migrations: "+err.Error())
	}
	health.MigrationVersion = version

	if health.Coverage, err = s.store.CoverageFlagCounts(ctx); err != nil {
		health.Errors = append(health.Errors, "coverage: "+err.Error())
	}

	if health.Loads, err = s.store.GetLoadHealth(ctx); err != nil {
		health.Errors = append(health.Errors, "loads: "+err.Error())
	}
	for _, l := range health.Loads {
		if l.FailedRuns > 0 {
			health.Status = "degraded"
		}
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}
