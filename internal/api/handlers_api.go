package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lox/precipqc/internal/models"
	"github.com/lox/precipqc/internal/store"
)

const (
	defaultMismatchLimit = 100
	maxMismatchLimit     = 1000
)

// handleAPICoverageList lists coverage rows. Without start_station every
// station is included; without end_period only start_period is.
func (s *Server) handleAPICoverageList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := store.Range{
		StartStation: q.Get("start_station"),
		EndStation:   q.Get("end_station"),
		StartPeriod:  q.Get("start_period"),
		EndPeriod:    q.Get("end_period"),
	}
	if rng.StartPeriod == "" {
		http.Error(w, "start_period is required", http.StatusBadRequest)
		return
	}
	if rng.StartStation == "" {
		rng.StartStation, rng.EndStation = "000000", "999999"
	}

	records, err := s.store.ListCoverage(r.Context(), rng)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.CoverageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAPICoverage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := s.store.GetCoverage(r.Context(), vars["station"], vars["period"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "no coverage for station-period", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAPIMismatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultMismatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxMismatchLimit)
	}

	ms, err := s.store.ListMismatches(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ms == nil {
		ms = []store.DetectedMismatch{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleAPIPeriods(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	periods, err := s.store.ListCompletePeriods(r.Context(), vars["kind"], vars["station"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if periods == nil {
		periods = []models.StationPeriodTotal{}
	}
	writeJSON(w, http.StatusOK, periods)
}

type loadsResponse struct {
	Summary []store.LoadHealthSummary `json:"summary"`
	Errors  []loadError               `json:"recent_errors"`
}

type loadError struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

func (s *Server) handleAPILoads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := s.store.GetLoadHealth(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	failed, err := s.store.GetRecentLoadErrors(ctx, 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := loadsResponse{Summary: summary, Errors: make([]loadError, 0, len(failed))}
	if resp.Summary == nil {
		resp.Summary = []store.LoadHealthSummary{}
	}
	for _, f := range failed {
		resp.Errors = append(resp.Errors, loadError{Source: f.Source, Target: f.Target, Message: f.ErrorMessage.String})
	}
	writeJSON(w, http.StatusOK, resp)
}
