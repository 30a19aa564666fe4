package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bjorn1004/route-finder/internal/buildinfo"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/printer"
	"github.com/bjorn1004/route-finder/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id} and its /iterations, /schedule and /metrics views.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Get run failed", err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case len(parts) == 2 && parts[1] == "iterations":
		s.iterations(w, r, id)
	case len(parts) == 2 && parts[1] == "schedule":
		s.schedule(w, r, id)
	case len(parts) == 2 && parts[1] == "metrics":
		if _, err := s.Store.GetRun(r.Context(), id); err != nil {
			s.storeProblem(w, r, "Get run failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runId": id, "workers": opt.GetMetrics(id)})
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

func (s *Server) iterations(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	worker := store.AllWorkers
	if v := q.Get("worker"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid worker", v, r.URL.Path)
			return
		}
		worker = n
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListIterations(r.Context(), id, worker, q.Get("cursor"), limit)
	if err != nil {
		s.storeProblem(w, r, "List iterations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// schedule returns the best plan as JSON, or in the submission format with ?format=text.
func (s *Server) schedule(w http.ResponseWriter, r *http.Request, id string) {
	sc, err := s.Store.GetSchedule(r.Context(), id)
	if err != nil {
		s.storeProblem(w, r, "Get schedule failed", err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", printer.FileName(0, sc.Score)))
		_ = printer.Write(w, sc.Entries)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// StatusHandler handles GET /v1/status with the latest snapshot of every worker.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Relay == nil {
		writeProblem(w, http.StatusServiceUnavailable, "No active run", "", r.URL.Path)
		return
	}
	items := s.Relay.Latest()
	if r.URL.Query().Get("routes") != "true" {
		for i := range items {
			items[i].Routes = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": s.Relay.RunID(), "items": items})
}

// ControlHandler handles POST /v1/control/pause and /v1/control/stop.
// Without ?worker= the action applies to every worker.
func (s *Server) ControlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Pool == nil {
		writeProblem(w, http.StatusServiceUnavailable, "No active run", "", r.URL.Path)
		return
	}
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/control/"), "/")
	if action != "pause" && action != "stop" {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown action "+action, r.URL.Path)
		return
	}
	worker := -1
	if v := r.URL.Query().Get("worker"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= s.Pool.Size() {
			writeProblem(w, http.StatusBadRequest, "Invalid worker", v, r.URL.Path)
			return
		}
		worker = n
	}
	accepted := true
	switch {
	case action == "pause" && worker < 0:
		s.Pool.TogglePauseAll()
	case action == "pause":
		accepted = s.Pool.TogglePause(worker)
	case worker < 0:
		s.Pool.StopAll()
	default:
		accepted = s.Pool.Stop(worker)
	}
	s.Log.Info("control requested", "action", action, "worker", worker, "accepted", accepted)
	if s.Relay != nil {
		s.Relay.Notify(StatusEvent{Type: EventControl, Worker: worker, At: time.Now().UTC()})
	}
	status := http.StatusAccepted
	if !accepted {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"action": action, "worker": worker, "accepted": accepted})
}

func (s *Server) storeProblem(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
