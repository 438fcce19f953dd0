package server

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Executable string         `json:"executable"`
	Endpoint   string         `json:"endpoint,omitempty"`
	Uptime     string         `json:"uptime,omitempty"`
	Watchdog   string         `json:"watchdog,omitempty"`
	Last       *AttemptStatus `json:"last,omitempty"`
}

// AttemptStatus summarizes the most recent attempt.
type AttemptStatus struct {
	ID       string    `json:"id"`
	Trigger  string    `json:"trigger"`
	State    string    `json:"state"`
	States   []string  `json:"states"`
	PID      int       `json:"pid,omitempty"`
	Found    int       `json:"found"`
	TempDir  string    `json:"temp_dir,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
}

// Handler returns the status router: /metrics, /live, /ready and /status.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/live", s.health.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.health.ReadyEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return recovery(logging(router, s), s)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.cfg.Load()
	resp := StatusResponse{
		Executable: cfg.Companion.Executable,
		Endpoint:   s.Endpoint(),
		Watchdog:   cfg.Watchdog.Schedule,
	}

	s.mu.Lock()
	if s.running {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	s.mu.Unlock()

	if last, ok := s.bridge.Last(); ok {
		st := &AttemptStatus{
			ID:      last.ID,
			Trigger: last.Trigger.String(),
			State:   last.State.String(),
			PID:     last.PID,
			Found:   last.Found,
			TempDir: last.TempDir.Path,
			Started: last.Started,
		}
		for _, state := range last.States {
			st.States = append(st.States, state.String())
		}
		for _, warn := range last.Warnings {
			st.Warnings = append(st.Warnings, warn.Error())
		}
		if last.Err != nil {
			st.Error = last.Err.Error()
		}
		resp.Last = st
	}

	sendJSON(w, http.StatusOK, resp)
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusWriter captures the response code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logging(next http.Handler, s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Probes and scrapes are too frequent to log at info.
		ev := s.logger.Debug()
		if wrapped.status >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	})
}

func recovery(next http.Handler, s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().
					Interface("error", err).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				sendJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
