package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
)

// statusFor maps a queuectl core error to the HTTP status its category
// implies: guarded-refused -> 503, validation -> 400, conflict -> 409,
// not-found -> 404, anything else -> 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queuectl.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, queuectl.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, queuectl.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, queuectl.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeCoreErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

type enqueueRequest struct {
	Id         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries"`
	RunAfter   int64  `json:"run_after"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	j, err := s.core.Enqueue(r.Context(), req.Id, req.Command, req.MaxRetries, fromMillis(req.RunAfter))
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(j))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	state := job.Unknown
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, err := job.ParseState(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		state = parsed
	}

	jobs, err := s.core.List(r.Context(), state)
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTOs(jobs))
}

type statusResponse struct {
	JobSummary    map[string]int `json:"jobSummary"`
	WorkerSummary struct {
		Processing int `json:"processing"`
		Idle       int `json:"idle"`
		Live       int `json:"live"`
	} `json:"workerSummary"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.core.Status(r.Context())
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}

	resp := statusResponse{JobSummary: make(map[string]int, len(report.Jobs))}
	for state, count := range report.Jobs {
		resp.JobSummary[state.String()] = count
	}
	resp.WorkerSummary.Processing = report.Workers.Processing
	resp.WorkerSummary.Idle = report.Workers.Idle
	resp.WorkerSummary.Live = report.Workers.Live
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDLQList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.core.DLQList(r.Context())
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTOs(jobs))
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleDLQRetryOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.core.DLQRetryOne(r.Context(), id); err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "job " + id + " requeued"})
}

type dlqRetryAllResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

func (s *Server) handleDLQRetryAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.core.DLQRetryAll(r.Context())
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dlqRetryAllResponse{Message: "requeued all dead jobs", Count: count})
}

func (s *Server) handleConfigList(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.core.ConfigList(r.Context())
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.core.ConfigGet(r.Context(), key)
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: value})
}

type configSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	var req configSetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sanitized, err := s.core.ConfigSet(r.Context(), req.Key, req.Value)
	if err != nil {
		s.writeCoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{req.Key: sanitized})
}

// handleShutdown acknowledges the shutdown request and signals main to
// run the real teardown sequence: the handler itself must return before
// the listener closes, or the response would never reach the caller.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "shutdown initiated"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		s.requestShutdown()
	}()
}
