package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parkmj/kbland-collector/internal/store"
)

type createJobRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ComplexIDs  []int64  `json:"complex_ids"`
	JobTypes    []string `json:"job_types"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	jobTypes, err := resolveJobTypes(req.JobTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.jobs.CreateJob(r.Context(), store.JobDefinition{
		Name:        req.Name,
		Description: req.Description,
		ComplexIDs:  req.ComplexIDs,
		JobTypes:    jobTypes,
		Status:      store.JobActive,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create job failed")
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	jobs, err := s.jobs.ListJobs(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list jobs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

type updateJobRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	ComplexIDs  *[]int64  `json:"complex_ids"`
	JobTypes    *[]string `json:"job_types"`
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	upd := store.JobUpdate{
		Name:        req.Name,
		Description: req.Description,
		ComplexIDs:  req.ComplexIDs,
	}
	if req.JobTypes != nil {
		jobTypes, err := resolveJobTypes(*req.JobTypes)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.JobTypes = &jobTypes
	}
	job, err := s.jobs.UpdateJob(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "update job failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.setJobStatus(w, r, store.JobPaused)
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.setJobStatus(w, r, store.JobActive)
}

func (s *Server) setJobStatus(w http.ResponseWriter, r *http.Request, status store.JobStatus) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := s.jobs.SetJobStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "update job status failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

// runJob triggers a run from a saved job definition. Paused definitions
// refuse to run until resumed.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load job failed")
		return
	}
	if job.Status != store.JobActive {
		writeError(w, http.StatusBadRequest, "job is not active")
		return
	}
	jobTypes := job.JobTypes
	if len(jobTypes) == 0 {
		jobTypes = allJobTypes
	}
	run, status, err := s.launchRun(r.Context(), job.ComplexIDs, jobTypes, "job:"+job.Name, &job.ID)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      run.ID,
		"job_id":      job.ID,
		"total_tasks": run.TotalTasks,
	})
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "job_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}
