package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/queue"
	"github.com/parkmj/kbland-collector/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	csvBatchSize    = 500
)

type createComplexRequest struct {
	KBComplexID string `json:"kb_complex_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	LawdCode    string `json:"lawd_code"`
	TotalUnits  *int   `json:"total_units"`
}

func (s *Server) createComplex(w http.ResponseWriter, r *http.Request) {
	var req createComplexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.KBComplexID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "kb_complex_id and name are required")
		return
	}
	id, err := s.catalog.RegisterComplex(r.Context(), store.Complex{
		KBComplexID: req.KBComplexID,
		Name:        req.Name,
		Address:     req.Address,
		LawdCode:    req.LawdCode,
		TotalUnits:  req.TotalUnits,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "register complex failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) listComplexes(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	complexes, err := s.catalog.ListComplexes(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list complexes failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"complexes": complexes})
}

func (s *Server) getComplex(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	cx, err := s.catalog.GetComplex(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "complex not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load complex failed")
		return
	}
	areas, err := s.catalog.ListAreas(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list areas failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"complex": cx, "areas": areas})
}

type createAreaRequest struct {
	KBAreaCode  string  `json:"kb_area_code"`
	Name        string  `json:"name"`
	ExclusiveM2 float64 `json:"exclusive_m2"`
	SupplyM2    float64 `json:"supply_m2"`
}

func (s *Server) createArea(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	if _, err := s.catalog.GetComplex(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "complex not found")
		return
	}
	var req createAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.KBAreaCode == "" {
		writeError(w, http.StatusBadRequest, "kb_area_code is required")
		return
	}
	areaID, err := s.catalog.RegisterArea(r.Context(), store.Area{
		ComplexID:   id,
		KBAreaCode:  req.KBAreaCode,
		Name:        req.Name,
		ExclusiveM2: req.ExclusiveM2,
		SupplyM2:    req.SupplyM2,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "register area failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": areaID})
}

type triggerRunRequest struct {
	ComplexIDs  []int64  `json:"complex_ids"`
	JobTypes    []string `json:"job_types"`
	TriggeredBy string   `json:"triggered_by"`
}

var allJobTypes = []store.JobType{store.JobPrice, store.JobTransaction, store.JobListing}

// triggerRun creates an ad-hoc run covering the requested complexes and job
// types, records its tasks, and feeds them to the work queue.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	jobTypes, err := resolveJobTypes(req.JobTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "api"
	}
	run, status, err := s.launchRun(r.Context(), req.ComplexIDs, jobTypes, triggeredBy, nil)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      run.ID,
		"total_tasks": run.TotalTasks,
	})
}

// launchRun records a run for the given scope and feeds its tasks to the
// queue. Price jobs fan out per area type; transaction and listing jobs run
// once per complex. On error it returns the HTTP status the caller should
// send alongside the message.
func (s *Server) launchRun(ctx context.Context, complexIDs []int64, jobTypes []store.JobType, triggeredBy string, jobID *int64) (store.Run, int, error) {
	complexes, err := s.resolveComplexes(ctx, complexIDs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Run{}, http.StatusNotFound, err
		}
		return store.Run{}, http.StatusInternalServerError, errors.New("load complexes failed")
	}
	if len(complexes) == 0 {
		return store.Run{}, http.StatusBadRequest, errors.New("no complexes registered")
	}

	tasks, err := s.buildTasks(ctx, complexes, jobTypes)
	if err != nil {
		return store.Run{}, http.StatusInternalServerError, errors.New("build tasks failed")
	}
	if len(tasks) == 0 {
		return store.Run{}, http.StatusBadRequest, errors.New("no runnable tasks for the requested scope")
	}

	run := store.Run{
		ID:          uuid.New(),
		JobID:       jobID,
		StartedAt:   time.Now().UTC(),
		Status:      store.RunRunning,
		TotalTasks:  len(tasks),
		TriggeredBy: triggeredBy,
	}
	for i := range tasks {
		tasks[i].RunID = run.ID
	}

	if err := s.runs.CreateRun(ctx, run); err != nil {
		return store.Run{}, http.StatusInternalServerError, errors.New("create run failed")
	}
	if err := s.runs.CreateTasks(ctx, tasks); err != nil {
		return store.Run{}, http.StatusInternalServerError, errors.New("create tasks failed")
	}

	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, task := range tasks {
		item := queue.Item{
			TaskID:    task.ID,
			RunID:     run.ID,
			JobType:   task.JobType,
			ComplexID: task.ComplexID,
			AreaID:    task.AreaID,
		}
		if err := s.queue.Enqueue(queueCtx, item); err != nil {
			s.logger.Error("enqueue task failed",
				zap.String("run_id", run.ID.String()),
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			return store.Run{}, http.StatusInternalServerError, errors.New("enqueue tasks failed")
		}
	}
	return run, 0, nil
}

func resolveJobTypes(names []string) ([]store.JobType, error) {
	if len(names) == 0 {
		return allJobTypes, nil
	}
	out := make([]store.JobType, 0, len(names))
	for _, name := range names {
		jt := store.JobType(name)
		switch jt {
		case store.JobPrice, store.JobTransaction, store.JobListing:
			out = append(out, jt)
		default:
			return nil, fmt.Errorf("unknown job type %q", name)
		}
	}
	return out, nil
}

func (s *Server) resolveComplexes(ctx context.Context, ids []int64) ([]store.Complex, error) {
	if len(ids) == 0 {
		return s.catalog.ListComplexes(ctx, maxPageSize, 0)
	}
	out := make([]store.Complex, 0, len(ids))
	for _, id := range ids {
		cx, err := s.catalog.GetComplex(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("complex %d: %w", id, store.ErrNotFound)
			}
			return nil, err
		}
		out = append(out, cx)
	}
	return out, nil
}

func (s *Server) buildTasks(ctx context.Context, complexes []store.Complex, jobTypes []store.JobType) ([]store.Task, error) {
	var tasks []store.Task
	for _, cx := range complexes {
		for _, jt := range jobTypes {
			if jt == store.JobPrice {
				areas, err := s.catalog.ListAreas(ctx, cx.ID)
				if err != nil {
					return nil, err
				}
				if len(areas) == 0 {
					s.logger.Warn("skipping price job for complex without areas",
						zap.Int64("complex_id", cx.ID))
					continue
				}
				for _, area := range areas {
					tasks = append(tasks, store.Task{
						ID:        uuid.New(),
						JobType:   jt,
						ComplexID: cx.ID,
						AreaID:    area.ID,
						Status:    store.TaskPending,
					})
				}
				continue
			}
			tasks = append(tasks, store.Task{
				ID:        uuid.New(),
				JobType:   jt,
				ComplexID: cx.ID,
				Status:    store.TaskPending,
			})
		}
	}
	return tasks, nil
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	runs, err := s.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}
	tasks, err := s.runs.ListTasks(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tasks failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "tasks": tasks})
}

func (s *Server) listValuations(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	records, err := s.records.ListValuations(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list valuations failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valuations": records})
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	records, err := s.records.ListTransactions(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list transactions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	records, err := s.records.ListListings(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list listings failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": records})
}

// exportTransactionsCSV streams the complete transaction history for one
// complex as CSV, batching store reads.
func (s *Server) exportTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := complexID(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("transactions-%d.csv", id)))

	cw := csv.NewWriter(w)
	header := []string{"contract_date", "price", "exclusive_m2", "floor", "is_cancelled", "source"}
	if err := cw.Write(header); err != nil {
		s.logger.Error("csv header write failed", zap.Error(err))
		return
	}

	offset := 0
	for {
		batch, err := s.records.ListTransactions(r.Context(), id, csvBatchSize, offset)
		if err != nil {
			s.logger.Error("csv export read failed", zap.Int64("complex_id", id), zap.Error(err))
			return
		}
		for _, tx := range batch {
			floor := ""
			if tx.Floor != nil {
				floor = strconv.Itoa(*tx.Floor)
			}
			row := []string{
				tx.ContractDate,
				strconv.FormatInt(tx.Price, 10),
				strconv.FormatFloat(tx.ExclusiveM2, 'f', -1, 64),
				floor,
				strconv.FormatBool(tx.IsCancelled),
				tx.Source,
			}
			if err := cw.Write(row); err != nil {
				s.logger.Error("csv row write failed", zap.Error(err))
				return
			}
		}
		if len(batch) < csvBatchSize {
			break
		}
		offset += csvBatchSize
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("csv flush failed", zap.Error(err))
	}
}

func complexID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "complex_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid complex id")
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
