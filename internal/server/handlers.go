package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/delivery"
	"github.com/sells-group/lender-enrich/internal/ingest"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/store"
)

type recordRequest struct {
	Record model.LenderRecord `json:"record"`
}

type recordsRequest struct {
	Label   string               `json:"label" validate:"max=200"`
	County  string               `json:"county"`
	Records []model.LenderRecord `json:"records" validate:"required,min=1"`
}

type parseResponse struct {
	*ingest.Batch
	NeedsEnrichment []model.LenderRecord `json:"needs_enrichment"`
}

// handleParse reads a multipart "file" upload and returns the parsed list.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close() //nolint:errcheck

	batch, err := ingest.Parse(r.Context(), header.Filename, file)
	if err != nil {
		zap.L().Warn("server: parse upload failed", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	pending := batch.Pending()
	if pending == nil {
		pending = []model.LenderRecord{}
	}
	writeJSON(w, http.StatusOK, parseResponse{Batch: batch, NeedsEnrichment: pending})
}

// handleEnrich runs the search and scrape sequence for one record.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Record.ID == "" {
		req.Record.ID = uuid.NewString()
	}

	res := s.enricher.Enrich(r.Context(), req.Record)
	ev := res.Event()
	if s.deps.Hub != nil {
		s.deps.Hub.Event(ev)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record":  res.Record,
		"outcome": res.Outcome,
		"status":  res.Status,
		"event":   ev,
	})
}

// handleDNC screens one record against the do-not-call registry.
func (s *Server) handleDNC(w http.ResponseWriter, r *http.Request) {
	if !s.dncConfigured() {
		writeError(w, http.StatusServiceUnavailable, "DNC lookups are not configured")
		return
	}
	var req recordRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, result, ev := s.runner.ScreenRecord(r.Context(), req.Record)
	if ev != nil && s.deps.Hub != nil {
		s.deps.Hub.Event(*ev)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record": rec,
		"result": result,
		"event":  ev,
	})
}

// handleExport returns records as the CRM import CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if !s.decode(w, r, &req) {
		return
	}

	var buf bytes.Buffer
	if err := delivery.WriteCSV(&buf, req.Records); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+delivery.Filename(req.County)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleDeliver forwards a finished CSV to the upload webhook.
func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	if s.deps.Webhook == nil || !s.deps.Webhook.Configured() {
		writeError(w, http.StatusServiceUnavailable, "upload webhook is not configured")
		return
	}
	var up delivery.Upload
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(up); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	resp, err := s.deps.Webhook.Deliver(r.Context(), up)
	if err != nil {
		zap.L().Error("server: delivery failed", zap.String("filename", up.Filename), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   err.Error(),
			"details": "Failed to trigger upload workflow",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Upload triggered successfully",
		"response": resp,
	})
}

// handleCreateBatch queues a batch for the worker and returns its run id.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.ctx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	label := req.Label
	if label == "" {
		label = "api"
	}

	runID := uuid.NewString()
	if s.deps.Journal != nil {
		run, err := s.deps.Journal.CreateRun(r.Context(), label, len(req.Records))
		if err != nil {
			zap.L().Error("server: create run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create run")
			return
		}
		runID = run.ID
	}

	s.wg.Add(1)
	select {
	case s.queue <- batchJob{runID: runID, records: req.Records}:
	default:
		s.wg.Done()
		s.abandonRun(r.Context(), runID, len(req.Records))
		writeError(w, http.StatusServiceUnavailable, "batch queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"status": model.RunStatusQueued,
		"total":  len(req.Records),
	})
}

// abandonRun marks a run that never reached the worker as failed.
func (s *Server) abandonRun(ctx context.Context, runID string, total int) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.CompleteRun(ctx, runID, model.RunStatusFailed, model.RunCounts{Total: total}); err != nil {
		zap.L().Warn("server: abandon run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "run journal is not configured")
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.deps.Journal.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "run journal is not configured")
		return
	}
	id := chi.URLParam(r, "id")

	run, err := s.deps.Journal.GetRun(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcomes, err := s.deps.Journal.ListOutcomes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if outcomes == nil {
		outcomes = []model.RecordOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":      run,
		"outcomes": outcomes,
	})
}
