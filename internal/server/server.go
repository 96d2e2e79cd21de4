// Package server exposes the enrichment pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/delivery"
	"github.com/sells-group/lender-enrich/internal/events"
	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/pipeline"
	"github.com/sells-group/lender-enrich/internal/store"
)

const (
	// maxUploadBytes caps multipart list uploads.
	maxUploadBytes = 32 << 20
	// maxQueuedBatches bounds batches waiting for the worker.
	maxQueuedBatches = 64
)

// Journal is the run store the API writes batches to and reads them from.
type Journal interface {
	pipeline.Journal
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]model.RecordOutcome, error)
}

// Deps are the components the API serves. Checker, Journal, Hub, Webhook
// and Metrics are optional.
type Deps struct {
	Enricher pipeline.Enricher
	Checker  pipeline.DNCChecker
	Journal  Journal
	Hub      *events.Hub
	Webhook  *delivery.Webhook
	Metrics  *metrics.Metrics
	SkipDNC  bool
}

// Server handles API requests. Batches are queued and run one at a time on
// the context passed to New, so shutdown stops them between records.
// Single-record requests share the batch worker's lock: only one record is
// enriched or screened at any moment.
type Server struct {
	deps     Deps
	enricher pipeline.Enricher
	runner   *pipeline.BatchRunner
	validate *validator.Validate

	ctx   context.Context
	work  sync.Mutex
	queue chan batchJob
	wg    sync.WaitGroup
}

type batchJob struct {
	runID   string
	records []model.LenderRecord
}

// New creates a Server and starts its batch worker.
func New(ctx context.Context, d Deps) *Server {
	s := &Server{
		deps:     d,
		validate: validator.New(),
		ctx:      ctx,
		queue:    make(chan batchJob, maxQueuedBatches),
	}
	s.enricher = serialEnricher{mu: &s.work, next: d.Enricher}

	var checker pipeline.DNCChecker
	if d.Checker != nil {
		checker = serialChecker{mu: &s.work, next: d.Checker}
	}
	opts := []pipeline.BatchOption{pipeline.WithSkipDNC(d.SkipDNC)}
	if d.Journal != nil {
		opts = append(opts, pipeline.WithJournal(d.Journal))
	}
	s.runner = pipeline.NewBatchRunner(s.enricher, checker, opts...)

	go s.runQueue()
	return s
}

// Wait blocks until every queued batch has run.
func (s *Server) Wait() {
	s.wg.Wait()
}

// runQueue executes batches in the order they were accepted.
func (s *Server) runQueue() {
	for job := range s.queue {
		s.runner.Execute(s.ctx, job.runID, job.records, s.reporter(job.runID))
		s.wg.Done()
	}
}

// dncConfigured reports whether registry lookups can succeed.
func (s *Server) dncConfigured() bool {
	if s.deps.Checker == nil {
		return false
	}
	if c, ok := s.deps.Checker.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

type serialEnricher struct {
	mu   *sync.Mutex
	next pipeline.Enricher
}

func (e serialEnricher) Enrich(ctx context.Context, rec model.LenderRecord) pipeline.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next.Enrich(ctx, rec)
}

type serialChecker struct {
	mu   *sync.Mutex
	next pipeline.DNCChecker
}

func (c serialChecker) Check(ctx context.Context, phone string) model.DNCResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next.Check(ctx, phone)
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/dnc", s.handleDNC)
		r.Post("/export", s.handleExport)
		r.Post("/deliver", s.handleDeliver)

		r.Post("/batches", s.handleCreateBatch)
		r.Get("/batches", s.handleListBatches)
		r.Get("/batches/{id}", s.handleGetBatch)
	})

	if s.deps.Hub != nil {
		r.Handle("/ws/progress", s.deps.Hub)
	}
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reporter returns where a run's events go.
func (s *Server) reporter(runID string) pipeline.Reporter {
	if s.deps.Hub == nil {
		return pipeline.LogReporter{}
	}
	return pipeline.MultiReporter{pipeline.LogReporter{}, s.deps.Hub.ForRun(runID)}
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
