// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/crestlinecoaching/buildflow/internal/batch"
	"github.com/crestlinecoaching/buildflow/internal/chart"
	"github.com/crestlinecoaching/buildflow/internal/common"
	"github.com/crestlinecoaching/buildflow/internal/config"
	"github.com/crestlinecoaching/buildflow/internal/docgen"
	"github.com/crestlinecoaching/buildflow/internal/ledger"
	"github.com/crestlinecoaching/buildflow/internal/notify"
)

// Server is the admin HTTP surface: batch triggering, ledger inspection,
// the payment webhook and the document/chart helpers.
type Server struct {
	router   chi.Router
	cfg      config.Config
	runner   *batch.Runner
	tracker  *ledger.Tracker
	notifier notify.Notifier
	docs     *docgen.Generator
}

// NewServer wires the admin server.
func NewServer(cfg config.Config, runner *batch.Runner, tracker *ledger.Tracker, notifier notify.Notifier) (*Server, error) {
	if runner == nil || tracker == nil {
		return nil, fmt.Errorf("runner and tracker required")
	}
	docs, err := docgen.New()
	if err != nil {
		return nil, err
	}
	srv := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		runner:   runner,
		tracker:  tracker,
		notifier: notifier,
		docs:     docs,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("api: request", "method", r.Method, "path", r.URL.Path,
				"duration", time.Since(start))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Post("/v1/run", s.handleRun)
	s.router.Get("/v1/ledger/stats", s.handleStats)
	s.router.Post("/v1/ledger/reset", s.handleReset)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Post("/v1/webhooks/stripe", s.handleStripeWebhook)
	s.router.Get("/v1/documents", s.handleDocumentNames)
	s.router.Post("/v1/documents", s.handleDocument)
	s.router.Post("/v1/charts", s.handleChart)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Run(r.Context())
	if errors.Is(err, batch.ErrRunActive) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tracker.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, errors.New("pass confirm=true to reset the ledger"))
		return
	}
	if err := s.tracker.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.LogEntries())
}

func (s *Server) handleDocumentNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"templates": s.docs.Names()})
}

type documentRequest struct {
	Template string       `json:"template"`
	Fields   docgen.Fields `json:"fields"`
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc, err := s.docs.Generate(strings.TrimSpace(req.Template), req.Fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	series, err := chart.ParseCSV(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	svg, err := chart.RenderSVG(series)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, svg)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
