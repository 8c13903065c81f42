// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stratum/internal/catalog"
	"github.com/tomtom215/stratum/internal/config"
	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/scheduler"
	"github.com/tomtom215/stratum/internal/validation"
)

// Pinger reports backing-store health for the readiness probe.
// *table.Warehouse satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the operational HTTP endpoint of a daemon-mode process.
type Server struct {
	cfg     *config.ServerConfig
	runner  *scheduler.Runner
	catalog *catalog.Catalog
	pinger  Pinger
}

// NewServer wires the ops surface over the given runner and catalog.
func NewServer(cfg *config.ServerConfig, runner *scheduler.Runner, cat *catalog.Catalog, pinger Pinger) *Server {
	return &Server{cfg: cfg, runner: runner, catalog: cat, pinger: pinger}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", s.handleLive)
		r.Get("/health/ready", s.handleReady)
		r.Get("/models", s.handleModels)
		r.Get("/runs", s.handleRuns)
		r.Post("/runs", s.handleTrigger)
	})

	return r
}

// HTTPServer builds the net/http server for the supervisor to run.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      0, // run triggers may outlive any fixed write budget
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("warehouse unreachable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// modelInfo is the catalog listing entry.
type modelInfo struct {
	Name      string   `json:"name"`
	Layer     string   `json:"layer"`
	Strategy  string   `json:"strategy"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models, err := s.catalog.Sort()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]modelInfo, len(models))
	for i, m := range models {
		out[i] = modelInfo{
			Name:      m.Name,
			Layer:     string(m.Layer),
			Strategy:  m.Strategy.String(),
			DependsOn: m.DependsOn,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.History())
}

// triggerRequest is the ad-hoc cycle request body.
type triggerRequest struct {
	Models      []string `json:"models" validate:"dive,required"`
	FullRefresh bool     `json:"fullRefresh"`
}

// handleTrigger runs a cycle synchronously and returns its report. The
// caller owns retry timing; a concurrent cycle surfaces as per-model
// failures in the report rather than a queue.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.runner.Run(r.Context(), scheduler.RunOptions{
		Models:      req.Models,
		FullRefresh: req.FullRefresh,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogging logs each request at debug level with its outcome.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
