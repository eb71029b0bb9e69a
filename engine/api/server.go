// Package api serves the worker's local operator surface: health, cached
// analysis results, prometheus metrics and (optionally) a manual analysis
// endpoint for testing. It exposes no raw genotype data and binds to
// localhost unless configured otherwise.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// ResultStore is the read side of the processor's result cache.
type ResultStore interface {
	Get(id string) (*genetics.Result, bool)
	Len() int
}

// Analyzer runs a manual analysis for the testing endpoint.
type Analyzer interface {
	Analyze(user1Raw string, user2Raw string) (*genetics.Result, error)
}

type Config struct {
	ListenAddr string
	// EnableAnalyze exposes POST /analyze, which runs the engine over
	// caller-supplied payloads. Intended for testing deployments only.
	EnableAnalyze bool
}

const shutdownTimeout = 5 * time.Second

// Server is the HTTP worker.
type Server struct {
	log      zerolog.Logger
	cfg      Config
	contract string
	results  ResultStore
	analyzer Analyzer
	srv      *http.Server
}

func NewServer(
	log zerolog.Logger,
	cfg Config,
	contractAddress string,
	results ResultStore,
	analyzer Analyzer,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		log:      log.With().Str("component", "api_server").Logger(),
		cfg:      cfg,
		contract: contractAddress,
		results:  results,
		analyzer: analyzer,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/result/{id:[0-9]+}", s.result).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if cfg.EnableAnalyze {
		router.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the configured handler, for tests.
func (s *Server) Router() http.Handler {
	return s.srv.Handler
}

func (s *Server) Name() string {
	return "api_server"
}

// Run serves the API until ctx is cancelled, then drains connections within
// the shutdown timeout. A failure to bind the listen address is an error;
// so is the server failing while running.
func (s *Server) Run(ctx context.Context, ready func()) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.log.Info().Str("address", listener.Addr().String()).Msg("status api listening")
	ready()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("api server did not shut down cleanly")
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "genetic-analysis",
		"contract":       s.contract,
		"results_cached": s.results.Len(),
	})
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, ok := s.results.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"status":  "not_found",
			"message": "no result for request id " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"request_id": id,
		"result":     result,
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		User1SNP string `json:"user1_snp"`
		User2SNP string `json:"user2_snp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"status":  "error",
			"message": "invalid request body",
		})
		return
	}

	result, err := s.analyzer.Analyze(payload.User1SNP, payload.User2SNP)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
