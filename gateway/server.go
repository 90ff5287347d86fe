// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
)

const maxRequestSize = 1 << 20

// Backend answers reencryption requests. Errors wrapping ErrBadRequest,
// ErrUnauthorized or ErrNotFound map to 400, 403 and 404.
type Backend interface {
	Reencrypt(ctx context.Context, req *ReencryptRequest) ([]Share, error)
}

// Server exposes a Backend as POST /reencrypt.
type Server struct {
	backend Backend
	log     log.Logger
	metrics *serverMetrics
}

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

func newServerMetrics(reg prometheus.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fhevm",
			Subsystem: "gateway",
			Name:      "reencrypt_requests_total",
			Help:      "Reencryption requests by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fhevm",
			Subsystem: "gateway",
			Name:      "reencrypt_duration_seconds",
			Help:      "Time spent answering reencryption requests",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// NewServer creates a server. reg may be nil to skip metric registration.
func NewServer(backend Backend, logger log.Logger, reg prometheus.Registerer) (*Server, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m, err := newServerMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Server{
		backend: backend,
		log:     logger,
		metrics: m,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != reencryptPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, &ReencryptResponse{Status: StatusFailure, Error: "method not allowed"})
		return
	}

	start := time.Now()
	defer func() { s.metrics.duration.Observe(time.Since(start).Seconds()) }()

	var req ReencryptRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, "bad_request", http.StatusBadRequest, err)
		return
	}

	shares, err := s.backend.Reencrypt(r.Context(), &req)
	switch {
	case err == nil:
	case errors.Is(err, ErrBadRequest):
		s.fail(w, "bad_request", http.StatusBadRequest, err)
		return
	case errors.Is(err, ErrUnauthorized):
		s.fail(w, "unauthorized", http.StatusForbidden, err)
		return
	case errors.Is(err, ErrNotFound):
		s.fail(w, "not_found", http.StatusNotFound, err)
		return
	default:
		s.log.Error("reencryption failed", "handle", req.CiphertextHandle, "err", err)
		s.fail(w, "error", http.StatusInternalServerError, err)
		return
	}

	s.metrics.requests.WithLabelValues("success").Inc()
	s.log.Debug("reencryption served", "handle", req.CiphertextHandle, "user", req.ClientAddress, "shares", len(shares))
	writeJSON(w, http.StatusOK, &ReencryptResponse{Status: StatusSuccess, Response: shares})
}

func (s *Server) fail(w http.ResponseWriter, outcome string, code int, err error) {
	s.metrics.requests.WithLabelValues(outcome).Inc()
	writeJSON(w, code, &ReencryptResponse{Status: StatusFailure, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
