package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/raingauge/gauge"
	"i4.energy/across/raingauge/metrics"
)

// Server handles incoming HTTP requests for reading and controlling the
// configured rain gauge
type Server struct {
	Logger  *slog.Logger
	Station *Station
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /measurement", s.handleMeasurement)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /restart", s.handleRestart)
	metrics.Register(mux)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code gauge.Code, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string     `json:"message"`
		Code    gauge.Code `json:"code,omitempty"`
	}
	resp := ErrorResponse{Message: message, Code: code}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug("Failed to encode response", "error", err)
	}
}

// handleMeasurement returns the last committed reading
func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	reading, err := s.Station.Latest()
	if errors.Is(err, ErrNoMeasurement) {
		s.sendError(w, err.Error(), gauge.CodeOK, http.StatusServiceUnavailable)
		return
	}
	s.sendJSON(w, reading, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.Station.Status(), http.StatusOK)
}

// handleReset clears the sensor's total accumulation
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Station.ResetAccumulation(r.Context()); err != nil {
		s.Logger.Error("Failed to reset accumulation", "error", err)
		s.sendError(w, err.Error(), gauge.CodeOf(err), http.StatusBadGateway)
		return
	}
	s.Logger.Info("Accumulation reset")
	w.WriteHeader(http.StatusNoContent)
}

// handleRestart reboots the sensor and reconfigures it
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.Station.Restart(r.Context()); err != nil {
		s.Logger.Error("Failed to restart gauge", "error", err)
		s.sendError(w, err.Error(), gauge.CodeOf(err), http.StatusBadGateway)
		return
	}
	s.Logger.Info("Gauge restarted")
	w.WriteHeader(http.StatusNoContent)
}
