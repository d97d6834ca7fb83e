// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api exposes the control-plane HTTP/WebSocket surface: status,
// blocklist, and whitelist endpoints plus a live attack-feed stream.
// Grounded on the teacher's internal/api.Server (gorilla/mux routing,
// ServerConfig's Slowloris-hardened timeout defaults) and generalized
// from the teacher's much larger handler set down to this daemon's
// read-mostly status surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ddosd/internal/logging"
)

// errorResponse is the wire shape for a failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// ServerConfig holds HTTP server hardening knobs, carried verbatim from
// the teacher's convention.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultServerConfig returns the teacher's secure defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}

// StatusProvider supplies the data backing /api/v1/status.
type StatusProvider interface {
	Status() StatusResponse
}

// StatusResponse is the daemon's point-in-time health/activity summary.
type StatusResponse struct {
	FlowsActive      int               `json:"flows_active"`
	FlowsObserved    uint64            `json:"flows_observed"`
	AttacksDetected  uint64            `json:"attacks_detected"`
	AttacksByType    map[string]uint64 `json:"attacks_by_type"`
	BlocksActive     int               `json:"blocks_active"`
	FalsePositives   uint64            `json:"false_positives"`
	Uptime           time.Duration     `json:"uptime_ns"`
}

// BlocklistProvider supplies /api/v1/blocklist: listing, manual blocking
// (POST), and manual unblocking (DELETE).
type BlocklistProvider interface {
	ListBlocked() []BlockedEntry
	Block(addr, attackType string) error
	Unblock(addr string) error
}

// BlockRequest is the POST /api/v1/blocklist request body for a manual
// block.
type BlockRequest struct {
	Addr       string `json:"addr"`
	AttackType string `json:"attack_type"`
}

// WhitelistProvider supplies /api/v1/whitelist: reading the current
// entries (GET) and replacing them wholesale (PUT).
type WhitelistProvider interface {
	ListWhitelist() []string
	SetWhitelist(entries []string) error
}

// BlockedEntry is one blocklist row in the API's wire shape.
type BlockedEntry struct {
	Addr       string    `json:"addr"`
	AttackType string    `json:"attack_type"`
	BlockedAt  time.Time `json:"blocked_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	BlockCount int       `json:"block_count"`
}

// Server is the daemon's control-plane HTTP server.
type Server struct {
	cfg       ServerConfig
	log       *logging.Logger
	router    *mux.Router
	status    StatusProvider
	blocklist BlocklistProvider
	whitelist WhitelistProvider
	hub       *streamHub
	httpSrv   *http.Server
}

// NewServer constructs a Server with routes registered.
func NewServer(cfg ServerConfig, status StatusProvider, blocklist BlocklistProvider, whitelist WhitelistProvider, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	s := &Server{
		cfg:       cfg,
		log:       log.WithComponent("api"),
		router:    mux.NewRouter(),
		status:    status,
		blocklist: blocklist,
		whitelist: whitelist,
		hub:       newStreamHub(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/blocklist", s.handleBlocklist).Methods(http.MethodGet)
	api.HandleFunc("/blocklist", s.handleBlockAddr).Methods(http.MethodPost)
	api.HandleFunc("/blocklist/{addr}", s.handleUnblockAddr).Methods(http.MethodDelete)
	api.HandleFunc("/whitelist", s.handleGetWhitelist).Methods(http.MethodGet)
	api.HandleFunc("/whitelist", s.handlePutWhitelist).Methods(http.MethodPut)
	api.HandleFunc("/stream", s.hub.handleWebSocket)
}

// Broadcast pushes an event to every connected /api/v1/stream client.
func (s *Server) Broadcast(event any) {
	s.hub.broadcast(event)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status.Status())
}

func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.blocklist.ListBlocked())
}

func (s *Server) handleBlockAddr(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Addr == "" {
		writeError(w, http.StatusBadRequest, "addr is required")
		return
	}
	if err := s.blocklist.Block(req.Addr, req.AttackType); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUnblockAddr(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if err := s.blocklist.Unblock(addr); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWhitelist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.whitelist.ListWhitelist())
}

func (s *Server) handlePutWhitelist(w http.ResponseWriter, r *http.Request) {
	var entries []string
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of IPs/CIDRs")
		return
	}
	if err := s.whitelist.SetWhitelist(entries); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// ListenAndServe starts the HTTP server on addr, applying the
// Slowloris-hardened ServerConfig.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and closes stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
