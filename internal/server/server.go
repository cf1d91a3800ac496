// Package server exposes the roster over HTTP: a websocket feed for
// viewers and publishers, a plain POST endpoint for one-shot publishes and
// a healthcheck.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/locshare/locshare/internal/cache"
	"github.com/locshare/locshare/internal/parser"
	"github.com/locshare/locshare/internal/store"
	"github.com/locshare/locshare/pkg/core"
)

// Config holds server settings.
type Config struct {
	Addr   string
	Secret string
}

// Server serves the feed and publish endpoints for one store.
type Server struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger

	feedClients cache.SafeCounter

	httpServer *http.Server
}

func New(st *store.Store, cfg Config) *Server {
	s := &Server{
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Routes(),
	}
	return s
}

// Routes builds the HTTP mux. Exposed for httptest.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthcheck", s.handleHealthcheck)
	mux.HandleFunc("/feed", s.handleFeed)
	mux.HandleFunc("/publish", s.handlePublish)
	return mux
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Listening", "addr", s.cfg.Addr, "namespace", s.store.Namespace())
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"namespace":   s.store.Namespace(),
		"feedClients": s.feedClients.Value(),
	})
}

// handlePublish accepts one-shot publishes outside the websocket feed:
// a JSON LocationRecord, or a text publish line. DELETE withdraws an
// identifier.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		id := r.URL.Query().Get("identifier")
		if id == "" {
			http.Error(w, "identifier query param required", http.StatusBadRequest)
			return
		}
		s.store.Remove(core.Identifier(id))
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rec core.LocationRecord

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, fmt.Sprintf("invalid record: %v", err), http.StatusBadRequest)
			return
		}
		if rec.Identifier == "" {
			http.Error(w, "identifier required", http.StatusBadRequest)
			return
		}
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1024))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}
		parsed, err := parser.ParseLine(string(body))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid record: %v", err), http.StatusBadRequest)
			return
		}
		rec = parsed
	}

	s.store.Publish(rec)
	w.WriteHeader(http.StatusNoContent)
}
