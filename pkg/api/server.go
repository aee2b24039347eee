// Package api exposes the control surface consumed by the web UI: status,
// source management, sync triggers, playback control and item listing.
// Rendering of the UI itself lives elsewhere; this is the JSON boundary.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lucvincent/photoloop/config"
	"github.com/lucvincent/photoloop/pkg/frame"
	"github.com/lucvincent/photoloop/pkg/library"
	"github.com/lucvincent/photoloop/pkg/schedule"
	"github.com/lucvincent/photoloop/util/log"
)

// Server is the local control-surface HTTP/WebSocket server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	upgrader   websocket.Upgrader

	lib   *library.Library
	sched *schedule.Engine
	frame *frame.Frame

	// ReloadConfig re-reads the config file; wired by the entry point.
	ReloadConfig func() error
	// ApplyConfig pushes an edited config into the running components.
	ApplyConfig func(*config.Config)

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
}

// NewServer creates the control server.
func NewServer(lib *library.Library, sched *schedule.Engine, f *frame.Frame) *Server {
	s := &Server{
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local control surface on the frame's own network.
				return true
			},
		},
		lib:     lib,
		sched:   sched,
		frame:   f,
		clients: make(map[*websocket.Conn]bool),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/items", s.handleListItems)
		r.Post("/sync", s.handleStartSync)
		r.Post("/control", s.handleControl)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleAddSource)
			r.Delete("/{index}", s.handleRemoveSource)
			r.Put("/{index}/enabled", s.handleSetSourceEnabled)
			r.Put("/{index}/name", s.handleSetSourceName)
		})
	})
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.router.Get("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the given port. Blocking.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	log.Printf("Control server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	// Reader loop only exists to detect close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.clientsMu.Lock()
				delete(s.clients, conn)
				s.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// BroadcastProgress pushes the sync progress to all connected clients so
// the UI does not have to poll during a sync.
func (s *Server) BroadcastProgress() {
	progress := s.lib.Store().Progress()

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		if err := client.WriteJSON(map[string]interface{}{
			"type":     "sync_progress",
			"progress": progress,
		}); err != nil {
			log.Printf("Failed to broadcast to client: %v", err)
			client.Close()
			delete(s.clients, client)
		}
	}
}
