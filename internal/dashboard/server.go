// Package dashboard serves the workflow state over HTTP: a JSON API for
// specs, tasks and approvals, and a WebSocket feed of workflow changes.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valter-silva-au/spec-workflow/internal/core"
	"github.com/valter-silva-au/spec-workflow/internal/watch"
)

//go:embed static/*
var staticFS embed.FS

// Server is the dashboard HTTP server
type Server struct {
	specs     core.SpecManager
	tasks     core.TaskService
	approvals core.ApprovalManager
	changes   watch.Notifier
	logger    *slog.Logger

	hub    *Hub
	addr   string
	server *http.Server
}

// Config holds server configuration
type Config struct {
	Addr      string
	Specs     core.SpecManager
	Tasks     core.TaskService
	Approvals core.ApprovalManager
	// Changes feeds the WebSocket clients. It may be nil.
	Changes watch.Notifier
	Logger  *slog.Logger
}

// New creates a new dashboard server
func New(cfg Config) (*Server, error) {
	if cfg.Specs == nil || cfg.Tasks == nil || cfg.Approvals == nil {
		return nil, fmt.Errorf("dashboard: specs, tasks and approvals are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		specs:     cfg.Specs,
		tasks:     cfg.Tasks,
		approvals: cfg.Approvals,
		changes:   cfg.Changes,
		logger:    logger,
		hub:       newHub(),
		addr:      cfg.Addr,
	}, nil
}

// Handler returns the HTTP routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/specs", s.handleSpecs)
	mux.HandleFunc("GET /api/specs/{name}", s.handleSpec)
	mux.HandleFunc("POST /api/specs/{name}/tasks/{id}/status", s.handleTaskStatus)
	mux.HandleFunc("GET /api/steering", s.handleSteering)
	mux.HandleFunc("GET /api/approvals", s.handleApprovals)
	mux.HandleFunc("GET /api/approvals/{spec}/{id}", s.handleApproval)
	mux.HandleFunc("POST /api/approvals/{spec}/{id}/respond", s.handleRespond)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(static)))

	return mux
}

// Run serves until ctx is cancelled, then shuts the server down. If ready is
// non-nil it receives the bound address once the listener is open.
func (s *Server) Run(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.run(ctx)
	if s.changes != nil {
		go s.forwardChanges(ctx)
	}

	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	s.logger.Info("dashboard running", "url", "http://"+ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down dashboard: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Broadcast broadcasts an event to all connected clients
func (s *Server) Broadcast(eventType string, data any) {
	s.hub.publish(Event{Type: eventType, Data: data})
}

// forwardChanges relays workflow change notifications to WebSocket clients.
func (s *Server) forwardChanges(ctx context.Context) {
	events, cancel := s.changes.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Broadcast("change", ev)
		}
	}
}

// ============================================================================
// WebSocket Hub
// ============================================================================

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// Event is a WebSocket event
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// publish queues ev for delivery, dropping it when the queue is full.
func (h *Hub) publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// clientCount returns the number of registered clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
