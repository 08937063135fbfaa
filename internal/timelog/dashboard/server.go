// Package dashboard provides a real-time WebSocket feed of engine events.
//
// Unlike a general-purpose message bus, the dashboard has exactly one
// producer (the engine's event emitter) and one payload shape
// (events.Event), so client bookkeeping is organized as a single hub
// goroutine that owns the client set — connects and disconnects are just
// more messages into its select loop, rather than a shared map guarded by
// a mutex that every handler touches directly.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
)

// frame is the JSON shape sent to clients: the event as published, plus
// the time the hub actually broadcast it (which can trail the event's own
// occurrence by however long it sat in the broadcast channel).
type frame struct {
	events.Event
	BroadcastAt time.Time `json:"broadcastAt"`
}

// client is one connected websocket observer. send is written to only by
// the hub goroutine and read only by writePump, so it needs no locking of
// its own.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server runs an HTTP+websocket listener and a hub goroutine that fans
// out published events to every connected client.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	register   chan *client
	unregister chan *client
	broadcast  chan events.Event
	clients    map[*client]struct{}
	clientN    atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	Addr   string // listen address, e.g. ":8080"; default ":8080"
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{Addr: ":8080", Logger: log.Default()}
}

// NewServer creates a dashboard server that will listen on config.Addr
// once Start is called.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       config.Addr,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan events.Event, 100),
		clients:    make(map[*client]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		logger:     config.Logger,
	}
}

// Start binds the listener and runs the hub and HTTP server in the
// background. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.run()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("dashboard listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server error: %v", err)
		}
	}()

	return nil
}

// Stop signals the hub and HTTP server to shut down and waits for both.
func (s *Server) Stop() error {
	s.logger.Println("stopping dashboard server")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)

	s.wg.Wait()
	s.logger.Println("dashboard server stopped")
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Handler returns an events.Handler suitable for Engine.Subscribe: every
// event the engine publishes is forwarded to connected clients.
func (s *Server) Handler() events.Handler {
	return s.Broadcast
}

// Broadcast queues ev for delivery to every connected client. It never
// blocks past the broadcast channel's capacity; a full channel drops the
// event and logs a warning rather than stalling the engine's publish call.
func (s *Server) Broadcast(ev events.Event) {
	select {
	case s.broadcast <- ev:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("dashboard: broadcast channel full, dropping %s event", ev.Kind)
	}
}

// run owns s.clients for its entire lifetime: registration, removal, and
// fan-out all happen here, so no other goroutine touches the map.
func (s *Server) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			for c := range s.clients {
				close(c.send)
				_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			return

		case c := <-s.register:
			s.clients[c] = struct{}{}
			s.clientN.Add(1)
			s.logger.Printf("client connected (total: %d)", len(s.clients))

		case c := <-s.unregister:
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
				s.clientN.Add(-1)
				s.logger.Printf("client disconnected (total: %d)", len(s.clients))
			}

		case ev := <-s.broadcast:
			data, err := json.Marshal(frame{Event: ev, BroadcastAt: time.Now()})
			if err != nil {
				s.logger.Printf("marshal event: %v", err)
				continue
			}
			for c := range s.clients {
				select {
				case c.send <- data:
				default:
					s.logger.Printf("client send buffer full, dropping connection")
					delete(s.clients, c)
					close(c.send)
					s.clientN.Add(-1)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	select {
	case s.register <- c:
	case <-s.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.writePump()
	go s.readPump(c)
}

// writePump drains c.send to the websocket connection until the hub
// closes the channel (on unregister or shutdown), then closes the
// connection.
func (c *client) writePump() {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			break
		}
	}
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// readPump discards client messages; its only job is to notice when the
// connection drops so the hub can remove it.
func (s *Server) readPump(c *client) {
	for {
		if _, _, err := c.conn.Read(s.ctx); err != nil {
			select {
			case s.unregister <- c:
			case <-s.ctx.Done():
			}
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.ClientCount()})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>timelogd dashboard</title></head>
<body>
<h1>timelogd dashboard</h1>
<p>WebSocket endpoint: <code>ws://%s/ws</code></p>
<p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	return int(s.clientN.Load())
}
