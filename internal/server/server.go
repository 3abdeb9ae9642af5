package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/lotas/flowtabs/internal/applog"
	"nhooyr.io/websocket"
)

const (
	readLimit    = 16 << 20 // 16 MB, get-state replies with many tabs can be large
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

type client struct {
	out    chan []byte
	remote string
}

// Request is an incoming command and the client that sent it.
type Request struct {
	Msg    IncomingMsg
	client *client
}

// Server accepts WebSocket clients, queues their commands and pushes
// replies and change notifications to them.
type Server struct {
	port int
	reqs chan Request

	mu      sync.Mutex
	clients map[*client]struct{}
	dirty   map[int]bool
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		reqs:    make(chan Request, 64),
		clients: make(map[*client]struct{}),
		dirty:   make(map[int]bool),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Requests returns the channel of incoming commands.
func (s *Server) Requests() <-chan Request {
	return s.reqs
}

// Clients reports how many clients are connected.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// NotifyWindowTabsChanged marks a window as changed. Marks are coalesced
// until FlushNotifications.
func (s *Server) NotifyWindowTabsChanged(windowID int) {
	s.mu.Lock()
	s.dirty[windowID] = true
	s.mu.Unlock()
}

// FlushNotifications broadcasts one window-tabs-changed message per
// changed window.
func (s *Server) FlushNotifications() {
	s.mu.Lock()
	var ids []int
	for id := range s.dirty {
		ids = append(ids, id)
	}
	clear(s.dirty)
	s.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.Broadcast(OutgoingMsg{Type: TypeWindowTabsChanged, WindowID: id})
	}
}

// Broadcast sends msg to every client. Clients that are not keeping up
// miss the message.
func (s *Server) Broadcast(msg OutgoingMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		applog.Error("ws.encode", err, "type", msg.Type)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.sendLocked(c, data)
	}
}

// Reply answers req on the connection it came from.
func (s *Server) Reply(req Request, msg OutgoingMsg) {
	msg.ID = req.Msg.ID
	msg.Type = TypeReply
	data, err := json.Marshal(msg)
	if err != nil {
		applog.Error("ws.encode", err, "type", msg.Type)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[req.client]; ok {
		s.sendLocked(req.client, data)
	}
}

func (s *Server) sendLocked(c *client, data []byte) {
	select {
	case c.out <- data:
	default:
		applog.Warn("ws.drop", "remote", c.remote)
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	close(c.out)
	s.mu.Unlock()
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}
		conn.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &client{out: make(chan []byte, clientBuffer), remote: r.RemoteAddr}
		s.register(c)
		applog.Info("ws.connected", "remote", r.RemoteAddr)

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for data := range c.out {
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, data)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}()

		defer func() {
			s.unregister(c)
			cancel()
			<-writerDone
			conn.CloseNow()
			applog.Info("ws.disconnected", "remote", r.RemoteAddr)
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			select {
			case s.reqs <- Request{Msg: msg, client: c}:
			case <-ctx.Done():
				return
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
