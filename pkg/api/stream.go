package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// ApprovalStream pushes every new approval to connected websocket clients
type ApprovalStream struct {
	upgrader websocket.Upgrader
	logger   logger.Logger
	// pongWait is how long a client may stay silent; pings go out at 9/10 of it
	pongWait time.Duration

	mu      sync.RWMutex
	clients map[string]*streamClient
	nextID  uint64
}

func NewApprovalStream(logger logger.Logger) *ApprovalStream {
	return &ApprovalStream{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logger,
		pongWait: pongWait,
		clients:  make(map[string]*streamClient),
	}
}

// Broadcast sends an approval to every client. Clients whose buffer is full
// are disconnected.
func (s *ApprovalStream) Broadcast(approval models.Approval) {
	message, err := json.Marshal(approval)
	if err != nil {
		s.logger.Error("Failed to encode approval for stream: %v", err)
		return
	}

	s.mu.RLock()
	var slow []*streamClient
	for _, client := range s.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range slow {
		s.logger.Notice("Dropping slow approval stream client %s", client.id)
		s.remove(client)
	}
}

// Clients returns the number of connected clients
func (s *ApprovalStream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *ApprovalStream) add(conn *websocket.Conn) *streamClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	client := &streamClient{
		id:   fmt.Sprintf("client_%d", s.nextID),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	s.clients[client.id] = client
	return client
}

func (s *ApprovalStream) remove(client *streamClient) {
	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()
	client.close()
}

// ServeHTTP upgrades the request and streams approvals until the client leaves
func (s *ApprovalStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	client := s.add(conn)
	s.logger.Debug("Approval stream client connected: %s", client.id)

	go s.writer(client)
	go s.reader(client)
}

func (s *ApprovalStream) writer(client *streamClient) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
		s.logger.Debug("Approval stream client disconnected: %s", client.id)
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("Write error for stream client %s: %v", client.id, err)
				s.remove(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("Ping failed for stream client %s: %v", client.id, err)
				s.remove(client)
				return
			}
		}
	}
}

// reader drains control frames so pings and close frames are handled
func (s *ApprovalStream) reader(client *streamClient) {
	defer s.remove(client)

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("Read error for stream client %s: %v", client.id, err)
			}
			return
		}
	}
}
