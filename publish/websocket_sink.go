package publish

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketSink fans a published payload out to every currently-connected
// downstream subscriber. Grounded on the teacher's websocket/websocket.go
// Hub (a mutex-guarded client set, a per-client buffered send channel, a
// non-blocking broadcast that drops a client instead of blocking the
// publisher on it) — repurposed here from broadcasting to browser peers in
// one "room" to broadcasting event-bus envelopes to every subscriber of a
// single, unnamed stream.
type WebSocketSink struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketSink constructs a sink with no subscribers yet; call
// ServeHTTP from an *http.ServeMux to accept subscriber connections.
func NewWebSocketSink(log *logrus.Entry) *WebSocketSink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers it
// as a subscriber. The connection is write-only from this process's
// perspective; any inbound frame from the subscriber is discarded.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket sink: upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 32)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	go s.drainReads(c)
}

func (s *WebSocketSink) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.unregister(c)
			return
		}
	}
}

// drainReads discards inbound frames until the connection closes, which is
// how gorilla/websocket surfaces client disconnects.
func (s *WebSocketSink) drainReads(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.unregister(c)
			return
		}
	}
}

func (s *WebSocketSink) unregister(c *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Publish implements Sink. key is accepted for interface compliance but
// unused: a websocket fan-out has no per-subscriber routing key, every
// connected subscriber receives every payload.
func (s *WebSocketSink) Publish(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			delete(s.clients, c)
			close(c.send)
		}
	}
	return nil
}
