package broadcast

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades inbound HTTP connections to WebSocket subscribers of a
// Hub, with a read pump for inbound client commands alongside the write
// pump that delivers broadcasts.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// NewServer builds a WebSocket server fronting hub. Origin checking is
// left permissive: this is a data feed, not a browser session boundary.
func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection, registers a Subscriber, and runs its
// read and write pumps until the connection drops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	sub := s.hub.Subscribe(id)
	defer s.hub.Unsubscribe(id)

	done := make(chan struct{})
	go s.writePump(conn, sub, done)
	s.readPump(conn, id, done)
}

// writePump is the sole writer on conn: it drains the subscriber's
// buffer, marshals each envelope, and sends a periodic ping to detect
// dead connections. On any send error it returns and closes conn, which
// fails readPump's pending read and so ends it.
func (s *Server) writePump(conn *websocket.Conn, sub *Subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := s.send(conn, ConnectedEnvelope(sub.ID)); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case env := <-sub.Buffer:
			if err := s.send(conn, env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, env Envelope) error {
	data, err := Marshal(env)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readPump is the sole reader on conn: it parses inbound client commands
// and routes them through the Hub. A malformed message or a routing
// error gets an Error envelope back to the one connection that sent it,
// not a broadcast to every subscriber; the connection itself stays open.
func (s *Server) readPump(conn *websocket.Conn, subscriberID string, done chan struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := ParseClientCommand(data)
		if err != nil {
			s.hub.Send(subscriberID, ErrorEnvelope("malformed command: "+err.Error()))
			continue
		}
		if env, isErr := s.hub.HandleCommand(cmd); isErr {
			s.hub.Send(subscriberID, env)
		}
	}
}
