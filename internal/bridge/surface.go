package bridge

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dappbridge/internal/constants"
	"dappbridge/internal/protocol"
)

// ErrSurfaceClosed is returned by Send after the surface went away.
var ErrSurfaceClosed = errors.New("surface closed")

// Surface is the embedded untrusted content a Controller talks to.
type Surface interface {
	Send(channel string, payload any) error
}

// WebSocketSurface is a Surface connected over a websocket.
type WebSocketSurface struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	closed   bool
	closeMu  sync.Once
	closeErr error
}

func NewWebSocketSurface(conn *websocket.Conn) *WebSocketSurface {
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))
	return &WebSocketSurface{conn: conn}
}

func (s *WebSocketSurface) Send(channel string, payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrSurfaceClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
	return s.conn.WriteJSON(protocol.Response{Channel: channel, Payload: payload})
}

// Serve mounts s on c and dispatches frames until the connection fails,
// then unmounts it. Malformed frames are logged and skipped.
func (s *WebSocketSurface) Serve(c *Controller) error {
	if err := c.Mount(s); err != nil {
		return err
	}
	defer c.release(s)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			log.Printf("⚠️  Session %s: %v", c.SessionID(), err)
			continue
		}
		if err := c.Dispatch(ev); err != nil {
			log.Printf("⚠️  Session %s: %v", c.SessionID(), err)
		}
	}
}

// Close closes the connection, which also ends Serve.
func (s *WebSocketSurface) Close() error {
	s.closeMu.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
