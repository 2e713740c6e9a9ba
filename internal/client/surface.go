package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"dappbridge/internal/constants"
	"dappbridge/internal/protocol"
)

// SurfaceConn plays the part of an embedded surface. It is used for manual
// testing of a host.
type SurfaceConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *Client) DialSurface(ctx context.Context, surfaceURL string) (*SurfaceConn, error) {
	conn, resp, err := c.Dialer.DialContext(ctx, surfaceURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (%s): %w", resp.Status, err)
		}
		return nil, err
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))
	return &SurfaceConn{conn: conn}, nil
}

func (s *SurfaceConn) write(ev protocol.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Call sends an ipc-message with id as the first argument.
func (s *SurfaceConn) Call(channel string, id any, args ...any) error {
	raw := make([]json.RawMessage, 0, len(args)+1)
	for _, a := range append([]any{id}, args...) {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}
	return s.write(protocol.Event{Type: constants.EventIPCMessage, Channel: channel, Args: raw})
}

func (s *SurfaceConn) Console(level int, message string) error {
	return s.write(protocol.Event{Type: constants.EventConsoleMessage, Level: level, Message: message})
}

func (s *SurfaceConn) OpenWindow(url string) error {
	return s.write(protocol.Event{Type: constants.EventNewWindow, URL: url})
}

// Receive reads response frames and passes them to fn until ctx is done or
// the connection closes.
func (s *SurfaceConn) Receive(ctx context.Context, fn func(channel string, payload json.RawMessage)) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var resp struct {
			Channel string          `json:"channel"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := s.conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(resp.Channel, resp.Payload)
	}
}

func (s *SurfaceConn) Close() error {
	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
