package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"nhooyr.io/websocket"
)

// WebSocketSource reads one notification per websocket message.
type WebSocketSource struct {
	conn *websocket.Conn
}

// DialWebSocket connects to the bridge at url.
func DialWebSocket(ctx context.Context, url string) (*WebSocketSource, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	conn.SetReadLimit(MaxLineSize)
	return &WebSocketSource{conn: conn}, nil
}

// Next returns the next non-empty message. A normal closure by the peer ends
// the input with io.EOF.
func (s *WebSocketSource) Next(ctx context.Context) ([]byte, error) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil, io.EOF
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to read from websocket: %w", err)
		}
		if line := bytes.TrimSpace(data); len(line) > 0 {
			return line, nil
		}
	}
}

// Close closes the connection normally.
func (s *WebSocketSource) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
