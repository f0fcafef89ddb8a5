package websocket

import (
	"context"
	"encoding/json"
	"time"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"
	"docchat-be/pkg/apperr"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is one chat connection. Questions are answered in arrival order and
// every answer is streamed as chunk frames followed by a done or error frame.
type Client struct {
	Conn    *websocket.Conn
	Session string

	chat   service.IChatService
	logger logger.ILogger

	// Buffered channel of outbound frames.
	send     chan []byte
	requests chan dto.ChatRequest
}

func (c *Client) readPump(ctx context.Context) {
	defer close(c.requests)

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WEBSOCKET", "Connection closed unexpectedly", map[string]interface{}{
					"session": c.Session,
					"error":   err.Error(),
				})
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var req dto.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.enqueue(ctx, errorFrame(serverutils.Classify(apperr.Wrap(apperr.KindInvalidInput, "invalid message", err))))
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			c.enqueue(ctx, errorFrame(serverutils.Classify(err)))
			continue
		}

		select {
		case c.requests <- req:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) answerLoop(ctx context.Context) {
	for req := range c.requests {
		c.answer(ctx, req)
	}
}

func (c *Client) answer(ctx context.Context, req dto.ChatRequest) {
	stream, err := c.chat.AskStream(ctx, c.Session, &req)
	if err != nil {
		c.enqueue(ctx, errorFrame(serverutils.Classify(err)))
		return
	}
	defer stream.Close()

	for stream.Next() {
		if !c.enqueue(ctx, frame(dto.ChatStreamChunk{Type: "chunk", Content: stream.Chunk()})) {
			return
		}
	}
	if err := stream.Err(); err != nil {
		c.enqueue(ctx, errorFrame(serverutils.Classify(service.UserFacingError(err))))
		return
	}
	c.enqueue(ctx, frame(dto.ChatStreamChunk{Type: "done"}))
}

// enqueue hands a frame to the writer. It reports false once the connection is gone.
func (c *Client) enqueue(ctx context.Context, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("WEBSOCKET", "Write failed, closing", map[string]interface{}{
					"session": c.Session,
					"error":   err.Error(),
				})
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func frame(chunk dto.ChatStreamChunk) []byte {
	data, _ := json.Marshal(chunk)
	return data
}

func errorFrame(body serverutils.ErrorBody) []byte {
	return frame(dto.ChatStreamChunk{Type: "error", Content: body.Message, Kind: body.Kind, Code: body.Code})
}
