package websocket

import (
	"context"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

// ServeChat runs a chat connection until the peer goes away. Closing the
// connection cancels any answer still streaming.
func ServeChat(conn *websocket.Conn, session string, chat service.IChatService, log logger.ILogger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{
		Conn:     conn,
		Session:  session,
		chat:     chat,
		logger:   log,
		send:     make(chan []byte, 256),
		requests: make(chan dto.ChatRequest, 8),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump(ctx, cancel)
	}()

	answersDone := make(chan struct{})
	go func() {
		defer close(answersDone)
		client.answerLoop(ctx)
	}()

	client.readPump(ctx)
	cancel()
	<-answersDone
	<-writerDone
}
