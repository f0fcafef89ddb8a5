package controller

import (
	"bufio"
	"encoding/json"
	"fmt"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"
	ws "docchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, logger logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      logger,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Post("", c.Ask)
	h.Get("ws", upgradeOnly, websocket.New(c.serveWs))
}

func upgradeOnly(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (c *chatController) serveWs(conn *websocket.Conn) {
	session, _ := conn.Locals("session_id").(string)
	ws.ServeChat(conn, session, c.chatService, c.logger)
}

func (c *chatController) Ask(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session := serverutils.SessionID(ctx)
	if !req.Stream {
		res, err := c.chatService.Ask(ctx.UserContext(), session, &req)
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
	}

	// Errors before the first chunk are returned as a normal JSON error.
	stream, err := c.chatService.AskStream(ctx.UserContext(), session, &req)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stream.Close()

		for stream.Next() {
			writeSSE(w, "", dto.ChatStreamChunk{Type: "chunk", Content: stream.Chunk()})
			if err := w.Flush(); err != nil {
				c.logger.Info("CHAT", "Client disconnected mid-stream", map[string]interface{}{"session": session})
				return
			}
		}

		if err := stream.Err(); err != nil {
			body := serverutils.Classify(service.UserFacingError(err))
			writeSSE(w, "error", dto.ChatStreamChunk{Type: "error", Content: body.Message, Kind: body.Kind, Code: body.Code})
			w.Flush()
			return
		}

		writeSSE(w, "done", dto.ChatStreamChunk{Type: "done"})
		w.Flush()
	})
	return nil
}

func writeSSE(w *bufio.Writer, event string, chunk dto.ChatStreamChunk) {
	data, _ := json.Marshal(chunk)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
