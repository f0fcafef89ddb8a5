package controller

import (
	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"
	"docchat-be/pkg/apperr"
	"docchat-be/pkg/memory"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Clear(ctx *fiber.Ctx) error
	Memory(ctx *fiber.Ctx) error
}

type sessionController struct {
	documentService service.IDocumentService
	memory          *memory.Manager
}

// NewSessionController builds the session routes. memoryManager may be nil.
func NewSessionController(documentService service.IDocumentService, memoryManager *memory.Manager) ISessionController {
	return &sessionController{
		documentService: documentService,
		memory:          memoryManager,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Delete("", c.Clear)
	h.Get("memory", c.Memory)
}

func (c *sessionController) Clear(ctx *fiber.Ctx) error {
	session := serverutils.SessionID(ctx)
	if err := c.documentService.ClearSession(ctx.UserContext(), session); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear session", dto.ClearSessionResponse{Session: session}))
}

func (c *sessionController) Memory(ctx *fiber.Ctx) error {
	if c.memory == nil {
		return apperr.New(apperr.KindNotConfigured, "user memory is disabled")
	}

	session := serverutils.SessionID(ctx)
	mem, err := c.memory.Memory(ctx.UserContext(), session)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "failed to load memory", err)
	}
	turns, err := c.memory.History(ctx.UserContext(), session)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, "failed to load history", err)
	}

	res := dto.SessionMemoryResponse{
		Session:        session,
		UserInfo:       mem.UserInfo,
		Preferences:    mem.Preferences,
		Interests:      mem.Interests,
		ImportantFacts: mem.ImportantFacts,
		LastUpdated:    mem.LastUpdated,
		History:        make([]dto.ConversationTurnResponse, 0, len(turns)),
	}
	for _, t := range turns {
		res.History = append(res.History, dto.ConversationTurnResponse{
			Timestamp: t.Timestamp,
			User:      t.User,
			Assistant: t.Assistant,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get memory", res))
}
