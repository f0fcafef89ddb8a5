package serverutils

import (
	"docchat-be/pkg/docstore"

	"github.com/gofiber/fiber/v2"
)

const (
	SessionHeader = "X-Session-ID"
	sessionLocal  = "session_id"
)

// SessionMiddleware resolves the caller's session from the X-Session-ID
// header or the session query parameter.
func SessionMiddleware(ctx *fiber.Ctx) error {
	raw := ctx.Get(SessionHeader)
	if raw == "" {
		raw = ctx.Query("session")
	}
	ctx.Locals(sessionLocal, docstore.SanitizeSession(raw))
	return ctx.Next()
}

func SessionID(ctx *fiber.Ctx) string {
	if s, ok := ctx.Locals(sessionLocal).(string); ok && s != "" {
		return s
	}
	return docstore.DefaultSession
}
