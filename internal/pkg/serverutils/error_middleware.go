package serverutils

import (
	"errors"
	"math"
	"strconv"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns any error returned further down the chain into
// an ErrorBody with a status taken from the error's classification.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err, log)
	}
}

// Classify maps err onto the body sent to clients.
func Classify(err error) ErrorBody {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := apperr.KindInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			kind = apperr.KindNotFound
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
			kind = apperr.KindInvalidInput
		}
		return ErrorBody{Code: fe.Code, Kind: string(kind), Message: fe.Message}
	}

	if ae, ok := apperr.As(err); ok {
		body := ErrorBody{Code: ae.Status(), Kind: string(ae.Kind), Message: ae.Message}
		if ae.RetryAfter > 0 {
			body.RetryAfterSeconds = int(math.Ceil(ae.RetryAfter.Seconds()))
		}
		return body
	}

	return ErrorBody{
		Code:    fiber.StatusInternalServerError,
		Kind:    string(apperr.KindInternal),
		Message: "Internal server error",
	}
}

func WriteError(ctx *fiber.Ctx, err error, log logger.ILogger) error {
	body := Classify(err)

	details := map[string]interface{}{
		"path":  ctx.Path(),
		"kind":  body.Kind,
		"error": err.Error(),
	}
	if body.Code >= fiber.StatusInternalServerError {
		log.Error("HTTP", "Request failed", details)
	} else {
		log.Warn("HTTP", "Request rejected", details)
	}

	if body.RetryAfterSeconds > 0 {
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(body.RetryAfterSeconds))
	}
	return ctx.Status(body.Code).JSON(body)
}
