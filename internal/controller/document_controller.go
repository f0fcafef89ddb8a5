package controller

import (
	"io"
	"net/url"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"
	"docchat-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Reindex(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Post("upload", c.Upload)
	h.Post("reindex", c.Reindex)
	h.Get("", c.List)
	h.Delete(":name", c.Delete)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "expected a multipart form with files", err)
	}

	var files []dto.UploadFile
	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return apperr.Wrap(apperr.KindInvalidInput, "failed to read uploaded file", err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return apperr.Wrap(apperr.KindInvalidInput, "failed to read uploaded file", err)
			}
			files = append(files, dto.UploadFile{Name: fh.Filename, Data: data})
		}
	}

	res, err := c.documentService.Upload(ctx.UserContext(), serverutils.SessionID(ctx), files)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload documents", res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	res, err := c.documentService.List(ctx.UserContext(), serverutils.SessionID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list documents", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	name, err := url.PathUnescape(ctx.Params("name"))
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid document name", err)
	}
	if err := c.documentService.Delete(ctx.UserContext(), serverutils.SessionID(ctx), name); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete document", nil))
}

func (c *documentController) Reindex(ctx *fiber.Ctx) error {
	res, err := c.documentService.Reindex(ctx.UserContext(), serverutils.SessionID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reindex documents", res))
}
