package controller

import (
	"errors"

	"ai-lessoncraft-be/internal/dto"
	"ai-lessoncraft-be/internal/pkg/serverutils"
	"ai-lessoncraft-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ITutoringController interface {
	RegisterRoutes(r fiber.Router)
}

type tutoringController struct {
	service service.ITutoringService
}

func NewTutoringController(service service.ITutoringService) ITutoringController {
	return &tutoringController{service: service}
}

func (c *tutoringController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/tutoring/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/sessions", c.StartSession)
	h.Get("/sessions/:id", c.GetSession)
	h.Patch("/sessions/:id", c.UpdateSession)
	h.Post("/sessions/:id/explanations", c.SaveExplanation)
	h.Get("/sessions/:id/context", c.GetPreviousContext)
	h.Post("/sessions/:id/interactions", c.RecordInteraction)
	h.Get("/sessions/:id/units/:unitId/needs-help", c.NeedsHelp)
	h.Get("/sessions/:id/continuity", c.BuildContinuityPhrase)
	h.Get("/content/:contentId/units/:unitId/explanation", c.GetLastExplanation)
	h.Post("/maintenance/cleanup", c.CleanupOldMemory)
}

func requesterId(ctx *fiber.Ctx) uuid.UUID {
	id, _ := uuid.Parse(ctx.Locals("user_id").(string))
	return id
}

func (c *tutoringController) StartSession(ctx *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.StartSession(ctx.Context(), requesterId(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session started", res))
}

func (c *tutoringController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.service.GetSession(ctx.Context(), requesterId(ctx), ctx.Params("id"))
	if err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *tutoringController) UpdateSession(ctx *fiber.Ctx) error {
	var req dto.UpdateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.UpdateSession(ctx.Context(), requesterId(ctx), ctx.Params("id"), &req); err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Session updated", nil))
}

func (c *tutoringController) SaveExplanation(ctx *fiber.Ctx) error {
	var req dto.SaveExplanationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.SaveExplanation(ctx.Context(), requesterId(ctx), ctx.Params("id"), &req); err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Explanation saved", nil))
}

func (c *tutoringController) GetLastExplanation(ctx *fiber.Ctx) error {
	contentId, err := uuid.Parse(ctx.Params("contentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid content id")
	}

	unitId, err := uuid.Parse(ctx.Params("unitId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid unit id")
	}

	res, err := c.service.GetLastExplanation(ctx.Context(), contentId, unitId)
	if err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get explanation", res))
}

func (c *tutoringController) GetPreviousContext(ctx *fiber.Ctx) error {
	res, err := c.service.GetPreviousContext(ctx.Context(), requesterId(ctx), ctx.Params("id"))
	if err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get previous context", res))
}

func (c *tutoringController) RecordInteraction(ctx *fiber.Ctx) error {
	var req dto.RecordInteractionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.RecordInteraction(ctx.Context(), requesterId(ctx), ctx.Params("id"), &req); err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Interaction recorded", nil))
}

func (c *tutoringController) NeedsHelp(ctx *fiber.Ctx) error {
	unitId, err := uuid.Parse(ctx.Params("unitId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid unit id")
	}

	res, err := c.service.NeedsHelp(ctx.Context(), requesterId(ctx), ctx.Params("id"), unitId)
	if err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success check help signal", res))
}

func (c *tutoringController) BuildContinuityPhrase(ctx *fiber.Ctx) error {
	res, err := c.service.BuildContinuityPhrase(ctx.Context(), requesterId(ctx), ctx.Params("id"))
	if err != nil {
		return mapTutoringError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success build continuity phrase", res))
}

func (c *tutoringController) CleanupOldMemory(ctx *fiber.Ctx) error {
	var req dto.CleanupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CleanupOldMemory(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Memory cleanup done", res))
}

func mapTutoringError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrMemoryNotFound):
		return fiber.NewError(fiber.StatusNotFound, "explanation not found")
	default:
		return err
	}
}
