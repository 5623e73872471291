package controller

import (
	"errors"

	"ai-lessoncraft-be/internal/dto"
	"ai-lessoncraft-be/internal/pkg/serverutils"
	"ai-lessoncraft-be/internal/service"
	"ai-lessoncraft-be/pkg/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IGenerationController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Result(ctx *fiber.Ctx) error
}

type generationController struct {
	service service.IGenerationService
}

func NewGenerationController(service service.IGenerationService) IGenerationController {
	return &generationController{service: service}
}

func (c *generationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generation/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/jobs", c.Submit)
	h.Get("/jobs/:id", c.Status)
	h.Get("/content/:contentId/result", c.Result)
}

func (c *generationController) Submit(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SubmitJobRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitJob(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Job submitted", res))
}

func (c *generationController) Status(ctx *fiber.Ctx) error {
	jobId := ctx.Params("id")

	res, err := c.service.GetJobStatus(ctx.Context(), jobId)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "job not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get job status", res))
}

func (c *generationController) Result(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	contentId, err := uuid.Parse(ctx.Params("contentId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid content id")
	}

	res, err := c.service.GetJobResult(ctx.Context(), userId, contentId)
	if err != nil {
		if errors.Is(err, service.ErrResultNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "generation result not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get generation result", res))
}
