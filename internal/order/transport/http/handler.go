package http

import (
	"context"
	"errors"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/order/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	orders   service.OrderService
	pool     *pgxpool.Pool
	validate *validator.Validate
}

func NewHandler(orders service.OrderService, pool *pgxpool.Pool) *Handler {
	return &Handler{
		orders:   orders,
		pool:     pool,
		validate: validator.New(),
	}
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)

	orders := app.Group("/orders")
	orders.Post("", h.Create)
	orders.Get("/:id", h.GetByID)
	orders.Post("/:id/cancel", h.Cancel)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	order, err := h.orders.CreateOrder(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create order",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"orderId":  order.ID,
		"status":   order.Status,
		"totalSum": order.TotalSum,
		"currency": order.Currency,
	})
}

func (h *Handler) GetByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "order id is required",
		})
	}

	order, err := h.orders.GetOrder(c.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(order)
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "order id is required",
		})
	}

	reason := c.Query("reason", "cancelled by customer")

	err := h.orders.CancelOrder(c.UserContext(), orderID, reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order not found",
			})
		case errors.Is(err, repository.ErrOrderFinalized):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "order already finalized",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to cancel order",
			})
		}
	}

	return c.JSON(fiber.Map{"status": "cancelled"})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "down",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
