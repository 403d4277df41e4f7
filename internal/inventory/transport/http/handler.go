package http

import (
	"context"
	"errors"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/service"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	inventory service.InventoryService
	pool      *pgxpool.Pool
}

func NewHandler(inventory service.InventoryService, pool *pgxpool.Pool) *Handler {
	return &Handler{
		inventory: inventory,
		pool:      pool,
	}
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/inventory/:productId", h.GetStock)
}

func (h *Handler) GetStock(c *fiber.Ctx) error {
	productID := c.Params("productId")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "productId is required",
		})
	}

	inv, err := h.inventory.GetStock(c.UserContext(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "product not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"productId":         inv.ProductID,
		"sellerId":          inv.SellerID,
		"warehouseId":       inv.WarehouseID,
		"quantityAvailable": inv.QuantityAvailable,
		"quantityReserved":  inv.QuantityReserved,
		"freeStock":         inv.FreeStock(),
	})
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
