package http

import (
	"errors"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// AuctionHandler exposes the auction CRUD surface consumed by the listing
// frontend. Bidding itself never goes through HTTP, only through the
// websocket gateway.
type AuctionHandler struct {
	service application.AuctionService
	clock   clockwork.Clock
}

// NewAuctionHandler creates a new instance of AuctionHandler
func NewAuctionHandler(service application.AuctionService, clock clockwork.Clock) *AuctionHandler {
	return &AuctionHandler{service: service, clock: clock}
}

// Register mounts the auction routes on router
func (h *AuctionHandler) Register(router fiber.Router) {
	router.Post("/auctions", h.createAuction)
	router.Get("/auctions", h.listAuctions)
	router.Get("/auctions/live", h.listLiveAuctions)
	router.Get("/auctions/:id", h.getAuction)
	router.Put("/auctions/:id", h.updateAuction)
	router.Delete("/auctions/:id", h.cancelAuction)
}

type createAuctionRequest struct {
	ProductRef string    `json:"product_ref"`
	FarmerID   string    `json:"farmer_id"`
	Title      string    `json:"title"`
	BasePrice  float64   `json:"base_price"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

func (h *AuctionHandler) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ProductRef == "" || req.FarmerID == "" || req.Title == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing fields")
	}

	auction, err := h.service.CreateAuction(c.Context(), application.CreateAuctionDTO{
		ProductRef: req.ProductRef,
		FarmerID:   req.FarmerID,
		Title:      req.Title,
		BasePrice:  req.BasePrice,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(application.SnapshotFromAuction(auction))
}

func (h *AuctionHandler) listAuctions(c *fiber.Ctx) error {
	auctions, err := h.service.ListAuctions(c.Context())
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(auctions)
}

func (h *AuctionHandler) listLiveAuctions(c *fiber.Ctx) error {
	auctions, err := h.service.ListLiveAuctions(c.Context(), h.clock.Now())
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(auctions)
}

func (h *AuctionHandler) getAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
	}
	snap, err := h.service.GetAuction(c.Context(), id)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(snap)
}

type updateScheduleRequest struct {
	FarmerID  string    `json:"farmer_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (h *AuctionHandler) updateAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
	}
	var req updateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	auction, err := h.service.UpdateSchedule(c.Context(), application.UpdateScheduleDTO{
		AuctionID: id,
		FarmerID:  req.FarmerID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(application.SnapshotFromAuction(auction))
}

type cancelAuctionRequest struct {
	FarmerID string `json:"farmer_id"`
}

func (h *AuctionHandler) cancelAuction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
	}
	var req cancelAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if _, err := h.service.CancelAuction(c.Context(), id, req.FarmerID); err != nil {
		return h.mapError(err)
	}
	return c.JSON(fiber.Map{"message": "auction canceled"})
}

func (h *AuctionHandler) mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "auction not found")
	case errors.Is(err, domain.ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, "auction already started or finished")
	case errors.Is(err, domain.ErrInvalidTimeWindow),
		errors.Is(err, domain.ErrInvalidBasePrice):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "server error")
	}
}
