package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/bidflow/auction-engine/internal/domain/auctions"
)

type createAuctionInput struct {
	ProductID               string    `json:"productId" validate:"required,uuid"`
	VendorID                string    `json:"vendorId" validate:"required,uuid"`
	Title                   string    `json:"title" validate:"required,max=200"`
	Description             string    `json:"description" validate:"max=2000"`
	Category                string    `json:"category" validate:"max=100"`
	StartingBid             int64     `json:"startingBid" validate:"required,gt=0"`
	ReservePrice            *int64    `json:"reservePrice" validate:"omitempty,gt=0"`
	BidIncrement            int64     `json:"bidIncrement" validate:"required,gt=0"`
	StartTime               time.Time `json:"startTime" validate:"required"`
	EndTime                 time.Time `json:"endTime" validate:"required"`
	AutoExtendWindowSeconds int64     `json:"autoExtendWindowSeconds" validate:"gte=0"`
}

// auctionResponse is the admin representation; it includes the reserve price
// and close reason, which the public view withholds.
type auctionResponse struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"productId"`
	VendorID          string     `json:"vendorId"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	StartingBid       int64      `json:"startingBid"`
	ReservePrice      *int64     `json:"reservePrice,omitempty"`
	CurrentHighestBid int64      `json:"currentHighestBid"`
	BidIncrement      int64      `json:"bidIncrement"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           time.Time  `json:"endTime"`
	AutoExtendSeconds int64      `json:"autoExtendWindowSeconds"`
	Status            string     `json:"status"`
	WinnerID          *uuid.UUID `json:"winnerId,omitempty"`
	CloseReason       string     `json:"closeReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func mapAuction(a *auctions.Auction) auctionResponse {
	return auctionResponse{
		ID:                a.ID.String(),
		ProductID:         a.ProductID.String(),
		VendorID:          a.VendorID.String(),
		Title:             a.Title,
		Description:       a.Description,
		Category:          a.Category,
		StartingBid:       a.StartingBid,
		ReservePrice:      a.ReservePrice,
		CurrentHighestBid: a.CurrentHighestBid,
		BidIncrement:      a.BidIncrement,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		AutoExtendSeconds: int64(a.AutoExtendWindow.Seconds()),
		Status:            string(a.Status),
		WinnerID:          a.WinnerID,
		CloseReason:       a.CloseReason,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// CreateAuction lists a new auction (admin).
func (h *Handler) CreateAuction(c echo.Context) error {
	var input createAuctionInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	productID, _ := uuid.Parse(input.ProductID)
	vendorID, _ := uuid.Parse(input.VendorID)

	a, err := h.registry.Create(c.Request().Context(), auctions.CreateAuctionCommand{
		ProductID:        productID,
		VendorID:         vendorID,
		Title:            input.Title,
		Description:      input.Description,
		Category:         input.Category,
		StartingBid:      input.StartingBid,
		ReservePrice:     input.ReservePrice,
		BidIncrement:     input.BidIncrement,
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		AutoExtendWindow: time.Duration(input.AutoExtendWindowSeconds) * time.Second,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, mapAuction(a))
}

type updateAuctionInput struct {
	Title        *string `json:"title" validate:"omitempty,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	Category     *string `json:"category" validate:"omitempty,max=100"`
	StartingBid  *int64  `json:"startingBid" validate:"omitempty,gt=0"`
	ReservePrice *int64  `json:"reservePrice" validate:"omitempty,gt=0"`
	BidIncrement *int64  `json:"bidIncrement" validate:"omitempty,gt=0"`
}

// UpdateAuction patches an auction (admin). Pricing fields are rejected once
// the auction has bids.
func (h *Handler) UpdateAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var input updateAuctionInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	a, err := h.registry.Update(c.Request().Context(), auctions.UpdateAuctionCommand{
		AuctionID:    id,
		Title:        input.Title,
		Description:  input.Description,
		Category:     input.Category,
		StartingBid:  input.StartingBid,
		ReservePrice: input.ReservePrice,
		BidIncrement: input.BidIncrement,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	h.invalidate(c, id)
	return c.JSON(http.StatusOK, mapAuction(a))
}

// DeleteAuction removes a bidless auction (admin).
func (h *Handler) DeleteAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if err := h.registry.Delete(c.Request().Context(), id); err != nil {
		return h.respondError(c, err)
	}
	h.invalidate(c, id)
	return c.NoContent(http.StatusNoContent)
}

// GetAuction returns the public auction view with time remaining. Reads are
// served from the cache when possible and are lock-free.
func (h *Handler) GetAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if h.viewCache != nil {
		if view, ok := h.viewCache.Get(ctx, id); ok {
			return c.JSON(http.StatusOK, view)
		}
	}

	view, err := h.registry.GetView(ctx, id)
	if err != nil {
		return h.respondError(c, err)
	}

	if h.viewCache != nil {
		if cacheErr := h.viewCache.Set(ctx, view); cacheErr != nil {
			h.logger.Warn("failed to cache auction view", "auction_id", id, "error", cacheErr)
		}
	}
	return c.JSON(http.StatusOK, view)
}

type listAuctionsInput struct {
	Status string `query:"status" validate:"omitempty,oneof=scheduled active ended sold cancelled"`
	Limit  int    `query:"limit" validate:"gte=0,lte=100"`
	Offset int    `query:"offset" validate:"gte=0"`
}

// ListAuctions returns a paged auction listing, newest first.
func (h *Handler) ListAuctions(c echo.Context) error {
	input := listAuctionsInput{Limit: 20}
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	list, err := h.registry.List(c.Request().Context(), auctions.ListAuctionsQuery{
		Status: auctions.Status(input.Status),
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	result := make([]auctionResponse, len(list))
	for i, a := range list {
		result[i] = mapAuction(a)
	}
	return c.JSON(http.StatusOK, map[string]any{"auctions": result})
}

type closeAuctionInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CloseAuction resolves the auction immediately (admin). Idempotent when the
// auction is already terminal.
func (h *Handler) CloseAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var input closeAuctionInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	a, err := h.registry.ForceClose(c.Request().Context(), id, input.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	h.invalidate(c, id)
	return c.JSON(http.StatusOK, mapAuction(a))
}

// CancelAuction cancels a bidless auction (admin).
func (h *Handler) CancelAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var input closeAuctionInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	a, err := h.registry.Cancel(c.Request().Context(), id, input.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	h.invalidate(c, id)
	return c.JSON(http.StatusOK, mapAuction(a))
}

type extendAuctionInput struct {
	DurationMinutes int64  `json:"durationMinutes" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"required,max=500"`
}

// ExtendAuction moves the closing time forward (admin, forward-only).
func (h *Handler) ExtendAuction(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var input extendAuctionInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	a, err := h.registry.ForceExtend(c.Request().Context(), id,
		time.Duration(input.DurationMinutes)*time.Minute, input.Reason)
	if err != nil {
		return h.respondError(c, err)
	}
	h.invalidate(c, id)
	return c.JSON(http.StatusOK, mapAuction(a))
}

type watchInput struct {
	UserID string `json:"userId" query:"userId" validate:"required,uuid"`
}

// Watch subscribes a user to auction notifications.
func (h *Handler) Watch(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var input watchInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}
	userID, _ := uuid.Parse(input.UserID)

	if err := h.registry.Watch(c.Request().Context(), id, userID); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unwatch removes a user's subscription.
func (h *Handler) Unwatch(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var input watchInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}
	userID, _ := uuid.Parse(input.UserID)

	if err := h.registry.Unwatch(c.Request().Context(), id, userID); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListWatchers returns an auction's subscribers (admin; consumed by the
// notification collaborator).
func (h *Handler) ListWatchers(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}

	watchers, err := h.registry.ListWatchers(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}

	userIDs := make([]string, len(watchers))
	for i, w := range watchers {
		userIDs[i] = w.UserID.String()
	}
	return c.JSON(http.StatusOK, map[string]any{"auctionId": id, "userIds": userIDs})
}
