package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/bidflow/auction-engine/internal/domain/bids"
)

type placeBidInput struct {
	BidderID         string `json:"bidderId" validate:"required,uuid"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	IsAutoBid        bool   `json:"isAutoBid"`
	MaxAutoBidAmount int64  `json:"maxAutoBidAmount" validate:"gte=0"`
}

type bidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auctionId"`
	BidderID  string    `json:"bidderId"`
	Amount    int64     `json:"amount"`
	IsWinning bool      `json:"isWinning"`
	IsAutoBid bool      `json:"isAutoBid"`
	PlacedAt  time.Time `json:"placedAt"`
}

func mapBid(b *bids.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID.String(),
		AuctionID: b.AuctionID.String(),
		BidderID:  b.BidderID.String(),
		Amount:    b.Amount,
		IsWinning: b.IsWinning,
		IsAutoBid: b.IsAutoBid,
		PlacedAt:  b.PlacedAt,
	}
}

// PlaceBid commits a bid against an auction. The response carries the bid
// that ends the round winning, which may be a proxy counter-bid rather than
// the submitted one.
func (h *Handler) PlaceBid(c echo.Context) error {
	auctionID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var input placeBidInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}
	bidderID, _ := uuid.Parse(input.BidderID)

	winning, err := h.ledger.PlaceBid(c.Request().Context(), bids.PlaceBidCommand{
		AuctionID:        auctionID,
		BidderID:         bidderID,
		Amount:           input.Amount,
		IsAutoBid:        input.IsAutoBid,
		MaxAutoBidAmount: input.MaxAutoBidAmount,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	h.invalidate(c, auctionID)
	return c.JSON(http.StatusCreated, map[string]any{
		"winningBid": mapBid(winning),
		"outbid":     winning.BidderID != bidderID,
	})
}

type cancelAutoBidInput struct {
	BidderID string `query:"bidderId" validate:"required,uuid"`
}

// CancelAutoBid withdraws a bidder's proxy eligibility on an auction. Bids
// already on the ledger stay untouched.
func (h *Handler) CancelAutoBid(c echo.Context) error {
	auctionID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var input cancelAutoBidInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}
	bidderID, _ := uuid.Parse(input.BidderID)

	if err := h.ledger.CancelAutoBid(c.Request().Context(), auctionID, bidderID); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type listBidsInput struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

// ListBids returns an auction's bid history, newest first.
func (h *Handler) ListBids(c echo.Context) error {
	auctionID, err := parseIDParam(c)
	if err != nil {
		return err
	}

	var input listBidsInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	history, err := h.ledger.ListBids(c.Request().Context(), bids.ListBidsQuery{
		AuctionID: auctionID,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	result := make([]bidResponse, len(history))
	for i, b := range history {
		result[i] = mapBid(b)
	}
	return c.JSON(http.StatusOK, map[string]any{"bids": result})
}
