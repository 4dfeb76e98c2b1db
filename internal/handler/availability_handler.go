package handler

import (
	"context"
	"net/http"

	"hotelbook/internal/hotel"
	"hotelbook/internal/service"

	"github.com/gin-gonic/gin"
)

type AvailabilityAPI interface {
	Search(ctx context.Context, hotelID, checkin, checkout string) ([]service.RoomOffer, error)
}

type AvailabilityHandler struct {
	errorWriter
	svc    AvailabilityAPI
	hotels *hotel.Catalog
}

func NewAvailabilityHandler(svc AvailabilityAPI, hotels *hotel.Catalog, debug bool) *AvailabilityHandler {
	return &AvailabilityHandler{errorWriter: errorWriter{debug: debug}, svc: svc, hotels: hotels}
}

// Search handles POST /api/availability.
func (h *AvailabilityHandler) Search(c *gin.Context) {
	var req struct {
		HotelID  string `json:"hotelId" binding:"required"`
		Checkin  string `json:"checkin" binding:"required"`
		Checkout string `json:"checkout" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "hotelId, checkin and checkout are required")
		return
	}
	rooms, err := h.svc.Search(c.Request.Context(), req.HotelID, req.Checkin, req.Checkout)
	if err != nil {
		if service.IsValidation(err) {
			h.serviceError(c, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, "Could not check availability. Please try again or call the property.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rooms})
}

type roomView struct {
	RoomName  string       `json:"roomName"`
	MaxGuests int          `json:"maxGuests,omitempty"`
	Prices    hotel.Prices `json:"prices"`
}

type hotelView struct {
	HotelID  string     `json:"hotelId"`
	Name     string     `json:"name"`
	Timezone string     `json:"timezone,omitempty"`
	TaxRate  float64    `json:"taxRate"`
	Rooms    []roomView `json:"rooms"`
}

// Hotels handles GET /api/hotels: the public catalogue without PMS identifiers.
func (h *AvailabilityHandler) Hotels(c *gin.Context) {
	list := h.hotels.List()
	out := make([]hotelView, 0, len(list))
	for _, ht := range list {
		v := hotelView{HotelID: ht.ID, Name: ht.Name, Timezone: ht.Timezone, TaxRate: ht.TaxRate}
		for _, r := range ht.Rooms {
			v.Rooms = append(v.Rooms, roomView{RoomName: r.Name, MaxGuests: r.MaxGuests, Prices: r.Prices})
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}
