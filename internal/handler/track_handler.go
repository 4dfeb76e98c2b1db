package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"hotelbook/internal/events"
	"hotelbook/internal/funnel"
	"hotelbook/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TrackHandler struct {
	errorWriter
	funnel funnel.Store
	bus    events.Bus
	log    *zap.Logger
	now    func() time.Time
}

func NewTrackHandler(store funnel.Store, bus events.Bus, log *zap.Logger, debug bool) *TrackHandler {
	return &TrackHandler{errorWriter: errorWriter{debug: debug}, funnel: store, bus: bus, log: log.Named("track"), now: time.Now}
}

// Track handles POST /api/track {event_name, ...}. The payload is enriched, kept in the funnel log
// and forwarded asynchronously to the marketing webhook for its event name.
func (h *TrackHandler) Track(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	name, _ := body["event_name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		h.badRequest(c, "event_name is required")
		return
	}
	now := h.now().UTC()
	eventID, _ := body["event_id"].(string)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	body["event_name"] = name
	body["event_id"] = eventID
	body["event_time"] = now.Unix()
	body["client_ip"] = c.ClientIP()
	body["user_agent"] = c.Request.UserAgent()

	hotelID, _ := body["hotel_id"].(string)
	if hotelID == "" {
		hotelID, _ = body["hotelId"].(string)
	}
	data := make(map[string]interface{}, len(body))
	for k, v := range body {
		switch k {
		case "event_name", "event_id", "event_time", "client_ip", "user_agent":
		default:
			data[k] = v
		}
	}
	fe := funnel.Event{
		ID:        eventID,
		Name:      name,
		Time:      now,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		HotelID:   hotelID,
		Data:      data,
	}
	if err := h.funnel.Record(c.Request.Context(), fe); err != nil {
		h.log.Warn("funnel record failed", zap.String("event_name", name), zap.Error(err))
	}

	payload, err := json.Marshal(body)
	if err == nil {
		if e, err := events.New(events.TypeMarketingTrack, service.MarketingTrack{EventName: name, Payload: payload}); err == nil {
			h.bus.Publish(c.Request.Context(), e)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "event_id": eventID})
}
