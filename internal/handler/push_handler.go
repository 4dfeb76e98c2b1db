package handler

import (
	"net/http"

	"hotelbook/internal/service"

	"github.com/gin-gonic/gin"
)

type PushSubscriptions interface {
	Enabled() bool
	PublicKey() string
	Subscribe(req service.PushSubscriptionRequest, userAgent string) error
	Unsubscribe(endpoint string) error
}

type PushHandler struct {
	errorWriter
	svc PushSubscriptions
}

func NewPushHandler(svc PushSubscriptions, debug bool) *PushHandler {
	return &PushHandler{errorWriter: errorWriter{debug: debug}, svc: svc}
}

// VAPIDPublicKey handles GET /api/push/vapid-public.
func (h *PushHandler) VAPIDPublicKey(c *gin.Context) {
	if !h.svc.Enabled() {
		h.fail(c, http.StatusServiceUnavailable, "Push notifications are not configured", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "publicKey": h.svc.PublicKey()})
}

// Subscribe handles POST /api/push/subscribe with a browser PushSubscription JSON.
func (h *PushHandler) Subscribe(c *gin.Context) {
	var req service.PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "endpoint and keys (p256dh, auth) are required")
		return
	}
	if err := h.svc.Subscribe(req, c.Request.UserAgent()); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// Unsubscribe handles POST /api/push/unsubscribe.
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "endpoint is required")
		return
	}
	if err := h.svc.Unsubscribe(req.Endpoint); err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
