package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/funnel"
	"hotelbook/internal/hotel"
	"hotelbook/internal/middleware"
	"hotelbook/internal/models"
	"hotelbook/internal/repository"
	"hotelbook/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type CRMBookings interface {
	List(ctx context.Context, f repository.BookingFilter, page, limit int) ([]models.Booking, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Booking, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type CRMLeads interface {
	List(called *bool, page, limit int) ([]models.PaymentDeclinedLead, int64, error)
	MarkCalled(id uint) error
	Delete(id uint) error
}

type CRMStatsSource interface {
	Stats(now time.Time, days int) (*repository.CRMStats, error)
}

type AuditStore interface {
	Create(l *models.AuditLog) error
	ListByResource(resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type ManualBooker interface {
	CreateManualBooking(ctx context.Context, m service.ManualBooking) (*models.Booking, error)
}

type CRMLogin interface {
	Login(operator, password string) (*service.CRMSession, error)
}

type CRMHandler struct {
	errorWriter
	bookings CRMBookings
	leads    CRMLeads
	stats    CRMStatsSource
	audit    AuditStore
	manual   ManualBooker
	login    CRMLogin
	funnel   funnel.Store
	log      *zap.Logger
}

func NewCRMHandler(bookings CRMBookings, leads CRMLeads, stats CRMStatsSource, audit AuditStore, manual ManualBooker, login CRMLogin, funnelStore funnel.Store, log *zap.Logger, debug bool) *CRMHandler {
	return &CRMHandler{
		errorWriter: errorWriter{debug: debug},
		bookings:    bookings,
		leads:       leads,
		stats:       stats,
		audit:       audit,
		manual:      manual,
		login:       login,
		funnel:      funnelStore,
		log:         log.Named("crm"),
	}
}

// Login handles POST /api/crm/login.
func (h *CRMHandler) Login(c *gin.Context) {
	var req struct {
		Operator string `json:"operator"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "password is required")
		return
	}
	session, err := h.login.Login(strings.TrimSpace(req.Operator), req.Password)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, session.Operator, "crm_login", "session", "", nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": session.Token, "expiresAt": session.ExpiresAt, "operator": session.Operator})
}

// ListBookings handles GET /api/crm/bookings.
func (h *CRMHandler) ListBookings(c *gin.Context) {
	f := repository.BookingFilter{
		Search:      c.Query("search"),
		HotelID:     c.Query("hotelId"),
		CRMStage:    c.Query("stage"),
		BookingType: c.Query("type"),
		HoldStatus:  c.Query("holdStatus"),
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(hotel.DateLayout, v)
			if err != nil {
				h.badRequest(c, key+" must be YYYY-MM-DD")
				return
			}
			*dst = &t
		}
	}
	page, limit := parsePagination(c)
	list, total, err := h.bookings.List(c.Request.Context(), f, page, limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "total": total, "page": page, "limit": limit})
}

// GetBooking handles GET /api/crm/bookings/:id.
func (h *CRMHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	b, err := h.bookings.GetByID(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	trail, err := h.audit.ListByResource("booking", strconv.FormatUint(uint64(id), 10), 50)
	if err != nil {
		h.log.Warn("load audit trail", zap.Uint("booking_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": b, "auditLog": trail})
}

// bookingPatchColumns maps the JSON fields operators may edit to their columns.
var bookingPatchColumns = map[string]string{
	"crmStage":            "crm_stage",
	"callStatus":          "call_status",
	"notes":               "notes",
	"guestFirstName":      "guest_first_name",
	"guestLastName":       "guest_last_name",
	"guestEmail":          "guest_email",
	"guestPhone":          "guest_phone",
	"pmsConfirmationCode": "pms_confirmation_code",
}

func bookingUpdates(patch map[string]interface{}) (map[string]interface{}, error) {
	safe := make(map[string]interface{})
	for k, v := range patch {
		col, ok := bookingPatchColumns[k]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", k)
		}
		switch k {
		case "crmStage":
			if !domain.CRMStages[s] {
				return nil, fmt.Errorf("unknown crmStage %q", s)
			}
		case "callStatus":
			if !domain.CallStatuses[s] {
				return nil, fmt.Errorf("unknown callStatus %q", s)
			}
		}
		safe[col] = strings.TrimSpace(s)
	}
	if len(safe) == 0 {
		return nil, fmt.Errorf("no valid fields to update")
	}
	return safe, nil
}

// UpdateBooking handles PATCH /api/crm/bookings/:id.
func (h *CRMHandler) UpdateBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, "invalid JSON body")
		return
	}
	safe, err := bookingUpdates(patch)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	if stage, ok := safe["crm_stage"]; ok && stage == domain.CRMStageConfirmed {
		safe["confirmed_at"] = time.Now()
	}
	if err := h.bookings.Update(c.Request.Context(), id, safe); err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "booking_updated", "booking", strconv.FormatUint(uint64(id), 10), patch)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ConfirmBooking handles POST /api/crm/bookings/:id/confirm.
func (h *CRMHandler) ConfirmBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	updates := map[string]interface{}{"crm_stage": domain.CRMStageConfirmed, "confirmed_at": time.Now()}
	if err := h.bookings.Update(c.Request.Context(), id, updates); err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "booking_confirmed", "booking", strconv.FormatUint(uint64(id), 10), nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteBooking handles DELETE /api/crm/bookings/:id.
func (h *CRMHandler) DeleteBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	if err := h.bookings.Delete(c.Request.Context(), id); err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "booking_deleted", "booking", strconv.FormatUint(uint64(id), 10), nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CreateBooking handles POST /api/crm/bookings for phone, walk-in and Zapier bookings.
func (h *CRMHandler) CreateBooking(c *gin.Context) {
	var req service.ManualBooking
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "hotelId, roomName, checkin and checkout are required")
		return
	}
	b, err := h.manual.CreateManualBooking(c.Request.Context(), req)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "booking_created", "booking", strconv.FormatUint(uint64(b.ID), 10), map[string]interface{}{"source": b.Source})
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": b})
}

// ListLeads handles GET /api/crm/leads?called=true|false.
func (h *CRMHandler) ListLeads(c *gin.Context) {
	var called *bool
	if v := c.Query("called"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.badRequest(c, "called must be true or false")
			return
		}
		called = &b
	}
	page, limit := parsePagination(c)
	list, total, err := h.leads.List(called, page, limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to list leads", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "total": total, "page": page, "limit": limit})
}

// MarkLeadCalled handles POST /api/crm/leads/:id/called.
func (h *CRMHandler) MarkLeadCalled(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	if err := h.leads.MarkCalled(id); err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "lead_called", "lead", strconv.FormatUint(uint64(id), 10), nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteLead handles DELETE /api/crm/leads/:id.
func (h *CRMHandler) DeleteLead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.badRequest(c, "invalid id")
		return
	}
	if err := h.leads.Delete(id); err != nil {
		h.serviceError(c, err)
		return
	}
	h.record(c, middleware.GetOperator(c), "lead_deleted", "lead", strconv.FormatUint(uint64(id), 10), nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stats handles GET /api/crm/stats?days=30.
func (h *CRMHandler) Stats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}
	stats, err := h.stats.Stats(time.Now(), days)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats, "days": days})
}

// Funnel handles GET /api/crm/funnel?limit=100.
func (h *CRMHandler) Funnel(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	list, err := h.funnel.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "Failed to load funnel events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

func (h *CRMHandler) record(c *gin.Context, actor, action, resource, resourceID string, metadata map[string]interface{}) {
	entry := &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			entry.Metadata = datatypes.JSON(b)
		}
	}
	if err := h.audit.Create(entry); err != nil {
		h.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
