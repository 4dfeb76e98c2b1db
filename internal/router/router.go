package router

import (
	"time"

	"hotelbook/config"
	"hotelbook/internal/handler"
	"hotelbook/internal/middleware"
	"hotelbook/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CRMAuthenticator guards the CRM routes and the live-feed websocket.
type CRMAuthenticator interface {
	Authenticate(token string) (string, bool)
}

type Handlers struct {
	Health       *handler.HealthHandler
	Availability *handler.AvailabilityHandler
	Booking      *handler.BookingHandler
	Webhook      *handler.StripeWebhookHandler
	Push         *handler.PushHandler
	Track        *handler.TrackHandler
	CRM          *handler.CRMHandler
	CRMAuth      CRMAuthenticator
	Hub          *ws.Hub
	Limiter      *middleware.IPRateLimiter
}

func corsConfig(cfg *config.ServerConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-crm-token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	c.AllowOrigins = cfg.AllowedOrigins
	return c
}

func Setup(cfg *config.Config, h Handlers, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(&cfg.Server)))

	r.GET("/health", h.Health.Health)

	limit := middleware.RateLimit(h.Limiter)
	crmAuth := middleware.CRMAuthRequired(h.CRMAuth)

	api := r.Group("/api")
	{
		// Stripe retries on its own schedule; never rate limit it.
		api.POST("/stripe-webhook", h.Webhook.Handle)

		api.GET("/hotels", h.Availability.Hotels)
		api.POST("/availability", limit, h.Availability.Search)
		api.POST("/create-payment-intent", limit, h.Booking.CreatePaymentIntent)
		api.POST("/update-payment-intent", limit, h.Booking.UpdatePaymentIntent)
		api.POST("/create-preauth-hold", limit, h.Booking.CreatePreauthHold)
		api.POST("/complete-pay-later-booking", limit, h.Booking.CompletePayLaterBooking)
		api.POST("/book", limit, h.Booking.Book)
		api.POST("/release-hold", crmAuth, h.Booking.ReleaseHold)
		api.POST("/capture-no-show-fee", crmAuth, h.Booking.CaptureNoShowFee)

		push := api.Group("/push")
		{
			push.GET("/vapid-public", h.Push.VAPIDPublicKey)
			push.POST("/subscribe", limit, h.Push.Subscribe)
			push.POST("/unsubscribe", limit, h.Push.Unsubscribe)
		}
		api.POST("/track", limit, h.Track.Track)

		api.POST("/crm/login", limit, h.CRM.Login)
		api.GET("/crm/ws", ws.UpgradeCRM(h.CRMAuth, h.Hub, cfg.Server.AllowedOrigins))

		crm := api.Group("/crm")
		crm.Use(crmAuth)
		{
			crm.GET("/bookings", h.CRM.ListBookings)
			crm.POST("/bookings", h.CRM.CreateBooking)
			crm.GET("/bookings/:id", h.CRM.GetBooking)
			crm.PATCH("/bookings/:id", h.CRM.UpdateBooking)
			crm.DELETE("/bookings/:id", h.CRM.DeleteBooking)
			crm.POST("/bookings/:id/confirm", h.CRM.ConfirmBooking)
			crm.GET("/leads", h.CRM.ListLeads)
			crm.POST("/leads/:id/called", h.CRM.MarkLeadCalled)
			crm.DELETE("/leads/:id", h.CRM.DeleteLead)
			crm.GET("/stats", h.CRM.Stats)
			crm.GET("/funnel", h.CRM.Funnel)
		}
	}
	return r
}
