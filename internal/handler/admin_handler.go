package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sweepstar/service-booking/internal/application"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/pkg/auth"
	"github.com/sweepstar/service-booking/internal/pkg/middleware"
	"github.com/sweepstar/service-booking/internal/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/bookings/number/:number", h.GetBookingByNumber)
		admin.GET("/stats/bookings", h.BookingStats)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	var (
		filter bookingDomain.Filter
		ok     bool
	)
	if filter.Status, ok = queryStatus(c); !ok {
		return
	}
	if filter.ClientID, ok = queryUUID(c, "client_id"); !ok {
		return
	}
	if filter.ProviderID, ok = queryUUID(c, "provider_id"); !ok {
		return
	}
	if filter.ServiceID, ok = queryUUID(c, "service_id"); !ok {
		return
	}
	if filter.ScheduledFrom, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.ScheduledTo, ok = queryTime(c, "to"); !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListAllBookings(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBookingByNumber handles GET /api/v1/admin/bookings/number/:number.
func (h *AdminBookingHandler) GetBookingByNumber(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetBookingByNumber(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
