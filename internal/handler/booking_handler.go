package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sweepstar/service-booking/internal/application"
	"github.com/sweepstar/service-booking/internal/pkg/auth"
	"github.com/sweepstar/service-booking/internal/pkg/middleware"
	"github.com/sweepstar/service-booking/internal/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service      *application.BookingService
	claims       *application.ClaimCoordinator
	claimLimiter gin.HandlerFunc
}

// NewBookingHandler creates a new BookingHandler. claimLimiter guards the
// accept endpoint.
func NewBookingHandler(service *application.BookingService, claims *application.ClaimCoordinator, claimLimiter gin.HandlerFunc) *BookingHandler {
	return &BookingHandler{service: service, claims: claims, claimLimiter: claimLimiter}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	r.POST("/api/v1/pricing/preview", authMW, h.PreviewPrice)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleClient), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/available", middleware.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.ListAvailable)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id", middleware.RequireRole(auth.RoleClient, auth.RoleAdmin), h.EditBooking)
		bookings.POST("/:id/accept", middleware.RequireRole(auth.RoleProvider), h.claimLimiter, h.AcceptBooking)
		bookings.POST("/:id/transitions", h.TransitionStatus)
		bookings.POST("/:id/rebook", middleware.RequireRole(auth.RoleClient), h.RebookBooking)
	}
}

// PreviewPrice handles POST /api/v1/pricing/preview.
func (h *BookingHandler) PreviewPrice(c *gin.Context) {
	var req application.PreviewPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.PreviewPrice(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Clients see their own bookings,
// providers the ones assigned to them, admins all of them.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	status, ok := queryStatus(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListBookings(c.Request.Context(), actor, status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ListAvailable handles GET /api/v1/bookings/available.
func (h *BookingHandler) ListAvailable(c *gin.Context) {
	serviceID, ok := queryUUID(c, "service_id")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListAvailable(c.Request.Context(), application.AvailableQuery{
		ServiceID: serviceID,
		From:      from,
		To:        to,
	}, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), actor, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// EditBooking handles PUT /api/v1/bookings/:id.
func (h *BookingHandler) EditBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.EditBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.EditBooking(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.claims.AcceptBooking(c.Request.Context(), bookingID, actor.ID, req.ExpectedVersion)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// TransitionStatus handles POST /api/v1/bookings/:id/transitions.
func (h *BookingHandler) TransitionStatus(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.TransitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.TransitionStatus(c.Request.Context(), actor, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RebookBooking handles POST /api/v1/bookings/:id/rebook.
func (h *BookingHandler) RebookBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req application.RebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RebookBooking(c.Request.Context(), actor.ID, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
