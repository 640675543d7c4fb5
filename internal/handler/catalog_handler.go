package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sweepstar/service-booking/internal/application"
	"github.com/sweepstar/service-booking/internal/pkg/auth"
	"github.com/sweepstar/service-booking/internal/pkg/middleware"
	"github.com/sweepstar/service-booking/internal/pkg/response"
)

// CatalogHandler handles HTTP requests for the service catalog.
type CatalogHandler struct {
	service *application.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RegisterRoutes registers catalog routes. Reads are open to any
// authenticated caller; changes are admin only.
func (h *CatalogHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	services := r.Group("/api/v1/services")
	services.Use(authMW)
	{
		services.GET("", h.ListServices)
		services.GET("/:id", h.GetService)
	}

	admin := r.Group("/api/v1/admin/services")
	admin.Use(authMW, middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("", h.CreateService)
		admin.PUT("/:id", h.UpdateService)
		admin.DELETE("/:id", h.DeactivateService)
	}
}

// ListServices handles GET /api/v1/services. Admins may pass
// include_inactive=true.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	includeInactive := false
	if c.Query("include_inactive") == "true" {
		role, _ := middleware.GetUserRole(c)
		includeInactive = role == auth.RoleAdmin
	}

	result, err := h.service.ListServices(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetService handles GET /api/v1/services/:id.
func (h *CatalogHandler) GetService(c *gin.Context) {
	serviceID, ok := pathID(c, "service")
	if !ok {
		return
	}

	result, err := h.service.GetService(c.Request.Context(), serviceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateService handles POST /api/v1/admin/services.
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req application.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateService handles PUT /api/v1/admin/services/:id.
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	serviceID, ok := pathID(c, "service")
	if !ok {
		return
	}

	var req application.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateService(c.Request.Context(), serviceID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeactivateService handles DELETE /api/v1/admin/services/:id.
func (h *CatalogHandler) DeactivateService(c *gin.Context) {
	serviceID, ok := pathID(c, "service")
	if !ok {
		return
	}

	result, err := h.service.DeactivateService(c.Request.Context(), serviceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
