package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/pkg/middleware"
	"github.com/sweepstar/service-booking/internal/pkg/pagination"
	"github.com/sweepstar/service-booking/internal/pkg/response"
)

// actorFrom builds the calling Actor from the authenticated context. It
// writes a 401 and returns false when the context has no identity.
func actorFrom(c *gin.Context) (bookingDomain.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return bookingDomain.Actor{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return bookingDomain.Actor{}, false
	}
	return bookingDomain.Actor{ID: userID, Role: bookingDomain.Role(role)}, true
}

// pathID parses the :id path parameter, writing a 400 on failure.
func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return pagination.Normalize(page, limit)
}

func queryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, "invalid "+key)
		return nil, false
	}
	return &id, true
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.BadRequest(c, key+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}

func queryStatus(c *gin.Context) (*bookingDomain.BookingStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status, err := bookingDomain.ParseBookingStatus(raw)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}
	return &status, true
}
