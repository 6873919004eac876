package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// respondError maps booking engine error conditions to HTTP responses.
// NotFound and InsufficientCapacity are expected user-facing conditions;
// GatewayUnavailable is retryable; BookingRaceLost gets its own code so
// clients can offer a refund/retry flow; InvalidTransition and
// InvalidRelease are integrity bugs scoped to the one request.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrInsufficientCapacity):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "insufficient_capacity",
			"message": err.Error(),
		})
	case errors.Is(err, models.ErrBookingRaceLost):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "booking_race_lost",
			"message": "payment was confirmed but the seats were taken by a competing booking",
		})
	case errors.Is(err, models.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "gateway_unavailable",
			"message": "payment gateway is unavailable, please retry",
			"retry":   true,
		})
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrInvalidRelease):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
