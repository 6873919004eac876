package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/cache"
	"github.com/tripmark/tour-marketplace-backend/internal/middleware"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
	"github.com/tripmark/tour-marketplace-backend/internal/services"
)

// PaymentHandler handles the gateway webhook and payment endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	guard          *cache.IdempotencyGuard
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService, guard *cache.IdempotencyGuard, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		guard:          guard,
		logger:         logger,
	}
}

// Webhook handles POST /api/v1/payments/webhook, the out-of-band
// confirmation callback from the gateway. Duplicate callbacks are shed
// by the redis claim first; the conditional status update underneath
// stays authoritative either way.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var callback models.GatewayCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback: " + err.Error()})
		return
	}

	claimed := true
	if h.guard != nil {
		var err error
		claimed, err = h.guard.Claim(c.Request.Context(), callback.ID)
		if err != nil {
			// Redis being down must not drop confirmations; the database
			// transition guard still deduplicates.
			h.logger.WithError(err).Warn("Idempotency guard unavailable, relying on database guard")
			claimed = true
		}
	}
	if !claimed {
		h.logger.WithField("transaction_id", callback.ID).Info("Duplicate webhook shed by idempotency guard")
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	switch strings.ToLower(callback.Status) {
	case "succeeded", "success", "paid":
		payment, err := h.paymentService.Confirm(c.Request.Context(), callback.ID)
		if err != nil {
			h.releaseClaimIfRetryable(c, callback.ID, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "confirmed",
			"payment_id": payment.ID,
		})
	case "failed", "cancelled", "expired":
		if err := h.paymentService.Fail(c.Request.Context(), callback.ID); err != nil {
			h.releaseClaimIfRetryable(c, callback.ID, err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "failed"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown callback status: " + callback.Status})
	}
}

// releaseClaimIfRetryable frees the idempotency claim for errors a
// gateway retry could actually fix. Definitive outcomes (race lost,
// illegal transition) keep the claim so retries stay cheap.
func (h *PaymentHandler) releaseClaimIfRetryable(c *gin.Context, transactionID string, err error) {
	if h.guard == nil {
		return
	}
	if errors.Is(err, models.ErrBookingRaceLost) || errors.Is(err, models.ErrInvalidTransition) {
		return
	}
	if releaseErr := h.guard.Release(c.Request.Context(), transactionID); releaseErr != nil {
		h.logger.WithError(releaseErr).Warn("Failed to release idempotency claim")
	}
}

// Refund handles POST /api/v1/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	payment, err := h.paymentService.Refund(c.Request.Context(), paymentID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	payment, err := h.paymentService.GetPaymentByID(paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Owners see their own payments, admins see everything.
	if payment.UserID != userCtx.UserID && !userCtx.HasRole(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, payment)
}
