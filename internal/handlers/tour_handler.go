package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/middleware"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// TourHandler handles seller tour inventory endpoints
type TourHandler struct {
	tourRepo *database.TourRepository
	logger   *logrus.Logger
}

// NewTourHandler creates a new TourHandler
func NewTourHandler(tourRepo *database.TourRepository, logger *logrus.Logger) *TourHandler {
	return &TourHandler{
		tourRepo: tourRepo,
		logger:   logger,
	}
}

// CreateTour handles POST /api/v1/tours
func (h *TourHandler) CreateTour(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CreateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tour := &models.Tour{
		SellerID:      userCtx.UserID,
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		MaxCapacity:   req.MaxCapacity,
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Available:     true,
	}

	if err := h.tourRepo.CreateTour(tour); err != nil {
		respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tour_id":   tour.ID,
		"seller_id": userCtx.UserID,
		"capacity":  tour.MaxCapacity,
	}).Info("Tour created")

	c.JSON(http.StatusCreated, tour)
}

// ListTours handles GET /api/v1/tours
func (h *TourHandler) ListTours(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	onlyAvailable := c.DefaultQuery("available", "true") == "true"

	tours, err := h.tourRepo.ListTours(onlyAvailable, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// GetTour handles GET /api/v1/tours/:id
func (h *TourHandler) GetTour(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}

	tour, err := h.tourRepo.GetTourByID(tourID)
	if err != nil {
		respondError(c, err)
		return
	}
	if tour == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tour not found"})
		return
	}

	c.JSON(http.StatusOK, tour)
}

// UpdateAvailability handles PATCH /api/v1/tours/:id/availability
func (h *TourHandler) UpdateAvailability(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tour id"})
		return
	}

	var req models.UpdateTourAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tour, err := h.tourRepo.GetTourByID(tourID)
	if err != nil {
		respondError(c, err)
		return
	}
	if tour == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tour not found"})
		return
	}
	if tour.SellerID != userCtx.UserID && !userCtx.HasRole(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if err := h.tourRepo.SetAvailability(tourID, *req.Available); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tour_id": tourID, "available": *req.Available})
}
