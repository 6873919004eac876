package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
)

// GuideHandler handles guide roster endpoints
type GuideHandler struct {
	guideRepo *database.GuideRepository
	logger    *logrus.Logger
}

// NewGuideHandler creates a new GuideHandler
func NewGuideHandler(guideRepo *database.GuideRepository, logger *logrus.Logger) *GuideHandler {
	return &GuideHandler{
		guideRepo: guideRepo,
		logger:    logger,
	}
}

// ListGuides handles GET /api/v1/guides, returning each guide with their
// current assignments so administrators can inspect the schedule.
func (h *GuideHandler) ListGuides(c *gin.Context) {
	schedules, err := h.guideRepo.ListGuideSchedules()
	if err != nil {
		respondError(c, err)
		return
	}

	type guideEntry struct {
		ID              string      `json:"id"`
		FirstName       string      `json:"first_name"`
		LastName        string      `json:"last_name"`
		AssignmentCount int         `json:"assignment_count"`
		Assignments     interface{} `json:"assignments"`
	}

	guides := make([]guideEntry, len(schedules))
	for i, s := range schedules {
		guides[i] = guideEntry{
			ID:              s.Guide.ID.String(),
			FirstName:       s.Guide.FirstName,
			LastName:        s.Guide.LastName,
			AssignmentCount: len(s.Assignments),
			Assignments:     s.Assignments,
		}
	}

	c.JSON(http.StatusOK, gin.H{"guides": guides})
}
