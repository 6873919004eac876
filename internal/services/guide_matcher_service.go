package services

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// GuideMatcherService selects a guide whose existing assignments do not
// overlap a requested date range. Overlap is inclusive: touching
// boundaries are rejected because a guide needs the full departure and
// return day. When no guide fits, the request degrades to no guide
// instead of failing the booking.
type GuideMatcherService struct {
	guideRepo *database.GuideRepository
	logger    *logrus.Logger
}

// NewGuideMatcherService creates a new GuideMatcherService
func NewGuideMatcherService(guideRepo *database.GuideRepository, logger *logrus.Logger) *GuideMatcherService {
	return &GuideMatcherService{
		guideRepo: guideRepo,
		logger:    logger,
	}
}

// Candidates returns the guides eligible for [depart, ret] ordered by the
// tie-break rule: fewest existing assignments first, then lowest guide ID.
func (s *GuideMatcherService) Candidates(depart, ret time.Time) ([]models.GuideSchedule, error) {
	schedules, err := s.guideRepo.ListGuideSchedules()
	if err != nil {
		return nil, err
	}

	eligible := make([]models.GuideSchedule, 0, len(schedules))
	for _, sched := range schedules {
		if isEligible(sched.Assignments, depart, ret) {
			eligible = append(eligible, sched)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if len(eligible[i].Assignments) != len(eligible[j].Assignments) {
			return len(eligible[i].Assignments) < len(eligible[j].Assignments)
		}
		return eligible[i].Guide.ID.String() < eligible[j].Guide.ID.String()
	})

	return eligible, nil
}

// isEligible reports whether every existing assignment is strictly
// outside [depart, ret]. A guide with no assignments is always eligible.
func isEligible(assignments []models.GuideAssignment, depart, ret time.Time) bool {
	for _, a := range assignments {
		if !(a.StartDate.After(ret) || a.EndDate.Before(depart)) {
			return false
		}
	}
	return true
}

// MatchAndAssign binds the best available guide to the custom tour,
// walking the candidate list in tie-break order. The in-memory
// eligibility scan is only a filter; the repository re-verifies
// non-overlap inside the insert transaction, so a candidate lost to a
// concurrent request simply moves the matcher to the next one. Returns
// the assigned guide's ID, or nil when no guide could be bound (soft
// fallback, not an error).
func (s *GuideMatcherService) MatchAndAssign(customTour *models.CustomTour) (*uuid.UUID, error) {
	candidates, err := s.Candidates(customTour.DepartureDate, customTour.ReturnDate)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		assignment := &models.GuideAssignment{
			GuideID:      candidate.Guide.ID,
			CustomTourID: customTour.ID,
			StartDate:    customTour.DepartureDate,
			EndDate:      customTour.ReturnDate,
		}

		err := s.guideRepo.AssignGuide(assignment)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"guide_id":       candidate.Guide.ID,
				"custom_tour_id": customTour.ID,
				"start_date":     customTour.DepartureDate.Format("2006-01-02"),
				"end_date":       customTour.ReturnDate.Format("2006-01-02"),
			}).Info("Guide assigned to custom tour")
			guideID := candidate.Guide.ID
			return &guideID, nil
		}
		if errors.Is(err, models.ErrGuideUnavailable) {
			// Lost this guide to a concurrent booking, try the next.
			continue
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"custom_tour_id": customTour.ID,
		"candidates":     len(candidates),
	}).Info("No eligible guide, booking proceeds without one")
	return nil, nil
}
