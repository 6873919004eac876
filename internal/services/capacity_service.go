package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// CapacityService owns the seat-count invariant for fixed-departure
// tours: 0 <= available_capacity <= max_capacity at all times. Both
// operations are single conditional updates in the repository, so the
// precondition check and the mutation are indivisible.
type CapacityService struct {
	tourRepo *database.TourRepository
	logger   *logrus.Logger
}

// NewCapacityService creates a new CapacityService
func NewCapacityService(tourRepo *database.TourRepository, logger *logrus.Logger) *CapacityService {
	return &CapacityService{
		tourRepo: tourRepo,
		logger:   logger,
	}
}

// Reserve decrements a tour's available capacity by the given seats.
// Fails with ErrInsufficientCapacity when the tour is closed or the seats
// exceed what is left.
func (s *CapacityService) Reserve(tourID uuid.UUID, seats int) error {
	err := s.tourRepo.ReserveSeats(tourID, seats)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tour_id": tourID,
			"seats":   seats,
		}).WithError(err).Warn("Seat reservation failed")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id": tourID,
		"seats":   seats,
	}).Info("Seats reserved")
	return nil
}

// Release increments a tour's available capacity by the given seats,
// capped at max capacity. ErrInvalidRelease signals a double release
// upstream and is logged as an integrity breach.
func (s *CapacityService) Release(tourID uuid.UUID, seats int) error {
	err := s.tourRepo.ReleaseSeats(tourID, seats)
	if err != nil {
		entry := s.logger.WithFields(logrus.Fields{
			"tour_id": tourID,
			"seats":   seats,
		}).WithError(err)
		if errors.Is(err, models.ErrInvalidRelease) {
			entry.Error("Seat release would exceed max capacity")
		} else {
			entry.Warn("Seat release failed")
		}
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id": tourID,
		"seats":   seats,
	}).Info("Seats released")
	return nil
}
