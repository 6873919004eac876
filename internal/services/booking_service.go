package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// BookingService is the entry point request handlers use. It composes
// the guide matcher, the capacity ledger and the payment lifecycle into
// one booking operation. The capacity check here is informational; the
// authoritative debit happens when the gateway confirms the payment.
type BookingService struct {
	tourRepo       *database.TourRepository
	customTourRepo *database.CustomTourRepository
	matcher        *GuideMatcherService
	payments       *PaymentService
	logger         *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	tourRepo *database.TourRepository,
	customTourRepo *database.CustomTourRepository,
	matcher *GuideMatcherService,
	payments *PaymentService,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tourRepo:       tourRepo,
		customTourRepo: customTourRepo,
		matcher:        matcher,
		payments:       payments,
		logger:         logger,
	}
}

// BookFixedTour books seats on a fixed-departure tour. Sequence: validate
// the tour is open, pre-check capacity, initiate the payment. The PROCESSING
// payment row referencing the tour and seat count is the tentative hold;
// seats are debited only at confirmation.
func (s *BookingService) BookFixedTour(userID uuid.UUID, req *models.FixedTourBookingRequest) (*models.BookingResponse, error) {
	tour, err := s.tourRepo.GetTourByID(req.TourID)
	if err != nil {
		return nil, err
	}
	if tour == nil {
		return nil, fmt.Errorf("tour %s: %w", req.TourID, models.ErrNotFound)
	}
	if !tour.IsBookable(req.Seats) {
		return nil, fmt.Errorf("tour %s cannot take %d seats (available %d, open %t): %w",
			tour.ID, req.Seats, tour.AvailableCapacity, tour.Available, models.ErrInsufficientCapacity)
	}

	tourID := tour.ID
	payment, formURL, err := s.payments.Initiate(InitiatePaymentParams{
		UserID:         userID,
		TourID:         &tourID,
		Amount:         tour.Price * float64(req.Seats),
		NumberOfPeople: req.Seats,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tour_id":        tour.ID,
		"user_id":        userID,
		"seats":          req.Seats,
		"transaction_id": payment.TransactionID,
	}).Info("Fixed tour booking initiated")

	return &models.BookingResponse{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		FormURL:       formURL,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	}, nil
}

// BookCustomTour books a bespoke itinerary. With WithGuide requested the
// matcher tries to bind a guide; when none is available the booking
// proceeds without one (soft fallback) and the persisted custom tour
// reflects the downgraded outcome. At most one guide assignment is
// created per custom tour.
func (s *BookingService) BookCustomTour(userID uuid.UUID, req *models.CustomTourBookingRequest) (*models.BookingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customTour := &models.CustomTour{
		UserID:        userID,
		GuestCount:    req.GuestCount,
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Price:         req.Price,
		WithGuide:     false,
	}
	if err := s.customTourRepo.CreateCustomTour(customTour); err != nil {
		return nil, err
	}

	if req.WithGuide {
		guideID, err := s.matcher.MatchAndAssign(customTour)
		if err != nil {
			return nil, err
		}
		customTour.GuideID = guideID
		customTour.WithGuide = guideID != nil
	}

	customTourID := customTour.ID
	payment, formURL, err := s.payments.Initiate(InitiatePaymentParams{
		UserID:         userID,
		CustomTourID:   &customTourID,
		Amount:         req.Price,
		NumberOfPeople: req.GuestCount,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"custom_tour_id": customTour.ID,
		"user_id":        userID,
		"with_guide":     customTour.WithGuide,
		"transaction_id": payment.TransactionID,
	}).Info("Custom tour booking initiated")

	withGuide := customTour.WithGuide
	return &models.BookingResponse{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		FormURL:       formURL,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		CustomTourID:  &customTourID,
		WithGuide:     &withGuide,
		GuideID:       customTour.GuideID,
	}, nil
}
