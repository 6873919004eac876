package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/events"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// PaymentService drives payments through their lifecycle:
// PROCESSING -> COMPLETED | FAILED, COMPLETED -> REFUNDED. Capacity is
// only committed when a payment reaches COMPLETED, and released again on
// refund. State changes are conditional updates in the repository, so a
// concurrent duplicate confirmation settles on exactly one winner.
type PaymentService struct {
	paymentRepo *database.PaymentRepository
	capacity    *CapacityService
	gateway     *GatewayService
	publisher   *events.Publisher
	currency    string
	logger      *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo *database.PaymentRepository,
	capacity *CapacityService,
	gateway *GatewayService,
	publisher *events.Publisher,
	currency string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		capacity:    capacity,
		gateway:     gateway,
		publisher:   publisher,
		currency:    currency,
		logger:      logger,
	}
}

// InitiatePaymentParams describes the payment to initiate. Exactly one
// of TourID and CustomTourID must be set.
type InitiatePaymentParams struct {
	UserID         uuid.UUID
	TourID         *uuid.UUID
	CustomTourID   *uuid.UUID
	Amount         float64
	NumberOfPeople int
}

// Initiate calls the gateway and persists a PROCESSING payment holding
// the gateway's transaction ID. The gateway call comes first: when it
// fails or times out, no payment row exists and the booking can be
// retried safely. Capacity is not touched here.
func (s *PaymentService) Initiate(params InitiatePaymentParams) (*models.Payment, string, error) {
	if (params.TourID == nil) == (params.CustomTourID == nil) {
		return nil, "", fmt.Errorf("payment must reference exactly one of tour or custom tour")
	}

	amountStr := fmt.Sprintf("%.2f", params.Amount)
	charge, err := s.gateway.CreateCharge(amountStr)
	if err != nil {
		return nil, "", err
	}

	payment := &models.Payment{
		UserID:         params.UserID,
		TourID:         params.TourID,
		CustomTourID:   params.CustomTourID,
		Amount:         params.Amount,
		Currency:       s.currency,
		NumberOfPeople: params.NumberOfPeople,
		TransactionID:  charge.ID,
	}

	if err := s.paymentRepo.CreatePayment(payment); err != nil {
		// The gateway charge exists but nothing was debited yet; the
		// user never reaches the form, so money cannot move.
		s.logger.WithFields(logrus.Fields{
			"transaction_id": charge.ID,
			"user_id":        params.UserID,
		}).WithError(err).Error("Failed to persist initiated payment")
		return nil, "", err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"transaction_id": payment.TransactionID,
		"amount":         amountStr,
	}).Info("Payment created in PROCESSING state")

	return payment, charge.Attributes.FormURL, nil
}

// Confirm processes a gateway confirmation callback. The PROCESSING ->
// COMPLETED flip is the claim: of N concurrent callbacks for the same
// transaction ID exactly one wins the conditional update, and only the
// winner debits capacity. A callback for an already COMPLETED payment is
// a no-op. When the capacity reservation loses the race against other
// confirmations on the same tour, the payment is forced to FAILED and
// the caller gets ErrBookingRaceLost so the user-facing layer can offer
// a refund/retry flow.
func (s *PaymentService) Confirm(ctx context.Context, transactionID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetPaymentByTransactionID(transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment with transaction %s: %w", transactionID, models.ErrNotFound)
	}

	switch payment.Status {
	case models.PaymentCompleted:
		// Duplicate callback, capacity was already debited once.
		s.logger.WithField("transaction_id", transactionID).Info("Duplicate confirmation ignored")
		return payment, nil
	case models.PaymentProcessing:
		// fall through to the conditional flip
	default:
		return nil, fmt.Errorf("payment %s is %s: %w",
			payment.ID, payment.Status, models.ErrInvalidTransition)
	}

	won, err := s.paymentRepo.TransitionStatus(payment.ID, models.PaymentProcessing, models.PaymentCompleted)
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else moved the payment first. Re-read to tell a
		// concurrent duplicate (now COMPLETED, no-op) from a failure.
		current, err := s.paymentRepo.GetPaymentByID(payment.ID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == models.PaymentCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("payment %s raced to %s: %w",
			payment.ID, current.Status, models.ErrInvalidTransition)
	}

	// Custom tours have no shared capacity pool, only fixed tours debit.
	if payment.TourID != nil {
		if err := s.capacity.Reserve(*payment.TourID, payment.NumberOfPeople); err != nil {
			if _, ferr := s.paymentRepo.TransitionStatus(payment.ID, models.PaymentCompleted, models.PaymentFailed); ferr != nil {
				s.logger.WithField("payment_id", payment.ID).WithError(ferr).
					Error("Failed to fail payment after lost capacity race, needs manual reconciliation")
			}
			if errors.Is(err, models.ErrInsufficientCapacity) {
				s.publishEvent(ctx, events.BookingRaceLost, payment)
				return nil, fmt.Errorf("payment %s confirmed but seats were gone: %w",
					payment.ID, models.ErrBookingRaceLost)
			}
			return nil, err
		}
	}

	now := time.Now()
	payment.Status = models.PaymentCompleted
	payment.ProcessedAt = &now

	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"transaction_id": transactionID,
		"seats":          payment.NumberOfPeople,
	}).Info("Payment confirmed, capacity committed")

	s.publishEvent(ctx, events.BookingConfirmed, payment)
	return payment, nil
}

// Fail moves a PROCESSING payment to FAILED on a negative gateway
// callback. Idempotent: an already FAILED payment is a no-op.
func (s *PaymentService) Fail(ctx context.Context, transactionID string) error {
	payment, err := s.paymentRepo.GetPaymentByTransactionID(transactionID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("payment with transaction %s: %w", transactionID, models.ErrNotFound)
	}
	if payment.Status == models.PaymentFailed {
		return nil
	}

	won, err := s.paymentRepo.TransitionStatus(payment.ID, models.PaymentProcessing, models.PaymentFailed)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("payment %s is no longer PROCESSING: %w", payment.ID, models.ErrInvalidTransition)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"transaction_id": transactionID,
	}).Info("Payment failed at gateway")

	s.publishEvent(ctx, events.BookingFailed, payment)
	return nil
}

// Refund moves a COMPLETED payment to REFUNDED and releases its seats.
// The refund amount defaults to the full original amount. Only legal
// from COMPLETED.
func (s *PaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amount *float64) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetPaymentByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	if payment.Status != models.PaymentCompleted {
		return nil, fmt.Errorf("refund of %s payment %s: %w",
			payment.Status, paymentID, models.ErrInvalidTransition)
	}

	refundAmount := payment.Amount
	if amount != nil {
		if *amount <= 0 || *amount > payment.Amount {
			return nil, fmt.Errorf("refund amount %.2f out of range (0, %.2f]", *amount, payment.Amount)
		}
		refundAmount = *amount
	}

	won, err := s.paymentRepo.MarkRefunded(payment.ID, refundAmount)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("payment %s is no longer COMPLETED: %w",
			payment.ID, models.ErrInvalidTransition)
	}

	if payment.TourID != nil {
		if err := s.capacity.Release(*payment.TourID, payment.NumberOfPeople); err != nil {
			// The payment is already REFUNDED; an ErrInvalidRelease here
			// is an integrity breach scoped to this operation.
			s.logger.WithFields(logrus.Fields{
				"payment_id": payment.ID,
				"tour_id":    payment.TourID,
			}).WithError(err).Error("Seat release failed after refund")
			return nil, err
		}
	}

	now := time.Now()
	payment.Status = models.PaymentRefunded
	payment.RefundAmount = &refundAmount
	payment.ProcessedAt = &now

	s.logger.WithFields(logrus.Fields{
		"payment_id":    payment.ID,
		"refund_amount": refundAmount,
	}).Info("Payment refunded, seats released")

	s.publishEvent(ctx, events.BookingRefunded, payment)
	return payment, nil
}

// GetPaymentByID returns a payment or ErrNotFound
func (s *PaymentService) GetPaymentByID(paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetPaymentByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	return payment, nil
}

func (s *PaymentService) publishEvent(ctx context.Context, eventType events.EventType, p *models.Payment) {
	event := events.BookingEvent{
		Type:          eventType,
		PaymentID:     p.ID.String(),
		TransactionID: p.TransactionID,
		Seats:         p.NumberOfPeople,
		Amount:        p.Amount,
		Currency:      p.Currency,
	}
	if p.TourID != nil {
		event.TourID = p.TourID.String()
	}
	if p.CustomTourID != nil {
		event.CustomTourID = p.CustomTourID.String()
	}
	s.publisher.Publish(ctx, event)
}
