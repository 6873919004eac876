package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// paymentTransitions defines the legal state changes. The key is the
// current state, the value the set of states reachable from it.
// FAILED and REFUNDED are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  {PaymentRefunded, PaymentFailed},
	PaymentFailed:     {},
	PaymentRefunded:   {},
}

// CanTransition reports whether moving from one payment state to another
// is legal.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

// Payment represents one monetary transaction against either a Tour or a
// CustomTour (mutually exclusive). A payment is the unit of capacity
// reservation: seats are only committed when it reaches COMPLETED.
type Payment struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	UserID         uuid.UUID     `json:"user_id" db:"user_id"`
	TourID         *uuid.UUID    `json:"tour_id,omitempty" db:"tour_id"`
	CustomTourID   *uuid.UUID    `json:"custom_tour_id,omitempty" db:"custom_tour_id"`
	Amount         float64       `json:"amount" db:"amount"`
	Currency       string        `json:"currency" db:"currency"`
	NumberOfPeople int           `json:"number_of_people" db:"number_of_people"`
	TransactionID  string        `json:"transaction_id" db:"transaction_id"`
	Status         PaymentStatus `json:"status" db:"status"`
	RefundAmount   *float64      `json:"refund_amount,omitempty" db:"refund_amount"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// FixedTourBookingRequest is the payload for POST /api/v1/bookings/tours.
// It is one variant of the booking request union; the other is
// CustomTourBookingRequest.
type FixedTourBookingRequest struct {
	TourID uuid.UUID `json:"tour_id" binding:"required"`
	Seats  int       `json:"seats" binding:"required,gt=0"`
}

// BookingResponse is returned once a payment has been initiated. The
// capacity debit has NOT happened yet; it happens when the gateway
// confirms the payment.
type BookingResponse struct {
	PaymentID     uuid.UUID  `json:"payment_id"`
	TransactionID string     `json:"transaction_id"`
	FormURL       string     `json:"form_url"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	CustomTourID  *uuid.UUID `json:"custom_tour_id,omitempty"`
	WithGuide     *bool      `json:"with_guide,omitempty"`
	GuideID       *uuid.UUID `json:"guide_id,omitempty"`
}

// RefundRequest is the payload for POST /api/v1/payments/:id/refund.
// Amount defaults to the full original payment amount when omitted.
type RefundRequest struct {
	Amount *float64 `json:"amount" binding:"omitempty,gt=0"`
}

// GatewayCallback is the out-of-band confirmation delivered by the
// payment gateway. ID is the gateway's transaction identifier handed out
// at initiation.
type GatewayCallback struct {
	ID     string `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}
