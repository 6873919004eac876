package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tour represents a fixed-departure tour published by a seller.
// AvailableCapacity only moves on confirmed payments (decrement) and
// refunds (increment); it never exceeds MaxCapacity and never goes
// negative. MaxCapacity is immutable after creation.
type Tour struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SellerID          uuid.UUID `json:"seller_id" db:"seller_id"`
	Title             string    `json:"title" db:"title"`
	Description       string    `json:"description" db:"description"`
	Price             float64   `json:"price" db:"price"`
	MaxCapacity       int       `json:"max_capacity" db:"max_capacity"`
	AvailableCapacity int       `json:"available_capacity" db:"available_capacity"`
	DepartureDate     time.Time `json:"departure_date" db:"departure_date"`
	ReturnDate        time.Time `json:"return_date" db:"return_date"`
	Available         bool      `json:"available" db:"available"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// IsBookable reports whether the tour can accept a reservation for the
// given number of seats. This is the informational pre-check used by the
// orchestrator; the authoritative check happens in the conditional
// capacity decrement at confirmation time.
func (t *Tour) IsBookable(seats int) bool {
	return t.Available && seats > 0 && seats <= t.AvailableCapacity
}

// CreateTourRequest is the payload for POST /api/v1/tours
type CreateTourRequest struct {
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	Price         float64   `json:"price" binding:"required,gt=0"`
	MaxCapacity   int       `json:"max_capacity" binding:"required,gt=0"`
	DepartureDate time.Time `json:"departure_date" binding:"required"`
	ReturnDate    time.Time `json:"return_date" binding:"required"`
}

// Validate performs checks gin binding tags cannot express
func (r *CreateTourRequest) Validate() error {
	if r.ReturnDate.Before(r.DepartureDate) {
		return fmt.Errorf("return_date must not be before departure_date")
	}
	return nil
}

// UpdateTourAvailabilityRequest toggles the booking gate on a tour
type UpdateTourAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}
