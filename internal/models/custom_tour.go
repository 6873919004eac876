package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CustomTour represents a bespoke itinerary requested by a tourist.
// Once a guide is bound the record is immutable; there is no guide
// reassignment.
type CustomTour struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	GuestCount    int        `json:"guest_count" db:"guest_count"`
	DepartureDate time.Time  `json:"departure_date" db:"departure_date"`
	ReturnDate    time.Time  `json:"return_date" db:"return_date"`
	Price         float64    `json:"price" db:"price"`
	WithGuide     bool       `json:"with_guide" db:"with_guide"`
	GuideID       *uuid.UUID `json:"guide_id,omitempty" db:"guide_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// GuideAssignment binds one guide to one custom tour's date range.
// No two assignments for the same guide may overlap, boundaries included.
type GuideAssignment struct {
	ID           uuid.UUID `json:"id" db:"id"`
	GuideID      uuid.UUID `json:"guide_id" db:"guide_id"`
	CustomTourID uuid.UUID `json:"custom_tour_id" db:"custom_tour_id"`
	StartDate    time.Time `json:"start_date" db:"start_date"`
	EndDate      time.Time `json:"end_date" db:"end_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Overlaps reports whether the assignment's range overlaps [start, end].
// Touching boundaries count as overlap: a guide needs the full departure
// and return day, so back-to-back same-day transitions are rejected.
func (a *GuideAssignment) Overlaps(start, end time.Time) bool {
	return !(a.StartDate.After(end) || a.EndDate.Before(start))
}

// GuideSchedule is a guide together with their existing assignments,
// as loaded by the availability matcher.
type GuideSchedule struct {
	Guide       User
	Assignments []GuideAssignment
}

// CustomTourBookingRequest is the payload for POST /api/v1/bookings/custom.
// It is one variant of the booking request union; the other is
// FixedTourBookingRequest.
type CustomTourBookingRequest struct {
	GuestCount    int       `json:"guest_count" binding:"required,gt=0"`
	DepartureDate time.Time `json:"departure_date" binding:"required"`
	ReturnDate    time.Time `json:"return_date" binding:"required"`
	Price         float64   `json:"price" binding:"required,gt=0"`
	WithGuide     bool      `json:"with_guide"`
}

// Validate performs checks gin binding tags cannot express
func (r *CustomTourBookingRequest) Validate() error {
	if r.ReturnDate.Before(r.DepartureDate) {
		return fmt.Errorf("return_date must not be before departure_date")
	}
	return nil
}
