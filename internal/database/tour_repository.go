package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// TourRepository handles tour database operations
type TourRepository struct {
	db DB
}

// NewTourRepository creates a new TourRepository
func NewTourRepository(db DB) *TourRepository {
	return &TourRepository{db: db}
}

// CreateTour inserts a new tour. AvailableCapacity starts at MaxCapacity.
func (r *TourRepository) CreateTour(tour *models.Tour) error {
	tour.ID = uuid.New()
	tour.AvailableCapacity = tour.MaxCapacity
	tour.CreatedAt = time.Now()
	tour.UpdatedAt = tour.CreatedAt

	query := `
		INSERT INTO tours (
			id, seller_id, title, description, price,
			max_capacity, available_capacity, departure_date, return_date,
			available, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(query,
		tour.ID, tour.SellerID, tour.Title, tour.Description, tour.Price,
		tour.MaxCapacity, tour.AvailableCapacity, tour.DepartureDate, tour.ReturnDate,
		tour.Available, tour.CreatedAt, tour.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

// GetTourByID retrieves a tour by ID. Returns (nil, nil) when absent.
func (r *TourRepository) GetTourByID(tourID uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	query := `
		SELECT id, seller_id, title, description, price,
		       max_capacity, available_capacity, departure_date, return_date,
		       available, created_at, updated_at
		FROM tours
		WHERE id = $1`

	err := r.db.Get(&tour, query, tourID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}
	return &tour, nil
}

// ListTours returns tours ordered by departure date
func (r *TourRepository) ListTours(onlyAvailable bool, limit, offset int) ([]models.Tour, error) {
	query := `
		SELECT id, seller_id, title, description, price,
		       max_capacity, available_capacity, departure_date, return_date,
		       available, created_at, updated_at
		FROM tours`
	if onlyAvailable {
		query += ` WHERE available = TRUE AND departure_date > NOW()`
	}
	query += ` ORDER BY departure_date LIMIT $1 OFFSET $2`

	var tours []models.Tour
	if err := r.db.Select(&tours, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list tours: %w", err)
	}
	return tours, nil
}

// SetAvailability flips the booking gate on a tour
func (r *TourRepository) SetAvailability(tourID uuid.UUID, available bool) error {
	result, err := r.db.Exec(`
		UPDATE tours
		SET available = $2, updated_at = NOW()
		WHERE id = $1`, tourID, available)
	if err != nil {
		return fmt.Errorf("failed to update tour availability: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("tour %s: %w", tourID, models.ErrNotFound)
	}
	return nil
}

// ReserveSeats atomically decrements available capacity. The precondition
// (tour open, enough seats) and the decrement are one conditional UPDATE
// so concurrent confirmations cannot both pass a stale check.
func (r *TourRepository) ReserveSeats(tourID uuid.UUID, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seats must be positive, got %d", seats)
	}

	result, err := r.db.Exec(`
		UPDATE tours
		SET available_capacity = available_capacity - $2, updated_at = NOW()
		WHERE id = $1
		  AND available = TRUE
		  AND available_capacity >= $2`, tourID, seats)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reserve result: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Nothing updated: missing tour or failed precondition.
	tour, err := r.GetTourByID(tourID)
	if err != nil {
		return err
	}
	if tour == nil {
		return fmt.Errorf("tour %s: %w", tourID, models.ErrNotFound)
	}
	return fmt.Errorf("tour %s has %d of %d seats left, requested %d: %w",
		tourID, tour.AvailableCapacity, tour.MaxCapacity, seats, models.ErrInsufficientCapacity)
}

// ReleaseSeats atomically increments available capacity, refusing any
// increment that would exceed max capacity. Exceeding the cap means a
// double release upstream, surfaced as ErrInvalidRelease.
func (r *TourRepository) ReleaseSeats(tourID uuid.UUID, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seats must be positive, got %d", seats)
	}

	result, err := r.db.Exec(`
		UPDATE tours
		SET available_capacity = available_capacity + $2, updated_at = NOW()
		WHERE id = $1
		  AND available_capacity + $2 <= max_capacity`, tourID, seats)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read release result: %w", err)
	}
	if rows == 1 {
		return nil
	}

	tour, err := r.GetTourByID(tourID)
	if err != nil {
		return err
	}
	if tour == nil {
		return fmt.Errorf("tour %s: %w", tourID, models.ErrNotFound)
	}
	return fmt.Errorf("releasing %d seats on tour %s (available %d, max %d): %w",
		seats, tourID, tour.AvailableCapacity, tour.MaxCapacity, models.ErrInvalidRelease)
}
