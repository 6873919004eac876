package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// CustomTourRepository handles custom tour database operations
type CustomTourRepository struct {
	db DB
}

// NewCustomTourRepository creates a new CustomTourRepository
func NewCustomTourRepository(db DB) *CustomTourRepository {
	return &CustomTourRepository{db: db}
}

// CreateCustomTour inserts a new custom tour request. The guide binding,
// if any, happens afterwards through GuideRepository.AssignGuide.
func (r *CustomTourRepository) CreateCustomTour(ct *models.CustomTour) error {
	ct.ID = uuid.New()
	ct.CreatedAt = time.Now()
	ct.UpdatedAt = ct.CreatedAt

	query := `
		INSERT INTO custom_tours (
			id, user_id, guest_count, departure_date, return_date,
			price, with_guide, guide_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		ct.ID, ct.UserID, ct.GuestCount, ct.DepartureDate, ct.ReturnDate,
		ct.Price, ct.WithGuide, ct.GuideID, ct.CreatedAt, ct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create custom tour: %w", err)
	}
	return nil
}

// GetCustomTourByID retrieves a custom tour by ID. Returns (nil, nil) when absent.
func (r *CustomTourRepository) GetCustomTourByID(id uuid.UUID) (*models.CustomTour, error) {
	var ct models.CustomTour
	query := `
		SELECT id, user_id, guest_count, departure_date, return_date,
		       price, with_guide, guide_id, created_at, updated_at
		FROM custom_tours
		WHERE id = $1`

	err := r.db.Get(&ct, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custom tour: %w", err)
	}
	return &ct, nil
}

// GetCustomToursByUser returns a user's custom tours, newest first
func (r *CustomTourRepository) GetCustomToursByUser(userID uuid.UUID, limit, offset int) ([]models.CustomTour, error) {
	var tours []models.CustomTour
	query := `
		SELECT id, user_id, guest_count, departure_date, return_date,
		       price, with_guide, guide_id, created_at, updated_at
		FROM custom_tours
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&tours, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list custom tours: %w", err)
	}
	return tours, nil
}
