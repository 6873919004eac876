package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// GuideRepository handles guide and guide assignment database operations
type GuideRepository struct {
	db DB
}

// NewGuideRepository creates a new GuideRepository
func NewGuideRepository(db DB) *GuideRepository {
	return &GuideRepository{db: db}
}

// ListGuideSchedules loads every active guide together with their
// existing assignments, ordered by guide ID for reproducible matching.
func (r *GuideRepository) ListGuideSchedules() ([]models.GuideSchedule, error) {
	var guides []models.User
	err := r.db.Select(&guides, `
		SELECT id, email, password_hash, first_name, last_name, roles, status, created_at, updated_at
		FROM users
		WHERE 'guide' = ANY(roles) AND status = 'active'
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guides: %w", err)
	}

	schedules := make([]models.GuideSchedule, len(guides))
	index := make(map[uuid.UUID]int, len(guides))
	for i, g := range guides {
		schedules[i] = models.GuideSchedule{Guide: g}
		index[g.ID] = i
	}

	var assignments []models.GuideAssignment
	err = r.db.Select(&assignments, `
		SELECT id, guide_id, custom_tour_id, start_date, end_date, created_at
		FROM guide_assignments
		ORDER BY guide_id, start_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guide assignments: %w", err)
	}

	for _, a := range assignments {
		if i, ok := index[a.GuideID]; ok {
			schedules[i].Assignments = append(schedules[i].Assignments, a)
		}
	}
	return schedules, nil
}

// GetAssignmentsByGuide returns a guide's assignments ordered by start date
func (r *GuideRepository) GetAssignmentsByGuide(guideID uuid.UUID) ([]models.GuideAssignment, error) {
	var assignments []models.GuideAssignment
	err := r.db.Select(&assignments, `
		SELECT id, guide_id, custom_tour_id, start_date, end_date, created_at
		FROM guide_assignments
		WHERE guide_id = $1
		ORDER BY start_date`, guideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guide assignments: %w", err)
	}
	return assignments, nil
}

// AssignGuide binds a guide to a custom tour's date range. The guide row
// is locked for the duration of the transaction and the non-overlap
// invariant is re-verified before the insert, so two concurrent requests
// cannot both bind the same guide to overlapping ranges. The custom tour
// row is updated in the same transaction.
func (r *GuideRepository) AssignGuide(assignment *models.GuideAssignment) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialize competing assignments per guide.
	var locked uuid.UUID
	err = tx.QueryRow(`SELECT id FROM users WHERE id = $1 AND 'guide' = ANY(roles) FOR UPDATE`,
		assignment.GuideID).Scan(&locked)
	if err == sql.ErrNoRows {
		return fmt.Errorf("guide %s: %w", assignment.GuideID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock guide row: %w", err)
	}

	assignment.ID = uuid.New()

	// Touching boundaries count as overlap, hence <= / >=.
	result, err := tx.Exec(`
		INSERT INTO guide_assignments (id, guide_id, custom_tour_id, start_date, end_date, created_at)
		SELECT $1, $2, $3, $4, $5, NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM guide_assignments
			WHERE guide_id = $2
			  AND start_date <= $5
			  AND end_date >= $4
		)`,
		assignment.ID, assignment.GuideID, assignment.CustomTourID,
		assignment.StartDate, assignment.EndDate)
	if err != nil {
		return fmt.Errorf("failed to insert guide assignment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read assignment result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("guide %s overlaps %s..%s: %w",
			assignment.GuideID,
			assignment.StartDate.Format("2006-01-02"),
			assignment.EndDate.Format("2006-01-02"),
			models.ErrGuideUnavailable)
	}

	_, err = tx.Exec(`
		UPDATE custom_tours
		SET with_guide = TRUE, guide_id = $2, updated_at = NOW()
		WHERE id = $1`,
		assignment.CustomTourID, assignment.GuideID)
	if err != nil {
		return fmt.Errorf("failed to bind guide to custom tour: %w", err)
	}

	return tx.Commit()
}
