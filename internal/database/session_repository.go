package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// SessionRepository handles login session database operations
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession records a login session with parsed device information
func (r *SessionRepository) CreateSession(session *models.UserSession) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO user_sessions (id, user_id, ip_address, user_agent, device_type, browser, os, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		session.ID, session.UserID, session.IPAddress, session.UserAgent,
		session.DeviceType, session.Browser, session.OS, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionsByUser returns a user's sessions, newest first
func (r *SessionRepository) GetSessionsByUser(userID uuid.UUID, limit int) ([]models.UserSession, error) {
	var sessions []models.UserSession
	query := `
		SELECT id, user_id, ip_address, user_agent, device_type, browser, os, created_at
		FROM user_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.Select(&sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
