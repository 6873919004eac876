package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// PaymentRepository handles payment database operations
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts a new payment in PROCESSING state
func (r *PaymentRepository) CreatePayment(p *models.Payment) error {
	p.ID = uuid.New()
	p.Status = models.PaymentProcessing
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	query := `
		INSERT INTO payments (
			id, user_id, tour_id, custom_tour_id, amount, currency,
			number_of_people, transaction_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(query,
		p.ID, p.UserID, p.TourID, p.CustomTourID, p.Amount, p.Currency,
		p.NumberOfPeople, p.TransactionID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByID retrieves a payment by ID. Returns (nil, nil) when absent.
func (r *PaymentRepository) GetPaymentByID(id uuid.UUID) (*models.Payment, error) {
	return r.getPayment(`WHERE id = $1`, id)
}

// GetPaymentByTransactionID retrieves a payment by the gateway's
// transaction identifier. Returns (nil, nil) when absent.
func (r *PaymentRepository) GetPaymentByTransactionID(transactionID string) (*models.Payment, error) {
	return r.getPayment(`WHERE transaction_id = $1`, transactionID)
}

func (r *PaymentRepository) getPayment(where string, arg interface{}) (*models.Payment, error) {
	var p models.Payment
	query := `
		SELECT id, user_id, tour_id, custom_tour_id, amount, currency,
		       number_of_people, transaction_id, status, refund_amount,
		       processed_at, created_at, updated_at
		FROM payments ` + where

	err := r.db.Get(&p, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// GetPaymentsByUser returns a user's payments, newest first
func (r *PaymentRepository) GetPaymentsByUser(userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	query := `
		SELECT id, user_id, tour_id, custom_tour_id, amount, currency,
		       number_of_people, transaction_id, status, refund_amount,
		       processed_at, created_at, updated_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&payments, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// TransitionStatus moves a payment from one state to another with a
// conditional update guarded on the current state. Returns false when the
// payment was not in the expected state, which lets concurrent callers
// detect that someone else already performed the transition.
func (r *PaymentRepository) TransitionStatus(paymentID uuid.UUID, from, to models.PaymentStatus) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("payment %s: %s -> %s: %w",
			paymentID, from, to, models.ErrInvalidTransition)
	}

	result, err := r.db.Exec(`
		UPDATE payments
		SET status = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		paymentID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transition result: %w", err)
	}
	return rows == 1, nil
}

// MarkRefunded moves a COMPLETED payment to REFUNDED recording the
// refunded amount. Same conditional guard as TransitionStatus.
func (r *PaymentRepository) MarkRefunded(paymentID uuid.UUID, amount float64) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE payments
		SET status = $2, refund_amount = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		paymentID, models.PaymentRefunded, amount, models.PaymentCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read refund result: %w", err)
	}
	return rows == 1, nil
}
