package database

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

func paymentColumns() []string {
	return []string{
		"id", "user_id", "tour_id", "custom_tour_id", "amount", "currency",
		"number_of_people", "transaction_id", "status", "refund_amount",
		"processed_at", "created_at", "updated_at",
	}
}

func TestCreatePayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPaymentRepository(&mockDatabase{db: sqlx.NewDb(db, "sqlmock")})

	t.Run("Success", func(t *testing.T) {
		tourID := uuid.New()
		p := &models.Payment{
			UserID:         uuid.New(),
			TourID:         &tourID,
			Amount:         450.00,
			Currency:       "USD",
			NumberOfPeople: 3,
			TransactionID:  "txn_7f3a",
		}

		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CreatePayment(p)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.Equal(t, models.PaymentProcessing, p.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPaymentByTransactionID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPaymentRepository(&mockDatabase{db: sqlx.NewDb(db, "sqlmock")})

	t.Run("Found", func(t *testing.T) {
		paymentID := uuid.New()
		tourID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_7f3a").
			WillReturnRows(sqlmock.NewRows(paymentColumns()).AddRow(
				paymentID, uuid.New(), tourID, nil, 450.00, "USD",
				3, "txn_7f3a", models.PaymentProcessing, nil,
				nil, now, now,
			))

		p, err := repo.GetPaymentByTransactionID("txn_7f3a")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, paymentID, p.ID)
		assert.Equal(t, models.PaymentProcessing, p.Status)
		require.NotNil(t, p.TourID)
		assert.Equal(t, tourID, *p.TourID)
		assert.Nil(t, p.CustomTourID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_missing").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetPaymentByTransactionID("txn_missing")
		require.NoError(t, err)
		assert.Nil(t, p)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransitionStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPaymentRepository(&mockDatabase{db: sqlx.NewDb(db, "sqlmock")})

	t.Run("Processing To Completed", func(t *testing.T) {
		paymentID := uuid.New()

		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.TransitionStatus(paymentID, models.PaymentProcessing, models.PaymentCompleted)
		require.NoError(t, err)
		assert.True(t, won)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost The Claim", func(t *testing.T) {
		paymentID := uuid.New()

		// A concurrent caller already moved the row out of PROCESSING.
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 0))

		won, err := repo.TransitionStatus(paymentID, models.PaymentProcessing, models.PaymentCompleted)
		require.NoError(t, err)
		assert.False(t, won)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Disallowed Transition", func(t *testing.T) {
		won, err := repo.TransitionStatus(uuid.New(), models.PaymentFailed, models.PaymentCompleted)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidTransition))
		assert.False(t, won)
	})
}

func TestMarkRefunded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPaymentRepository(&mockDatabase{db: sqlx.NewDb(db, "sqlmock")})

	t.Run("Success", func(t *testing.T) {
		paymentID := uuid.New()

		mock.ExpectExec(`UPDATE payments\s+SET status = \$2, refund_amount = \$3`).
			WithArgs(paymentID, models.PaymentRefunded, 450.00, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.MarkRefunded(paymentID, 450.00)
		require.NoError(t, err)
		assert.True(t, won)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Completed", func(t *testing.T) {
		paymentID := uuid.New()

		mock.ExpectExec(`UPDATE payments\s+SET status = \$2, refund_amount = \$3`).
			WithArgs(paymentID, models.PaymentRefunded, 100.00, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 0))

		won, err := repo.MarkRefunded(paymentID, 100.00)
		require.NoError(t, err)
		assert.False(t, won)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
