package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmark/tour-marketplace-backend/internal/config"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/events"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

func newPaymentService(t *testing.T) (*PaymentService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mockDB := &mockDatabase{db: sqlx.NewDb(db, "sqlmock")}
	logger := newTestLogger()

	service := NewPaymentService(
		database.NewPaymentRepository(mockDB),
		NewCapacityService(database.NewTourRepository(mockDB), logger),
		NewGatewayService(&config.PaymentConfig{}, logger),
		events.NewPublisher(config.KafkaConfig{}, logger),
		"USD",
		logger,
	)
	return service, mock, func() { db.Close() }
}

func paymentRowForTour(paymentID uuid.UUID, tourID *uuid.UUID, seats int, status models.PaymentStatus) *sqlmock.Rows {
	now := time.Now()
	var tourVal interface{}
	if tourID != nil {
		tourVal = *tourID
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "tour_id", "custom_tour_id", "amount", "currency",
		"number_of_people", "transaction_id", "status", "refund_amount",
		"processed_at", "created_at", "updated_at",
	}).AddRow(
		paymentID, uuid.New(), tourVal, nil, 300.00, "USD",
		seats, "txn_abc", status, nil,
		nil, now, now,
	)
}

func TestConfirm(t *testing.T) {
	t.Run("Wins Claim And Debits Capacity", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentProcessing))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tours\s+SET available_capacity = available_capacity - \$2`).
			WithArgs(tourID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		payment, err := service.Confirm(context.Background(), "txn_abc")
		require.NoError(t, err)
		require.NotNil(t, payment)
		assert.Equal(t, models.PaymentCompleted, payment.Status)
		assert.NotNil(t, payment.ProcessedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Callback Is A No Op", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		// Already COMPLETED: no transition, no capacity touch.
		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentCompleted))

		payment, err := service.Confirm(context.Background(), "txn_abc")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, payment.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost Claim To Concurrent Confirmation", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentProcessing))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// Re-read shows the concurrent caller already completed it.
		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs(paymentID).
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentCompleted))

		payment, err := service.Confirm(context.Background(), "txn_abc")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, payment.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Seats Gone After Payment Completed", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 4, models.PaymentProcessing))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// Conditional decrement touches no rows, the tour re-read shows
		// another booking took the last seats first.
		mock.ExpectExec(`UPDATE tours\s+SET available_capacity = available_capacity - \$2`).
			WithArgs(tourID, 4).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs(tourID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "seller_id", "title", "description", "price",
				"max_capacity", "available_capacity", "departure_date", "return_date",
				"available", "created_at", "updated_at",
			}).AddRow(tourID, uuid.New(), "Trek", "", 150.00,
				20, 1, now, now.AddDate(0, 0, 2), true, now, now))
		// The payment is pushed to FAILED so it never stays in a state
		// that claims seats it does not hold.
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentCompleted, models.PaymentFailed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		payment, err := service.Confirm(context.Background(), "txn_abc")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrBookingRaceLost))
		assert.Nil(t, payment)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Transaction", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_unknown").
			WillReturnError(sql.ErrNoRows)

		payment, err := service.Confirm(context.Background(), "txn_unknown")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.Nil(t, payment)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFail(t *testing.T) {
	t.Run("Processing To Failed", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentProcessing))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$3`).
			WithArgs(paymentID, models.PaymentProcessing, models.PaymentFailed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Fail(context.Background(), "txn_abc")
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Failed Is A No Op", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs("txn_abc").
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentFailed))

		err := service.Fail(context.Background(), "txn_abc")
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRefund(t *testing.T) {
	t.Run("Full Refund Releases Seats", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs(paymentID).
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentCompleted))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$2, refund_amount = \$3`).
			WithArgs(paymentID, models.PaymentRefunded, 300.00, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tours\s+SET available_capacity = available_capacity \+ \$2`).
			WithArgs(tourID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		payment, err := service.Refund(context.Background(), paymentID, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentRefunded, payment.Status)
		require.NotNil(t, payment.RefundAmount)
		assert.Equal(t, 300.00, *payment.RefundAmount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Partial Refund", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()
		partial := 120.00

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs(paymentID).
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentCompleted))
		mock.ExpectExec(`UPDATE payments\s+SET status = \$2, refund_amount = \$3`).
			WithArgs(paymentID, models.PaymentRefunded, partial, models.PaymentCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tours\s+SET available_capacity = available_capacity \+ \$2`).
			WithArgs(tourID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		payment, err := service.Refund(context.Background(), paymentID, &partial)
		require.NoError(t, err)
		require.NotNil(t, payment.RefundAmount)
		assert.Equal(t, partial, *payment.RefundAmount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Refund Amount Out Of Range", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()
		tooMuch := 999.00

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs(paymentID).
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentCompleted))

		payment, err := service.Refund(context.Background(), paymentID, &tooMuch)
		require.Error(t, err)
		assert.Nil(t, payment)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Refund Of Processing Payment", func(t *testing.T) {
		service, mock, cleanup := newPaymentService(t)
		defer cleanup()

		paymentID := uuid.New()
		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payments`).
			WithArgs(paymentID).
			WillReturnRows(paymentRowForTour(paymentID, &tourID, 2, models.PaymentProcessing))

		payment, err := service.Refund(context.Background(), paymentID, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidTransition))
		assert.Nil(t, payment)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// mockDatabase adapts a sqlmock-backed sqlx.DB to the database.DB interface
type mockDatabase struct {
	db *sqlx.DB
}

func (m *mockDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return m.db.Get(dest, query, args...)
}

func (m *mockDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return m.db.Select(dest, query, args...)
}

func (m *mockDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *mockDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *mockDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *mockDatabase) Beginx() (*sqlx.Tx, error) {
	return m.db.Beginx()
}

func (m *mockDatabase) Ping() error {
	return m.db.Ping()
}

func (m *mockDatabase) Close() error {
	return m.db.Close()
}
