package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripmark/tour-marketplace-backend/internal/config"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/events"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

func newChargeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "txn_booking",
			"attributes": map[string]string{
				"form_url": "https://gateway.example.com/pay/txn_booking",
			},
		})
	}))
}

func newBookingService(t *testing.T, gatewayURL string) (*BookingService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mockDB := &mockDatabase{db: sqlx.NewDb(db, "sqlmock")}
	logger := newTestLogger()
	tourRepo := database.NewTourRepository(mockDB)

	payments := NewPaymentService(
		database.NewPaymentRepository(mockDB),
		NewCapacityService(tourRepo, logger),
		NewGatewayService(gatewayConfig(gatewayURL, 5*time.Second), logger),
		events.NewPublisher(config.KafkaConfig{}, logger),
		"USD",
		logger,
	)
	service := NewBookingService(
		tourRepo,
		database.NewCustomTourRepository(mockDB),
		NewGuideMatcherService(database.NewGuideRepository(mockDB), logger),
		payments,
		logger,
	)
	return service, mock, func() { db.Close() }
}

func TestBookFixedTour(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		tourID := uuid.New()
		userID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs(tourID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "seller_id", "title", "description", "price",
				"max_capacity", "available_capacity", "departure_date", "return_date",
				"available", "created_at", "updated_at",
			}).AddRow(tourID, uuid.New(), "Trek", "", 150.00,
				20, 10, now.AddDate(0, 1, 0), now.AddDate(0, 1, 2), true, now, now))
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := service.BookFixedTour(userID, &models.FixedTourBookingRequest{
			TourID: tourID,
			Seats:  3,
		})
		require.NoError(t, err)
		assert.Equal(t, "txn_booking", resp.TransactionID)
		assert.Equal(t, "https://gateway.example.com/pay/txn_booking", resp.FormURL)
		assert.Equal(t, 450.00, resp.Amount)
		assert.Equal(t, "USD", resp.Currency)

		// No capacity change at initiation.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Tour Not Found", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		tourID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs(tourID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		resp, err := service.BookFixedTour(uuid.New(), &models.FixedTourBookingRequest{
			TourID: tourID,
			Seats:  2,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.Nil(t, resp)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Enough Seats", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		tourID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs(tourID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "seller_id", "title", "description", "price",
				"max_capacity", "available_capacity", "departure_date", "return_date",
				"available", "created_at", "updated_at",
			}).AddRow(tourID, uuid.New(), "Trek", "", 150.00,
				20, 2, now, now.AddDate(0, 0, 2), true, now, now))

		resp, err := service.BookFixedTour(uuid.New(), &models.FixedTourBookingRequest{
			TourID: tourID,
			Seats:  5,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInsufficientCapacity))
		assert.Nil(t, resp)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Gateway Down Leaves No Payment Row", func(t *testing.T) {
		service, mock, cleanup := newBookingService(t, "http://127.0.0.1:1")
		defer cleanup()

		tourID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM tours`).
			WithArgs(tourID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "seller_id", "title", "description", "price",
				"max_capacity", "available_capacity", "departure_date", "return_date",
				"available", "created_at", "updated_at",
			}).AddRow(tourID, uuid.New(), "Trek", "", 150.00,
				20, 10, now, now.AddDate(0, 0, 2), true, now, now))

		resp, err := service.BookFixedTour(uuid.New(), &models.FixedTourBookingRequest{
			TourID: tourID,
			Seats:  2,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrGatewayUnavailable))
		assert.Nil(t, resp)

		// No INSERT INTO payments was ever expected.
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookCustomTour(t *testing.T) {
	t.Run("Without Guide", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		mock.ExpectExec(`INSERT INTO custom_tours`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := service.BookCustomTour(uuid.New(), &models.CustomTourBookingRequest{
			GuestCount:    4,
			DepartureDate: day(10),
			ReturnDate:    day(14),
			Price:         800.00,
			WithGuide:     false,
		})
		require.NoError(t, err)
		require.NotNil(t, resp.WithGuide)
		assert.False(t, *resp.WithGuide)
		assert.Nil(t, resp.GuideID)
		assert.NotNil(t, resp.CustomTourID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("With Guide Soft Fallback", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		mock.ExpectExec(`INSERT INTO custom_tours`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// No guide exists; the matcher degrades to no guide and the
		// booking still goes through.
		expectSchedules(mock, sqlmock.NewRows(guideColumns()), sqlmock.NewRows(assignmentColumns()))
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := service.BookCustomTour(uuid.New(), &models.CustomTourBookingRequest{
			GuestCount:    4,
			DepartureDate: day(10),
			ReturnDate:    day(14),
			Price:         800.00,
			WithGuide:     true,
		})
		require.NoError(t, err)
		require.NotNil(t, resp.WithGuide)
		assert.False(t, *resp.WithGuide)
		assert.Nil(t, resp.GuideID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("With Guide Assigned", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, mock, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		guideID := uuid.New()
		now := time.Now()

		mock.ExpectExec(`INSERT INTO custom_tours`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		guides := sqlmock.NewRows(guideColumns()).
			AddRow(guideID, "g@example.com", "hash", "G", "Guide", []byte(`{"guide"}`), "active", now, now)
		expectSchedules(mock, guides, sqlmock.NewRows(assignmentColumns()))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM users`).
			WithArgs(guideID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(guideID))
		mock.ExpectExec(`INSERT INTO guide_assignments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE custom_tours`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := service.BookCustomTour(uuid.New(), &models.CustomTourBookingRequest{
			GuestCount:    4,
			DepartureDate: day(10),
			ReturnDate:    day(14),
			Price:         800.00,
			WithGuide:     true,
		})
		require.NoError(t, err)
		require.NotNil(t, resp.WithGuide)
		assert.True(t, *resp.WithGuide)
		require.NotNil(t, resp.GuideID)
		assert.Equal(t, guideID, *resp.GuideID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Return Before Departure", func(t *testing.T) {
		server := newChargeServer(t)
		defer server.Close()
		service, _, cleanup := newBookingService(t, server.URL)
		defer cleanup()

		resp, err := service.BookCustomTour(uuid.New(), &models.CustomTourBookingRequest{
			GuestCount:    2,
			DepartureDate: day(14),
			ReturnDate:    day(10),
			Price:         500.00,
		})
		require.Error(t, err)
		assert.Nil(t, resp)
	})
}
