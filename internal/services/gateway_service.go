package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/config"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
)

// GatewayService is the HTTP client for the external payment gateway.
// The boundary is deliberately narrow: one charge-creation call, and the
// out-of-band callback handled by the payment handler. Any transport
// failure or timeout surfaces as ErrGatewayUnavailable and leaves no
// local state behind.
type GatewayService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// GatewayChargeRequest is the body sent to the gateway
type GatewayChargeRequest struct {
	Amount string `json:"amount"`
}

// GatewayChargeResponse is the gateway's success response. ID is the
// transaction identifier later echoed in the confirmation callback.
type GatewayChargeResponse struct {
	ID         string `json:"id"`
	Attributes struct {
		FormURL string `json:"form_url"`
	} `json:"attributes"`
}

type gatewayErrorResponse struct {
	Message string `json:"message"`
}

// NewGatewayService creates a new payment gateway client
func NewGatewayService(cfg *config.PaymentConfig, logger *logrus.Logger) *GatewayService {
	return &GatewayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// IsConfigured returns true if the gateway is properly configured
func (s *GatewayService) IsConfigured() bool {
	return s.config.BaseURL != "" && s.config.SecretKey != ""
}

// CreateCharge initiates a payment at the gateway for the given amount
// (decimal-as-string). The call is bounded by the configured timeout.
func (s *GatewayService) CreateCharge(amount string) (*GatewayChargeResponse, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("gateway credentials missing: %w", models.ErrGatewayUnavailable)
	}

	body, err := json.Marshal(&GatewayChargeRequest{Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.config.BaseURL+"/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Payment gateway call failed")
		return nil, fmt.Errorf("gateway call failed: %v: %w", err, models.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", models.ErrGatewayUnavailable)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gwErr gatewayErrorResponse
		_ = json.Unmarshal(respBody, &gwErr)
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     gwErr.Message,
		}).Error("Payment gateway rejected charge")
		return nil, fmt.Errorf("gateway returned status %d: %s: %w",
			resp.StatusCode, gwErr.Message, models.ErrGatewayUnavailable)
	}

	var charge GatewayChargeResponse
	if err := json.Unmarshal(respBody, &charge); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %v: %w", err, models.ErrGatewayUnavailable)
	}

	if charge.ID == "" || charge.Attributes.FormURL == "" {
		return nil, fmt.Errorf("gateway response missing id or form_url: %w", models.ErrGatewayUnavailable)
	}

	s.logger.WithFields(logrus.Fields{
		"transaction_id": charge.ID,
		"amount":         amount,
	}).Info("Payment initiated at gateway")

	return &charge, nil
}
