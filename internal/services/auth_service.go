package services

import (
	"fmt"
	"time"

	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
	"github.com/tripmark/tour-marketplace-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles account registration and login
type AuthService struct {
	userRepo    *database.UserRepository
	sessionRepo *database.SessionRepository
	jwtService  *jwt.Service
	bcryptCost  int
	tokenExpiry time.Duration
	logger      *logrus.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo *database.UserRepository,
	sessionRepo *database.SessionRepository,
	jwtService *jwt.Service,
	bcryptCost int,
	tokenExpiry time.Duration,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtService:  jwtService,
		bcryptCost:  bcryptCost,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// Register creates a new account with the requested marketplace role
func (s *AuthService) Register(req *models.RegisterRequest) (*models.AuthResponse, error) {
	existing, err := s.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("email %s is already registered", req.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.CreateUser(req.Email, string(hash), req.FirstName, req.LastName, []string{req.Role})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    req.Role,
	}).Info("User registered")

	return s.buildAuthResponse(user)
}

// Login verifies credentials and records a session with parsed device info
func (s *AuthService) Login(req *models.LoginRequest, ipAddress, rawUserAgent string) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithField("email", req.Email).Warn("Failed login attempt")
		return nil, fmt.Errorf("invalid email or password")
	}

	session := &models.UserSession{
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: rawUserAgent,
	}
	if rawUserAgent != "" {
		ua := user_agent.New(rawUserAgent)
		session.OS = ua.OS()
		session.Browser, _ = ua.Browser()
		if ua.Mobile() {
			session.DeviceType = "mobile"
		} else if ua.Bot() {
			session.DeviceType = "bot"
		} else {
			session.DeviceType = "desktop"
		}
	}
	if err := s.sessionRepo.CreateSession(session); err != nil {
		// Session bookkeeping must not block the login itself.
		s.logger.WithError(err).Warn("Failed to record login session")
	}

	return s.buildAuthResponse(user)
}

func (s *AuthService) buildAuthResponse(user *models.User) (*models.AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		ExpiresAt:    time.Now().Add(s.tokenExpiry),
	}, nil
}
