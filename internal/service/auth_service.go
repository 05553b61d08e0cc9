package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"eventsocial/internal/cache"
	"eventsocial/internal/config"
	"eventsocial/internal/mailer"
	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/observability"
	"eventsocial/internal/repository"
	"eventsocial/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "eventsocial-api"
	TokenAudience = "eventsocial-client"

	otpTTL = 10 * time.Minute
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

type AuthService struct {
	users  repository.UserRepository
	mailer mailer.Mailer
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type ConfirmRegistrationInput struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Username string `json:"username"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

// AuthResult is returned by a successful confirmation or login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, m mailer.Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		users:  users,
		mailer: m,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL(),
		now:    time.Now,
	}
}

// RequestRegistration stores a fresh code on the (possibly new) unverified
// account for email and mails it. A repeated request replaces the code.
func (s *AuthService) RequestRegistration(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return models.NewValidationError("Please provide an email")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsVerified {
		return models.NewConflictError("User with this email already exists")
	}

	code, err := generateCode()
	if err != nil {
		return models.NewInternalError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if _, err := s.users.UpsertPendingCode(ctx, email, string(hash), s.now().UTC().Add(otpTTL)); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		return models.NewInternalError(err)
	}
	observability.OTPCodesIssued.Inc()
	return nil
}

// ConfirmRegistration checks the pending code and promotes the account to
// verified. A wrong or expired code is cleared so it cannot be retried.
func (s *AuthService) ConfirmRegistration(ctx context.Context, in ConfirmRegistrationInput) (*AuthResult, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.OTP = strings.TrimSpace(in.OTP)
	if in.Email == "" || in.OTP == "" || in.Username == "" || in.Password == "" || in.UserType == "" {
		return nil, models.NewValidationError("Please provide email, OTP, username, password, and user type")
	}
	userType := models.UserType(in.UserType)
	if !userType.Valid() {
		return nil, models.NewValidationError("userType must be personal or corporate")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundMessage("No pending registration for this email")
	}
	if user.IsVerified {
		return nil, models.NewConflictError("User already verified")
	}

	if !user.HasPendingCode(s.now()) ||
		bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(in.OTP)) != nil {
		if err := s.users.ClearCode(ctx, user.ID); err != nil {
			middleware.Ctx(ctx).Error().Err(err).Uint("user_id", user.ID).Msg("failed to clear rejected otp")
		}
		return nil, models.NewInvalidCodeError("Invalid or expired OTP")
	}

	taken, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken != nil && taken.ID != user.ID {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.users.MarkVerified(ctx, user.ID, in.Username, string(hash), userType); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, user.ID)

	verified, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	token, err := s.IssueToken(verified.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	middleware.Ctx(ctx).Info().Uint("user_id", verified.ID).Msg("registration confirmed")
	return &AuthResult{Token: token, User: verified}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.NewValidationError("Please provide email and password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundMessage("User not found")
	}
	if !user.IsVerified {
		return nil, models.NewForbiddenError("Please verify your email address first.")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewInvalidCredentialsError()
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// IssueToken signs a session token for userID.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies a session token and returns its subject user id.
func (s *AuthService) ParseToken(tokenString string) (uint, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return 0, models.NewUnauthorizedError("No token, authorization denied")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, models.NewUnauthorizedError("Token is not valid")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Token is not valid")
	}
	return uint(id), nil
}

// generateCode returns a uniformly random six digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
