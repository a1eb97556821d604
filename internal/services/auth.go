package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/repos"
	"github.com/sanctuarylabs/sanctuary-backend/internal/requestdata"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthService interface {
	RegisterUser(ctx context.Context, name, email, password string) (*types.User, TokenPair, error)
	LoginUser(ctx context.Context, email, password string) (*types.User, TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*types.User, TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetCurrentUser(ctx context.Context) (*types.User, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	accessSecret string,
	refreshSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	serviceLog := log.With("service", "AuthService")
	return &authService{
		db:            db,
		log:           serviceLog,
		userRepo:      userRepo,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// HashPassword hashes with bcrypt. Empty input is allowed; bcrypt hashes it
// like any other string.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (as *authService) RegisterUser(ctx context.Context, name, email, password string) (*types.User, TokenPair, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, TokenPair{}, apierr.Validation("A name is required to sign up")
	}
	if email == "" {
		return nil, TokenPair{}, apierr.Validation("An email is required to sign up")
	}
	if password == "" {
		return nil, TokenPair{}, apierr.Validation("A password is required to sign up")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, TokenPair{}, apierr.Internal(apierr.CodeInternal, err)
	}

	user := &types.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleUser,
		IsVerified:   false,
	}

	if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, eErr := as.userRepo.EmailExists(ctx, tx, email)
		if eErr != nil {
			return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to check user email: %w", eErr))
		}
		if exists {
			return apierr.Validation("User with this email already exists")
		}
		if _, cErr := as.userRepo.Create(ctx, tx, []*types.User{user}); cErr != nil {
			return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to create user: %w", cErr))
		}
		return nil
	}); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := as.issueTokenPair(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (*types.User, TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, TokenPair{}, apierr.Unauthorized(apierr.CodeInvalidCredentials, "Invalid email or password")
	}

	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, TokenPair{}, apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to look up user: %w", err))
	}
	if len(users) == 0 {
		return nil, TokenPair{}, apierr.Unauthorized(apierr.CodeInvalidCredentials, "Invalid email or password")
	}
	user := users[0]

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, TokenPair{}, apierr.Unauthorized(apierr.CodeInvalidCredentials, "Invalid email or password")
	}

	pair, err := as.issueTokenPair(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

func (as *authService) RefreshTokens(ctx context.Context, refreshToken string) (*types.User, TokenPair, error) {
	userID, err := as.verifyToken(refreshToken, as.refreshSecret)
	if err != nil {
		return nil, TokenPair{}, err
	}

	users, uErr := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if uErr != nil {
		return nil, TokenPair{}, apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to load user for refresh: %w", uErr))
	}
	if len(users) == 0 {
		return nil, TokenPair{}, apierr.NotFound("User not found")
	}
	user := users[0]

	pair, pErr := as.issueTokenPair(user.ID)
	if pErr != nil {
		return nil, TokenPair{}, pErr
	}
	return user, pair, nil
}

func (as *authService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return apierr.Validation("A new password is required")
	}

	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to load user: %w", err))
	}
	if len(users) == 0 {
		return apierr.NotFound("User not found")
	}
	user := users[0]

	if user.PasswordHash != "" && !VerifyPassword(currentPassword, user.PasswordHash) {
		return apierr.Unauthorized(apierr.CodeInvalidCredentials, "Current password is incorrect")
	}

	hash, hErr := HashPassword(newPassword)
	if hErr != nil {
		return apierr.Internal(apierr.CodeInternal, hErr)
	}
	if uErr := as.userRepo.UpdatePasswordHash(ctx, nil, userID, hash); uErr != nil {
		return apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to update password: %w", uErr))
	}
	return nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	userID, err := as.verifyToken(tokenString, as.accessSecret)
	if err != nil {
		return ctx, err
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetCurrentUser(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized(apierr.CodeUnauthorized, "Not authenticated")
	}
	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, apierr.Internal(apierr.CodePersistenceFailed, fmt.Errorf("failed to load user: %w", err))
	}
	if len(users) == 0 {
		return nil, apierr.Unauthorized(apierr.CodeUnauthorized, "User no longer exists")
	}
	return users[0], nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}

func (as *authService) issueTokenPair(userID uuid.UUID) (TokenPair, error) {
	access, err := signToken(userID, as.accessSecret, as.accessTTL)
	if err != nil {
		return TokenPair{}, apierr.Internal(apierr.CodeInternal, fmt.Errorf("failed to sign access token: %w", err))
	}
	refresh, err := signToken(userID, as.refreshSecret, as.refreshTTL)
	if err != nil {
		return TokenPair{}, apierr.Internal(apierr.CodeInternal, fmt.Errorf("failed to sign refresh token: %w", err))
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func signToken(userID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// verifyToken distinguishes expiry from every other failure so callers can
// decide between a silent refresh and a re-login prompt.
func (as *authService) verifyToken(tokenString, secret string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, apierr.Unauthorized(apierr.CodeInvalidToken, "Missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, apierr.Unauthorized(apierr.CodeExpiredToken, "Token has expired")
		}
		return uuid.Nil, apierr.Unauthorized(apierr.CodeInvalidToken, "Invalid token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, apierr.Unauthorized(apierr.CodeInvalidToken, "Invalid token")
	}
	userID, pErr := uuid.Parse(claims.Subject)
	if pErr != nil {
		return uuid.Nil, apierr.Unauthorized(apierr.CodeInvalidToken, "Invalid subject in token")
	}
	return userID, nil
}
