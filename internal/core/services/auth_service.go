package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/jwt"
	"libraryhub/internal/pkg/logger"
	"libraryhub/internal/pkg/password"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService handles authentication business logic
type AuthService struct {
	db         *gorm.DB
	userRepo   repositories.UserRepository
	jwtCfg     config.JWTConfig
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, jwtCfg config.JWTConfig, now func() time.Time) *AuthService {
	return &AuthService{
		db:         db,
		userRepo:   repositories.NewUserRepository(db),
		jwtCfg:     jwtCfg,
		bcryptCost: password.DefaultCost,
		now:        now,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginInput represents login input. Identifier is a username or an email.
type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *models.UserResponse `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

// Register creates a member account and signs it in
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResponse, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	switch {
	case len(username) < 3 || len(username) > 50:
		return nil, domain.NewValidationError("username", "must be 3 to 50 characters")
	case !validEmail(email):
		return nil, domain.NewValidationError("email", "is not a valid address")
	case !password.ValidatePassword(input.Password):
		return nil, domain.NewValidationError("password", "must be at least 8 characters")
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}
	exists, err = s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hashed, err := password.HashWithCost(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Name:     strings.TrimSpace(input.Name),
		Password: hashed,
		Role:     string(domain.RoleUser),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repositories.IsDuplicate(err) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, err
	}

	logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(ctx, user)
}

// Login authenticates by username or email
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	logger.Info("user logged in", zap.Uint("user_id", user.ID))
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token. The presented token is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	tokens := repositories.NewRefreshTokenRepository(s.db)
	stored, err := tokens.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	now := s.now()
	if stored.RevokedAt != nil {
		return nil, domain.ErrTokenRevoked
	}
	if !stored.Usable(now) {
		return nil, domain.ErrTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// a concurrent refresh with the same token loses here
	revoked, err := tokens.Revoke(ctx, stored.ID, now)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, domain.ErrTokenRevoked
	}

	return s.issue(ctx, user)
}

// Logout revokes one refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return repositories.NewRefreshTokenRepository(s.db).RevokeByTokenHash(ctx, password.HashToken(refreshToken), s.now())
}

// LogoutAll revokes every refresh token of a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	n, err := repositories.NewRefreshTokenRepository(s.db).RevokeAllByUserID(ctx, userID, s.now())
	if err != nil {
		return err
	}
	logger.Info("all sessions revoked", zap.Uint("user_id", userID), zap.Int64("tokens", n))
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.jwtCfg.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// Me gets the signed-in user
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// MintAccessToken signs an access token for an existing user
func (s *AuthService) MintAccessToken(ctx context.Context, username string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if repositories.IsNotFound(err) {
			return "", domain.ErrUserNotFound
		}
		return "", err
	}
	return jwt.GenerateAccessToken(user.ID, user.Username, user.Role, s.jwtCfg.Secret, s.jwtCfg.AccessTokenMins)
}

// PurgeExpiredTokens deletes refresh tokens past their expiry
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return repositories.NewRefreshTokenRepository(s.db).DeleteExpired(ctx, s.now())
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	access, err := jwt.GenerateAccessToken(user.ID, user.Username, user.Role, s.jwtCfg.Secret, s.jwtCfg.AccessTokenMins)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateRefreshToken(user.ID, uuid.NewString(), s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTokenDays)
	if err != nil {
		return nil, err
	}

	err = repositories.NewRefreshTokenRepository(s.db).Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refresh),
		ExpiresAt: jwt.ExpiryTime(s.now(), s.jwtCfg.RefreshTokenDays),
	})
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
