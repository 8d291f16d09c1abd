package services

import (
	"context"
	"strings"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"
	"libraryhub/internal/pkg/password"

	"go.uber.org/zap"
)

// UserService handles user management business logic
type UserService struct {
	userRepo repositories.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// UpdateUserByAdminInput represents an admin editing an account
type UpdateUserByAdminInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, page repositories.Page) ([]*models.UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*models.UserResponse, len(users))
	for i, user := range users {
		out[i] = user.ToResponse()
	}
	return out, total, nil
}

// GetUserByID gets a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateUserByAdmin updates a user by admin. Admins cannot change their own role.
func (s *UserService) UpdateUserByAdmin(ctx context.Context, id, adminID uint, input *UpdateUserByAdminInput) (*models.UserResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil && id == adminID {
		return nil, domain.ErrCannotChangeOwnRole
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email != user.Email {
			if !validEmail(email) {
				return nil, domain.NewValidationError("email", "is not a valid address")
			}
			exists, err := s.userRepo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, domain.ErrUserAlreadyExists
			}
			user.Email = email
		}
	}

	if input.Role != nil {
		role := domain.Role(*input.Role)
		if role != domain.RoleUser && role != domain.RoleAdmin {
			return nil, domain.ErrInvalidRole
		}
		user.Role = string(role)
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if repositories.IsDuplicate(err) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, err
	}

	logger.Info("user updated by admin", zap.Uint("user_id", id), zap.Uint("admin_id", adminID))
	return user.ToResponse(), nil
}

// DeleteUser soft deletes a user
func (s *UserService) DeleteUser(ctx context.Context, id, adminID uint) error {
	if id == adminID {
		return domain.ErrCannotDeleteSelf
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, id)
}

// ChangePassword changes a user's own password
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}

	if !password.Verify(input.OldPassword, user.Password) {
		return domain.ErrOldPasswordWrong
	}
	if !password.ValidatePassword(input.NewPassword) {
		return domain.NewValidationError("new_password", "must be at least 8 characters")
	}

	hashed, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}

// ResetPassword sets a new password without checking the old one
func (s *UserService) ResetPassword(ctx context.Context, username, newPassword string) error {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.ErrUserNotFound
		}
		return err
	}
	if !password.ValidatePassword(newPassword) {
		return domain.NewValidationError("new_password", "must be at least 8 characters")
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	logger.Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}

func (s *UserService) get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
