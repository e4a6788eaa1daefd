package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateUserRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Name         string  `json:"name" binding:"required"`
	Password     string  `json:"password" binding:"required,min=6"`
	Role         string  `json:"role" binding:"required"`
	DepartmentID *string `json:"department_id"`
}

type UpdateUserRequest struct {
	Email        string  `json:"email" binding:"omitempty,email"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id"`
	IsActive     *bool   `json:"is_active"`
}

// ChangePasswordRequest needs CurrentPassword when users change their own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password" binding:"required,min=6"`
}

type UserFilter struct {
	Role         string `form:"role"`
	DepartmentID string `form:"department_id"`
	Search       string `form:"search"`
	Page         int
	Limit        int
	Offset       int
}

type UserResponse struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           model.Role `json:"role"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      string     `json:"created_at"`
}

// ApproverOption is a user that can be placed in an approver chain.
type ApproverOption struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, actor model.Actor, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, actor model.Actor, filter UserFilter) ([]UserResponse, int64, error)
	ListApprovers(ctx context.Context, departmentID string) ([]ApproverOption, error)
	UpdateUser(ctx context.Context, actor model.Actor, id string, req UpdateUserRequest) (*UserResponse, error)
	ChangePassword(ctx context.Context, actor model.Actor, id string, req ChangePasswordRequest) error
	DeleteUser(ctx context.Context, actor model.Actor, id string) error
}

type userService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	audits      repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewUserService(users repository.UserRepository, departments repository.DepartmentRepository, audits repository.AuditRepository, txManager repository.TransactionManager) UserService {
	return &userService{users: users, departments: departments, audits: audits, txManager: txManager}
}

// --- Implementation ---

func (s *userService) CreateUser(ctx context.Context, actor model.Actor, req CreateUserRequest) (*UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role := model.Role(req.Role)
	if !role.IsValid() {
		return nil, invalidRole()
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered", "")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	deptID, err := s.resolveDepartment(ctx, req.DepartmentID)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		DepartmentID: deptID,
		IsActive:     true,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionCreateUser, user.ID.String(), user.Email, map[string]interface{}{
			"role": user.Role,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.ID.String())
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("user", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, actor model.Actor, filter UserFilter) ([]UserResponse, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	deptID, err := parseOptionalID("department_id", &filter.DepartmentID)
	if err != nil {
		return nil, 0, err
	}
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Role:         filter.Role,
		DepartmentID: deptID,
		Search:       filter.Search,
		Offset:       filter.Offset,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return lo.Map(users, func(u model.User, _ int) UserResponse { return toUserResponse(&u) }), total, nil
}

// ListApprovers returns active users whose role may act on requests,
// optionally restricted to one department.
func (s *userService) ListApprovers(ctx context.Context, departmentID string) ([]ApproverOption, error) {
	deptID, err := parseOptionalID("department_id", &departmentID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListActiveByRoles(ctx, model.RolesWith(model.CapApproveRequest), deptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	return lo.Map(users, func(u model.User, _ int) ApproverOption {
		return ApproverOption{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	}), nil
}

func (s *userService) UpdateUser(ctx context.Context, actor model.Actor, id string, req UpdateUserRequest) (*UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	userID, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("user", err)
	}

	if req.Email != "" {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email != user.Email {
			if _, err := s.users.GetByEmail(ctx, email); err == nil {
				return nil, apperr.Conflict("email already registered", "")
			}
			user.Email = email
		}
	}
	if req.Name != "" {
		user.Name = strings.TrimSpace(req.Name)
	}
	if req.Role != "" {
		role := model.Role(req.Role)
		if !role.IsValid() {
			return nil, invalidRole()
		}
		user.Role = role
	}
	if req.DepartmentID != nil {
		deptID, err := s.resolveDepartment(ctx, req.DepartmentID)
		if err != nil {
			return nil, err
		}
		user.DepartmentID = deptID
		user.Department = nil
	}
	if req.IsActive != nil {
		if user.ID == actor.ID && !*req.IsActive {
			return nil, apperr.Validation("you cannot deactivate your own account")
		}
		user.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionUpdateUser, user.ID.String(), user.Email, map[string]interface{}{
			"role":      user.Role,
			"is_active": user.IsActive,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.ID.String())
}

// ChangePassword lets users change their own password after proving the
// current one; administrators may reset anyone else's.
func (s *userService) ChangePassword(ctx context.Context, actor model.Actor, id string, req ChangePasswordRequest) error {
	userID, err := parseID("user", id)
	if err != nil {
		return err
	}
	self := userID == actor.ID
	if !self {
		if err := requireAdmin(actor); err != nil {
			return err
		}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupErr("user", err)
	}
	if self {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return apperr.Validation("current password is incorrect")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionChangePassword, user.ID.String(), user.Email, nil)
	})
}

func (s *userService) DeleteUser(ctx context.Context, actor model.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	userID, err := parseID("user", id)
	if err != nil {
		return err
	}
	if userID == actor.ID {
		return apperr.Validation("you cannot delete your own account")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupErr("user", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionDeleteUser, user.ID.String(), user.Email, nil)
	})
}

// --- Helpers ---

func (s *userService) resolveDepartment(ctx context.Context, id *string) (*uuid.UUID, error) {
	deptID, err := parseOptionalID("department_id", id)
	if err != nil || deptID == nil {
		return nil, err
	}
	if _, err := s.departments.GetByID(ctx, *deptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("department does not exist")
		}
		return nil, fmt.Errorf("failed to load department: %w", err)
	}
	return deptID, nil
}

func invalidRole() error {
	names := lo.Map(model.AllRoles, func(r model.Role, _ int) string { return r.String() })
	return apperr.Validation("invalid role: must be one of %s", strings.Join(names, ", "))
}

func toUserResponse(u *model.User) UserResponse {
	resp := UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.Format(timeLayout),
	}
	if u.Department != nil {
		resp.DepartmentName = u.Department.Name
	}
	return resp
}
