package repository

import (
	"context"
	"strings"

	"workflowbridge/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserFilter struct {
	Role         string
	DepartmentID *uuid.UUID
	Search       string
	Offset       int
	Limit        int
}

// UserRepository defines data access for User entities.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter) ([]model.User, int64, error)
	ListActiveByRoles(ctx context.Context, roles []model.Role, departmentID *uuid.UUID) ([]model.User, error)
	FindDepartmentManager(ctx context.Context, departmentID uuid.UUID) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Department").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.DepartmentID != nil {
			db = db.Where("department_id = ?", *filter.DepartmentID)
		}
		return db.Scopes(containsAny(filter.Search, "name", "email"))
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(scope).Preload("Department").Order("name ASC").
		Scopes(paginate(filter.Offset, filter.Limit)).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListActiveByRoles(ctx context.Context, roles []model.Role, departmentID *uuid.UUID) ([]model.User, error) {
	var users []model.User
	db := GetDB(ctx, r.db).Where("is_active = ? AND role IN ?", true, roles)
	if departmentID != nil {
		db = db.Where("department_id = ?", *departmentID)
	}
	err := db.Order("name ASC").Find(&users).Error
	return users, err
}

// FindDepartmentManager returns the first active manager of the department
// ordered by id, or nil when there is none.
func (r *userRepository) FindDepartmentManager(ctx context.Context, departmentID uuid.UUID) (*model.User, error) {
	var managers []model.User
	err := GetDB(ctx, r.db).
		Where("department_id = ? AND role = ? AND is_active = ?", departmentID, model.RoleManager, true).
		Order("id ASC").
		Limit(1).
		Find(&managers).Error
	if err != nil {
		return nil, err
	}
	if len(managers) == 0 {
		return nil, nil
	}
	return &managers[0], nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Department").Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Count(&total).Error
	return total, err
}
