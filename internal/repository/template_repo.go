package repository

import (
	"context"

	"workflowbridge/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateFilter struct {
	DepartmentID *uuid.UUID
	ActiveOnly   bool
	Offset       int
	Limit        int
}

type TemplateRepository interface {
	Create(ctx context.Context, tpl *model.FormTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error)
	List(ctx context.Context, filter TemplateFilter) ([]model.FormTemplate, int64, error)
	Update(ctx context.Context, tpl *model.FormTemplate) error
	Count(ctx context.Context) (int64, error)
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tpl *model.FormTemplate) error {
	return GetDB(ctx, r.db).Omit("Department").Create(tpl).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FormTemplate, error) {
	var tpl model.FormTemplate
	if err := GetDB(ctx, r.db).Preload("Department").First(&tpl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// List returns templates ordered by name. A limit of 0 returns all rows.
func (r *templateRepository) List(ctx context.Context, filter TemplateFilter) ([]model.FormTemplate, int64, error) {
	var tpls []model.FormTemplate
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.DepartmentID != nil {
			db = db.Where("department_id = ?", *filter.DepartmentID)
		}
		if filter.ActiveOnly {
			db = db.Where("is_active = ?", true)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.FormTemplate{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(scope, paginate(filter.Offset, filter.Limit)).Preload("Department").Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, 0, err
	}
	return tpls, total, nil
}

func (r *templateRepository) Update(ctx context.Context, tpl *model.FormTemplate) error {
	return GetDB(ctx, r.db).Omit("Department").Save(tpl).Error
}

func (r *templateRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.FormTemplate{}).Count(&total).Error
	return total, err
}
