package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"gorm.io/gorm"
)

type CreateDepartmentRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required,max=20"`
	Description string `json:"description"`
}

type UpdateDepartmentRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code" binding:"omitempty,max=20"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type DepartmentService interface {
	CreateDepartment(ctx context.Context, actor model.Actor, req CreateDepartmentRequest) (*model.Department, error)
	GetDepartment(ctx context.Context, id string) (*model.Department, error)
	ListDepartments(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Department, int64, error)
	UpdateDepartment(ctx context.Context, actor model.Actor, id string, req UpdateDepartmentRequest) (*model.Department, error)
	DeleteDepartment(ctx context.Context, actor model.Actor, id string) error
}

type departmentService struct {
	departments repository.DepartmentRepository
	audits      repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewDepartmentService(departments repository.DepartmentRepository, audits repository.AuditRepository, txManager repository.TransactionManager) DepartmentService {
	return &departmentService{departments: departments, audits: audits, txManager: txManager}
}

func (s *departmentService) CreateDepartment(ctx context.Context, actor model.Actor, req CreateDepartmentRequest) (*model.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	code := normalizeCode(req.Code)
	if err := s.ensureCodeFree(ctx, code); err != nil {
		return nil, err
	}

	dept := &model.Department{
		Name:        strings.TrimSpace(req.Name),
		Code:        code,
		Description: req.Description,
		IsActive:    true,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.departments.Create(txCtx, dept); err != nil {
			return fmt.Errorf("failed to create department: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionCreateDepartment, dept.ID.String(), dept.Name, map[string]interface{}{
			"code": dept.Code,
		})
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

func (s *departmentService) GetDepartment(ctx context.Context, id string) (*model.Department, error) {
	deptID, err := parseID("department", id)
	if err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, deptID)
	if err != nil {
		return nil, lookupErr("department", err)
	}
	return dept, nil
}

func (s *departmentService) ListDepartments(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Department, int64, error) {
	depts, total, err := s.departments.List(ctx, activeOnly, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, total, nil
}

func (s *departmentService) UpdateDepartment(ctx context.Context, actor model.Actor, id string, req UpdateDepartmentRequest) (*model.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	dept, err := s.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		dept.Name = strings.TrimSpace(req.Name)
	}
	if req.Code != "" {
		code := normalizeCode(req.Code)
		if code != dept.Code {
			if err := s.ensureCodeFree(ctx, code); err != nil {
				return nil, err
			}
			dept.Code = code
		}
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.departments.Update(txCtx, dept); err != nil {
			return fmt.Errorf("failed to update department: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionUpdateDepartment, dept.ID.String(), dept.Name, map[string]interface{}{
			"code":      dept.Code,
			"is_active": dept.IsActive,
		})
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// DeleteDepartment refuses while users or templates still reference the department.
func (s *departmentService) DeleteDepartment(ctx context.Context, actor model.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	dept, err := s.GetDepartment(ctx, id)
	if err != nil {
		return err
	}
	members, err := s.departments.CountMembers(ctx, dept.ID)
	if err != nil {
		return fmt.Errorf("failed to count department members: %w", err)
	}
	if members > 0 {
		return apperr.Conflict("department still has users or form templates", "")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.departments.Delete(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to delete department: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionDeleteDepartment, dept.ID.String(), dept.Name, nil)
	})
}

func (s *departmentService) ensureCodeFree(ctx context.Context, code string) error {
	_, err := s.departments.GetByCode(ctx, code)
	if err == nil {
		return apperr.Conflict(fmt.Sprintf("department code %s already exists", code), "")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check department code: %w", err)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
