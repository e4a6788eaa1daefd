package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- DTOs ---

type TemplateRequest struct {
	Name          string             `json:"name" binding:"required"`
	Description   string             `json:"description"`
	DepartmentID  string             `json:"department_id" binding:"required"`
	Fields        []model.FormField  `json:"fields"`
	ApproverChain []model.ChainEntry `json:"approver_chain"`
	IsActive      *bool              `json:"is_active"`
}

type TemplateFilter struct {
	DepartmentID string `form:"department_id"`
	Offset       int
	Limit        int
}

var fieldTypes = []string{
	model.FieldText, model.FieldTextarea, model.FieldNumber, model.FieldDate,
	model.FieldSelect, model.FieldCheckbox, model.FieldFile,
}

// --- Interface ---

type TemplateService interface {
	CreateTemplate(ctx context.Context, actor model.Actor, req TemplateRequest) (*model.FormTemplate, error)
	GetTemplate(ctx context.Context, actor model.Actor, id string) (*model.FormTemplate, error)
	ListTemplates(ctx context.Context, actor model.Actor, filter TemplateFilter) ([]model.FormTemplate, int64, error)
	ListAllTemplates(ctx context.Context, actor model.Actor) ([]model.FormTemplate, error)
	UpdateTemplate(ctx context.Context, actor model.Actor, id string, req TemplateRequest) (*model.FormTemplate, error)
	DeleteTemplate(ctx context.Context, actor model.Actor, id string) error
}

type templateService struct {
	templates   repository.TemplateRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
	audits      repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewTemplateService(
	templates repository.TemplateRepository,
	departments repository.DepartmentRepository,
	users repository.UserRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
) TemplateService {
	return &templateService{templates: templates, departments: departments, users: users, audits: audits, txManager: txManager}
}

// --- Implementation ---

func (s *templateService) CreateTemplate(ctx context.Context, actor model.Actor, req TemplateRequest) (*model.FormTemplate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tpl := &model.FormTemplate{IsActive: true}
	if err := s.apply(ctx, tpl, req); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.templates.Create(txCtx, tpl); err != nil {
			return fmt.Errorf("failed to create form template: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionCreateTemplate, tpl.ID.String(), tpl.Name, map[string]interface{}{
			"fields":         len(req.Fields),
			"approver_steps": len(req.ApproverChain),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.templates.GetByID(ctx, tpl.ID)
}

// GetTemplate hides inactive templates from everyone but administrators.
func (s *templateService) GetTemplate(ctx context.Context, actor model.Actor, id string) (*model.FormTemplate, error) {
	tplID, err := parseID("form template", id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.GetByID(ctx, tplID)
	if err != nil {
		return nil, lookupErr("form template", err)
	}
	if !tpl.IsActive && !actor.Role.Can(model.CapAdminister) {
		return nil, apperr.NotFound("form template")
	}
	return tpl, nil
}

func (s *templateService) ListTemplates(ctx context.Context, actor model.Actor, filter TemplateFilter) ([]model.FormTemplate, int64, error) {
	deptID, err := parseOptionalID("department_id", &filter.DepartmentID)
	if err != nil {
		return nil, 0, err
	}
	tpls, total, err := s.templates.List(ctx, repository.TemplateFilter{
		DepartmentID: deptID,
		ActiveOnly:   !actor.Role.Can(model.CapAdminister),
		Offset:       filter.Offset,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list form templates: %w", err)
	}
	return tpls, total, nil
}

// ListAllTemplates returns every template, inactive ones included, unpaged.
func (s *templateService) ListAllTemplates(ctx context.Context, actor model.Actor) ([]model.FormTemplate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tpls, _, err := s.templates.List(ctx, repository.TemplateFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list form templates: %w", err)
	}
	return tpls, nil
}

func (s *templateService) UpdateTemplate(ctx context.Context, actor model.Actor, id string, req TemplateRequest) (*model.FormTemplate, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tpl, err := s.GetTemplate(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, tpl, req); err != nil {
		return nil, err
	}
	tpl.Department = nil

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.templates.Update(txCtx, tpl); err != nil {
			return fmt.Errorf("failed to update form template: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionUpdateTemplate, tpl.ID.String(), tpl.Name, map[string]interface{}{
			"is_active": tpl.IsActive,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.templates.GetByID(ctx, tpl.ID)
}

// DeleteTemplate deactivates the template. Existing requests keep their
// snapshot and the template stays visible to administrators.
func (s *templateService) DeleteTemplate(ctx context.Context, actor model.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	tpl, err := s.GetTemplate(ctx, actor, id)
	if err != nil {
		return err
	}
	tpl.IsActive = false
	tpl.Department = nil
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.templates.Update(txCtx, tpl); err != nil {
			return fmt.Errorf("failed to deactivate form template: %w", err)
		}
		return audit(txCtx, s.audits, actor.ID, model.ActionDeleteTemplate, tpl.ID.String(), tpl.Name, nil)
	})
}

// --- Helpers ---

func (s *templateService) apply(ctx context.Context, tpl *model.FormTemplate, req TemplateRequest) error {
	deptID, err := parseOptionalID("department_id", &req.DepartmentID)
	if err != nil {
		return err
	}
	if deptID == nil {
		return apperr.Validation("department_id is required")
	}
	if _, err := s.departments.GetByID(ctx, *deptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("department does not exist")
		}
		return fmt.Errorf("failed to load department: %w", err)
	}
	if err := validateFields(req.Fields); err != nil {
		return err
	}
	chain, err := s.validateChain(ctx, req.ApproverChain)
	if err != nil {
		return err
	}

	tpl.Name = strings.TrimSpace(req.Name)
	tpl.Description = req.Description
	tpl.DepartmentID = *deptID
	tpl.Fields = datatypes.NewJSONType(lo.Ternary(req.Fields == nil, []model.FormField{}, req.Fields))
	tpl.ApproverChain = datatypes.NewJSONType(chain)
	if req.IsActive != nil {
		tpl.IsActive = *req.IsActive
	}
	return nil
}

func validateFields(fields []model.FormField) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return apperr.Validation("field %d has no name", i+1)
		}
		if seen[name] {
			return apperr.Validation("field name %q is used twice", name)
		}
		seen[name] = true
		if !lo.Contains(fieldTypes, f.Type) {
			return apperr.Validation("field %q has unknown type %q", name, f.Type)
		}
		if f.Type == model.FieldSelect && len(f.Options) == 0 {
			return apperr.Validation("select field %q needs options", name)
		}
	}
	return nil
}

// validateChain checks step numbering and that named approvers exist, are
// active and may approve. Approver names are refreshed from the user record.
func (s *templateService) validateChain(ctx context.Context, entries []model.ChainEntry) ([]model.ChainEntry, error) {
	chain := make([]model.ChainEntry, 0, len(entries))
	for i, e := range entries {
		if e.Step != i+1 {
			return nil, apperr.Validation("approver chain steps must be numbered 1..%d in order", len(entries))
		}
		switch e.Type {
		case model.ChainImmediateManager:
			e.UserID = nil
			e.UserName = "Immediate manager"
		case model.ChainUser:
			if e.UserID == nil {
				return nil, apperr.Validation("approver chain step %d needs a user_id", e.Step)
			}
			u, err := s.users.GetByID(ctx, *e.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, apperr.Validation("approver for step %d does not exist", e.Step)
				}
				return nil, fmt.Errorf("failed to load approver: %w", err)
			}
			if !u.IsActive || !u.Role.Can(model.CapApproveRequest) {
				return nil, apperr.Validation("%s cannot approve requests", u.Name)
			}
			e.UserName = u.Name
		default:
			return nil, apperr.Validation("approver chain step %d has unknown type %q", e.Step, e.Type)
		}
		chain = append(chain, e)
	}
	return chain, nil
}
