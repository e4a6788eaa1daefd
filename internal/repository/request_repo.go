package repository

import (
	"context"
	"errors"

	"workflowbridge/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleRequest is returned when a transition was computed from a version
// that another writer has already replaced.
var ErrStaleRequest = errors.New("request was modified concurrently")

// RequestQuery filters a request listing. All set filters combine with AND.
type RequestQuery struct {
	Status            string
	DepartmentID      *uuid.UUID
	RequesterID       *uuid.UUID
	PendingApproverID *uuid.UUID
	VisibleTo         *uuid.UUID
	Search            string
	Offset            int
	Limit             int
}

func (q RequestQuery) scope(db *gorm.DB) *gorm.DB {
	if q.VisibleTo != nil {
		db = db.Where(
			"(requests.requester_id = ? OR EXISTS (SELECT 1 FROM request_approvals ra WHERE ra.request_id = requests.id AND ra.approver_id = ?))",
			*q.VisibleTo, *q.VisibleTo,
		)
	}
	if q.Status != "" {
		db = db.Where("requests.status = ?", q.Status)
	}
	if q.DepartmentID != nil {
		db = db.Where("requests.department_id = ?", *q.DepartmentID)
	}
	if q.RequesterID != nil {
		db = db.Where("requests.requester_id = ?", *q.RequesterID)
	}
	if q.PendingApproverID != nil {
		db = db.Where("requests.status = ?", model.StatusInProgress).Where(
			"EXISTS (SELECT 1 FROM request_approvals ra WHERE ra.request_id = requests.id AND ra.approver_id = ? AND ra.status = ?)",
			*q.PendingApproverID, model.ApprovalPending,
		)
	}
	return db.Scopes(containsAny(q.Search, "requests.title", "requests.request_number"))
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	List(ctx context.Context, q RequestQuery) ([]model.Request, int64, error)
	SaveTransition(ctx context.Context, expectedVersion int, req *model.Request, changed []model.Approval) error
	CountByStatus(ctx context.Context, visibleTo *uuid.UUID) (map[model.RequestStatus]int64, error)
	CountAwaiting(ctx context.Context, approverID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func orderedApprovals(db *gorm.DB) *gorm.DB {
	return db.Order("step ASC")
}

// Create inserts the request together with its approval records.
func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).Preload("Approvals", orderedApprovals).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, q RequestQuery) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Request{}).Scopes(q.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(q.scope).
		Preload("Approvals", orderedApprovals).
		Order("requests.created_at DESC").
		Scopes(paginate(q.Offset, q.Limit)).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// SaveTransition persists a transition computed from expectedVersion. The
// request row is only written when its version still matches; otherwise
// ErrStaleRequest is returned and nothing is changed. Call it inside a
// transaction so the approval rows commit with the request row.
func (r *requestRepository) SaveTransition(ctx context.Context, expectedVersion int, req *model.Request, changed []model.Approval) error {
	db := GetDB(ctx, r.db)

	res := db.Model(&model.Request{}).
		Where("id = ? AND version = ?", req.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                req.Status,
			"current_approval_step": req.CurrentApprovalStep,
			"updated_at":            req.UpdatedAt,
			"version":               expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRequest
	}

	for _, a := range changed {
		if err := db.Model(&model.Approval{}).
			Where("request_id = ? AND step = ?", req.ID, a.Step).
			Updates(map[string]interface{}{
				"status":   a.Status,
				"comments": a.Comments,
				"acted_at": a.ActedAt,
			}).Error; err != nil {
			return err
		}
	}

	req.Version = expectedVersion + 1
	return nil
}

type statusCount struct {
	Status model.RequestStatus
	Total  int64
}

// CountByStatus groups requests by status, restricted to those visible to
// the given user when visibleTo is set.
func (r *requestRepository) CountByStatus(ctx context.Context, visibleTo *uuid.UUID) (map[model.RequestStatus]int64, error) {
	var rows []statusCount
	err := GetDB(ctx, r.db).Model(&model.Request{}).
		Scopes(RequestQuery{VisibleTo: visibleTo}.scope).
		Select("requests.status AS status, COUNT(*) AS total").
		Group("requests.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.RequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// CountAwaiting counts in-progress requests whose current step belongs to approverID.
func (r *requestRepository) CountAwaiting(ctx context.Context, approverID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Request{}).
		Scopes(RequestQuery{PendingApproverID: &approverID}.scope).
		Count(&total).Error
	return total, err
}

func (r *requestRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Request{}).Count(&total).Error
	return total, err
}
