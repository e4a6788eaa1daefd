package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusInProgress RequestStatus = "in_progress"
	StatusApproved   RequestStatus = "approved"
	StatusRejected   RequestStatus = "rejected"
	StatusCancelled  RequestStatus = "cancelled"
)

var requestStatuses = map[RequestStatus]bool{
	StatusInProgress: false,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusCancelled:  true,
}

func (s RequestStatus) IsValid() bool {
	_, ok := requestStatuses[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return requestStatuses[s]
}

type ApprovalStatus string

const (
	ApprovalWaiting  ApprovalStatus = "waiting"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsDecided reports whether the approver has already acted on the step.
func (s ApprovalStatus) IsDecided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Request is a filled-in form travelling through its approver chain.
// Version is bumped on every persisted transition and guards concurrent writers.
type Request struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RequestNumber         string            `gorm:"type:varchar(20);uniqueIndex;not null" json:"request_number"`
	FormTemplateID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"form_template_id"`
	FormTemplateName      string            `gorm:"type:varchar(255)" json:"form_template_name"`
	DepartmentID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"department_id"`
	RequesterID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"requester_id"`
	RequesterName         string            `gorm:"type:varchar(255)" json:"requester_name"`
	RequesterEmail        string            `gorm:"type:varchar(255)" json:"requester_email"`
	RequesterDepartmentID *uuid.UUID        `gorm:"type:uuid" json:"requester_department_id"`
	Title                 string            `gorm:"type:varchar(255);not null" json:"title"`
	FormData              datatypes.JSONMap `json:"form_data"`
	Notes                 string            `gorm:"type:text" json:"notes"`
	Priority              Priority          `gorm:"type:varchar(10);not null" json:"priority"`
	Status                RequestStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	CurrentApprovalStep   int               `gorm:"not null" json:"current_approval_step"`
	TotalApprovalSteps    int               `gorm:"not null" json:"total_approval_steps"`
	Approvals             []Approval        `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"approvals"`
	Version               int               `gorm:"not null" json:"-"`
	CreatedAt             time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ApprovalAt returns the record for the given step, or nil.
func (r *Request) ApprovalAt(step int) *Approval {
	for i := range r.Approvals {
		if r.Approvals[i].Step == step {
			return &r.Approvals[i]
		}
	}
	return nil
}

// ApprovalBy returns the record assigned to the approver, or nil.
func (r *Request) ApprovalBy(approverID uuid.UUID) *Approval {
	for i := range r.Approvals {
		if r.Approvals[i].ApproverID == approverID {
			return &r.Approvals[i]
		}
	}
	return nil
}

func (r *Request) HasApprover(approverID uuid.UUID) bool {
	return r.ApprovalBy(approverID) != nil
}

// Clone returns a copy whose approval records can be mutated independently.
func (r Request) Clone() Request {
	r.Approvals = append([]Approval(nil), r.Approvals...)
	return r
}

// Approval is one step of a request's resolved approver chain.
type Approval struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"-"`
	RequestID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_request_step" json:"-"`
	Step         int            `gorm:"not null;uniqueIndex:idx_request_step" json:"step"`
	ApproverID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"approver_id"`
	ApproverName string         `gorm:"type:varchar(255)" json:"approver_name"`
	Status       ApprovalStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Comments     string         `gorm:"type:text" json:"comments,omitempty"`
	ActedAt      *time.Time     `json:"acted_at"`
}

func (Approval) TableName() string {
	return "request_approvals"
}

func (a *Approval) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
