package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Form field input types.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
	FieldFile     = "file"
)

// Approver chain entry types.
const (
	ChainUser             = "user"
	ChainImmediateManager = "immediate_manager"
)

type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// ChainEntry is one configured step of a template's approver chain.
type ChainEntry struct {
	Step     int        `json:"step"`
	Type     string     `json:"type"`
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	UserName string     `json:"user_name,omitempty"`
}

// FormTemplate defines the fields a request collects and who approves it.
type FormTemplate struct {
	ID            uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                           `gorm:"type:varchar(255);not null" json:"name"`
	Description   string                           `gorm:"type:text" json:"description"`
	DepartmentID  uuid.UUID                        `gorm:"type:uuid;not null;index" json:"department_id"`
	Department    *Department                      `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Fields        datatypes.JSONType[[]FormField]  `json:"fields"`
	ApproverChain datatypes.JSONType[[]ChainEntry] `json:"approver_chain"`
	IsActive      bool                             `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time                        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *FormTemplate) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
