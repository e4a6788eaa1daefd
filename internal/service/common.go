package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// parseID treats a malformed identifier the same as an unknown one.
func parseID(resource, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperr.NotFound(resource)
	}
	return parsed, nil
}

// parseOptionalID parses a filter or reference id, rejecting malformed input.
func parseOptionalID(field string, id *string) (*uuid.UUID, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(*id)
	if err != nil {
		return nil, apperr.Validation("invalid %s", field)
	}
	return &parsed, nil
}

// lookupErr maps a missing row to NotFound and wraps everything else.
func lookupErr(resource string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return fmt.Errorf("failed to load %s: %w", resource, err)
}

func requireAdmin(actor model.Actor) error {
	if !actor.Role.Can(model.CapAdminister) {
		return apperr.Forbidden("administrator access required")
	}
	return nil
}

// audit writes one audit row; call it inside the transaction of the change.
func audit(ctx context.Context, repo repository.AuditRepository, actorID uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry := &model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if actorID != uuid.Nil {
		entry.UserID = &actorID
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
