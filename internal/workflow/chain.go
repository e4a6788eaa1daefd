// Package workflow holds the request state machine. Every function here is
// pure: it takes the current aggregate and returns the next one, leaving
// persistence and side effects to the caller.
package workflow

import (
	"context"
	"fmt"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"

	"github.com/google/uuid"
)

// ManagerLookup finds the manager of a department. Implementations return
// (nil, nil) when the department has no active manager.
type ManagerLookup interface {
	FindDepartmentManager(ctx context.Context, departmentID uuid.UUID) (*model.User, error)
}

// Chain is a resolved approver chain ready to be attached to a new request.
type Chain struct {
	Approvals   []model.Approval
	CurrentStep int
	TotalSteps  int
}

// Empty reports whether no approver survived resolution.
func (c Chain) Empty() bool {
	return c.TotalSteps == 0
}

// ResolveChain turns template chain entries into concrete approval records.
// Entries are taken in list order; an approver already present is skipped
// without consuming a step number. The first surviving step is pending.
func ResolveChain(ctx context.Context, entries []model.ChainEntry, requester model.Actor, managers ManagerLookup) (Chain, error) {
	seen := make(map[uuid.UUID]struct{}, len(entries))
	approvals := make([]model.Approval, 0, len(entries))

	var manager *model.User
	for _, entry := range entries {
		var approverID uuid.UUID
		approverName := entry.UserName

		switch entry.Type {
		case model.ChainImmediateManager:
			if manager == nil {
				m, err := immediateManager(ctx, requester, managers)
				if err != nil {
					return Chain{}, err
				}
				manager = m
			}
			approverID, approverName = manager.ID, manager.Name
		case model.ChainUser, "":
			if entry.UserID == nil || *entry.UserID == uuid.Nil {
				return Chain{}, apperr.Validation("approver chain step %d has no approver", entry.Step)
			}
			approverID = *entry.UserID
		default:
			return Chain{}, apperr.Validation("approver chain step %d has unknown type %q", entry.Step, entry.Type)
		}

		if _, dup := seen[approverID]; dup {
			continue
		}
		seen[approverID] = struct{}{}

		status := model.ApprovalWaiting
		if len(approvals) == 0 {
			status = model.ApprovalPending
		}
		approvals = append(approvals, model.Approval{
			Step:         len(approvals) + 1,
			ApproverID:   approverID,
			ApproverName: approverName,
			Status:       status,
		})
	}

	chain := Chain{Approvals: approvals, TotalSteps: len(approvals)}
	if !chain.Empty() {
		chain.CurrentStep = 1
	}
	return chain, nil
}

func immediateManager(ctx context.Context, requester model.Actor, managers ManagerLookup) (*model.User, error) {
	if requester.DepartmentID == nil {
		return nil, apperr.Validation("you are not assigned to a department, so your immediate manager cannot be resolved")
	}
	m, err := managers.FindDepartmentManager(ctx, *requester.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up department manager: %w", err)
	}
	if m == nil {
		return nil, apperr.Validation("no active manager found for your department")
	}
	return m, nil
}
