package workflow

import (
	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"

	"github.com/google/uuid"
)

// CanView reports whether actor may read req: super admins see everything,
// everyone else sees requests they raised or appear in the chain of.
func CanView(req *model.Request, actor model.Actor) bool {
	if actor.Role.Can(model.CapViewAllRequests) {
		return true
	}
	return req.RequesterID == actor.ID || req.HasApprover(actor.ID)
}

func CheckView(req *model.Request, actor model.Actor) error {
	if !CanView(req, actor) {
		return apperr.Forbidden("you do not have access to this request")
	}
	return nil
}

func CheckCreate(actor model.Actor) error {
	if !actor.Role.Can(model.CapCreateRequest) {
		return apperr.Forbidden("your role is not permitted to create requests")
	}
	return nil
}

// IsAwaiting reports whether req is currently waiting on approverID.
func IsAwaiting(req *model.Request, approverID uuid.UUID) bool {
	if req.Status != model.StatusInProgress {
		return false
	}
	a := req.ApprovalAt(req.CurrentApprovalStep)
	return a != nil && a.ApproverID == approverID && a.Status == model.ApprovalPending
}
