package workflow

import (
	"fmt"
	"sort"

	"workflowbridge/internal/model"
)

// CheckInvariants verifies that the approval records agree with the request
// status and current step. A violation means a bug, not bad input.
func CheckInvariants(req model.Request) error {
	if len(req.Approvals) != req.TotalApprovalSteps {
		return fmt.Errorf("request %s has %d approval records but %d total steps", req.ID, len(req.Approvals), req.TotalApprovalSteps)
	}

	steps := make([]model.Approval, len(req.Approvals))
	copy(steps, req.Approvals)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Step < steps[j].Step })

	if req.TotalApprovalSteps == 0 {
		if req.Status != model.StatusApproved || req.CurrentApprovalStep != 0 {
			return fmt.Errorf("request %s without approvers must be approved at step 0", req.ID)
		}
		return nil
	}
	if req.CurrentApprovalStep < 1 || req.CurrentApprovalStep > req.TotalApprovalSteps {
		return fmt.Errorf("request %s current step %d is out of range", req.ID, req.CurrentApprovalStep)
	}

	for i, a := range steps {
		if a.Step != i+1 {
			return fmt.Errorf("request %s approval steps are not contiguous", req.ID)
		}
		want, ok := expectedStatus(req, a.Step)
		if ok && a.Status != want {
			return fmt.Errorf("request %s step %d is %s, expected %s", req.ID, a.Step, a.Status, want)
		}
	}
	return nil
}

func expectedStatus(req model.Request, step int) (model.ApprovalStatus, bool) {
	switch {
	case step < req.CurrentApprovalStep:
		return model.ApprovalApproved, true
	case step > req.CurrentApprovalStep:
		return model.ApprovalWaiting, true
	}
	switch req.Status {
	case model.StatusInProgress, model.StatusCancelled:
		return model.ApprovalPending, true
	case model.StatusApproved:
		return model.ApprovalApproved, true
	case model.StatusRejected:
		return model.ApprovalRejected, true
	}
	return "", false
}
