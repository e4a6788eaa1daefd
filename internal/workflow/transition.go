package workflow

import (
	"fmt"
	"time"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Outcome names the kind of transition that was applied.
type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// Transition is the result of a successful action. Request is the next
// state; Changed holds only the approval records that were modified.
type Transition struct {
	Request model.Request
	Outcome Outcome
	Changed []model.Approval
}

// NextApprover returns the record that became pending, if the chain advanced.
func (t Transition) NextApprover() *model.Approval {
	if t.Outcome != OutcomeAdvanced {
		return nil
	}
	return t.Request.ApprovalAt(t.Request.CurrentApprovalStep)
}

// Act applies an approve or reject decision by actor at time now.
func Act(req model.Request, actor model.Actor, action Action, comments string, now time.Time) (Transition, error) {
	if !actor.Role.Can(model.CapApproveRequest) {
		return Transition{}, apperr.Forbidden("your role is not permitted to act on requests")
	}
	if req.Status != model.StatusInProgress {
		return Transition{}, alreadyClosed(req.Status)
	}

	next := req.Clone()
	current := next.ApprovalAt(next.CurrentApprovalStep)
	if current == nil || current.ApproverID != actor.ID {
		if own := next.ApprovalBy(actor.ID); own != nil && own.Status.IsDecided() {
			return Transition{}, apperr.Conflict("you have already acted on this request", string(req.Status))
		}
		return Transition{}, apperr.Forbidden("you are not the current approver for this request")
	}
	if current.Status != model.ApprovalPending {
		return Transition{}, apperr.Conflict("this step has already been acted upon", string(req.Status))
	}

	switch action {
	case ActionReject:
		decide(current, model.ApprovalRejected, comments, now)
		next.Status = model.StatusRejected
		next.UpdatedAt = now
		return Transition{Request: next, Outcome: OutcomeRejected, Changed: []model.Approval{*current}}, nil

	case ActionApprove:
		decide(current, model.ApprovalApproved, comments, now)
		changed := []model.Approval{*current}
		outcome := OutcomeApproved

		if following := next.ApprovalAt(next.CurrentApprovalStep + 1); following != nil {
			following.Status = model.ApprovalPending
			next.CurrentApprovalStep = following.Step
			changed = append(changed, *following)
			outcome = OutcomeAdvanced
		} else {
			next.Status = model.StatusApproved
		}
		next.UpdatedAt = now
		return Transition{Request: next, Outcome: outcome, Changed: changed}, nil
	}

	return Transition{}, apperr.Validation("invalid action %q, use 'approve' or 'reject'", action)
}

// Cancel withdraws an in-progress request. Approval records are left as they are.
func Cancel(req model.Request, actor model.Actor, now time.Time) (Transition, error) {
	if req.Status != model.StatusInProgress {
		return Transition{}, alreadyClosed(req.Status)
	}
	if req.RequesterID != actor.ID && !actor.Role.Can(model.CapCancelAnyRequest) {
		return Transition{}, apperr.Forbidden("only the requester can cancel this request")
	}

	next := req.Clone()
	next.Status = model.StatusCancelled
	next.UpdatedAt = now
	return Transition{Request: next, Outcome: OutcomeCancelled}, nil
}

func decide(a *model.Approval, status model.ApprovalStatus, comments string, now time.Time) {
	a.Status = status
	a.Comments = comments
	acted := now
	a.ActedAt = &acted
}

func alreadyClosed(status model.RequestStatus) error {
	return apperr.Conflict(fmt.Sprintf("request is already %s", status), string(status))
}
