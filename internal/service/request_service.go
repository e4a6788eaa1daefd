package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/broadcast"
	"workflowbridge/internal/mailer"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"
	"workflowbridge/internal/tracing"
	"workflowbridge/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestDTO struct {
	FormTemplateID string         `json:"form_template_id" binding:"required"`
	Title          string         `json:"title" binding:"required,max=255"`
	FormData       map[string]any `json:"form_data"`
	Notes          string         `json:"notes"`
	Priority       string         `json:"priority"`
}

type ActionRequestDTO struct {
	Action   string `json:"action" binding:"required"`
	Comments string `json:"comments"`
}

// RequestFilter combines every set filter with AND.
type RequestFilter struct {
	Status       string `form:"status"`
	DepartmentID string `form:"department_id"`
	MyRequests   bool   `form:"my_requests"`
	MyApprovals  bool   `form:"my_approvals"`
	Search       string `form:"search"`
	Offset       int
	Limit        int
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, actor model.Actor, req CreateRequestDTO) (*model.Request, error)
	ListRequests(ctx context.Context, actor model.Actor, filter RequestFilter) ([]model.Request, int64, error)
	GetRequest(ctx context.Context, actor model.Actor, id string) (*model.Request, error)
	ActOnRequest(ctx context.Context, actor model.Actor, id string, req ActionRequestDTO) (*model.Request, error)
	CancelRequest(ctx context.Context, actor model.Actor, id string) (*model.Request, error)
}

// RequestDeps groups the collaborators of the request service.
type RequestDeps struct {
	Requests    repository.RequestRepository
	Templates   repository.TemplateRepository
	Users       repository.UserRepository
	Sequences   repository.SequenceRepository
	Audits      repository.AuditRepository
	TxManager   repository.TransactionManager
	Notifier    Notifier
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	FrontendURL string
}

type requestService struct {
	RequestDeps
	now func() time.Time
}

func NewRequestService(deps RequestDeps) RequestService {
	return &requestService{RequestDeps: deps, now: time.Now}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, actor model.Actor, dto CreateRequestDTO) (result *model.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.create", attribute.String("actor.id", actor.ID.String()))
	defer func() { tracing.End(span, err) }()

	if err := workflow.CheckCreate(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(dto.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	priority := model.PriorityNormal
	if dto.Priority != "" {
		priority = model.Priority(dto.Priority)
		if !priority.IsValid() {
			return nil, apperr.Validation("invalid priority %q", dto.Priority)
		}
	}
	tplID, err := uuid.Parse(dto.FormTemplateID)
	if err != nil {
		return nil, apperr.Validation("invalid form_template_id")
	}

	tpl, err := s.Templates.GetByID(ctx, tplID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load form template: %w", err)
	}
	if tpl == nil || !tpl.IsActive {
		return nil, apperr.Validation("form template not found or inactive")
	}

	formData := dto.FormData
	if formData == nil {
		formData = map[string]any{}
	}
	if err := workflow.ValidateFormData(tpl.Fields.Data(), formData); err != nil {
		return nil, err
	}

	chain, err := workflow.ResolveChain(ctx, tpl.ApproverChain.Data(), actor, s.Users)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &model.Request{
		FormTemplateID:        tpl.ID,
		FormTemplateName:      tpl.Name,
		DepartmentID:          tpl.DepartmentID,
		RequesterID:           actor.ID,
		RequesterName:         actor.Name,
		RequesterEmail:        actor.Email,
		RequesterDepartmentID: actor.DepartmentID,
		Title:                 title,
		FormData:              formData,
		Notes:                 dto.Notes,
		Priority:              priority,
		Status:                model.StatusInProgress,
		CurrentApprovalStep:   chain.CurrentStep,
		TotalApprovalSteps:    chain.TotalSteps,
		Approvals:             chain.Approvals,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if chain.Empty() {
		req.Status = model.StatusApproved
	}
	if err := workflow.CheckInvariants(*req); err != nil {
		return nil, err
	}

	err = s.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		seq, err := s.Sequences.Next(txCtx, model.SequenceRequestNumber, 0)
		if err != nil {
			return fmt.Errorf("failed to allocate request number: %w", err)
		}
		req.RequestNumber = fmt.Sprintf("REQ-%05d", seq)

		if err := s.Requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return audit(txCtx, s.Audits, actor.ID, model.ActionCreateRequest, req.ID.String(), req.RequestNumber, map[string]interface{}{
			"title":          req.Title,
			"form_template":  tpl.Name,
			"approval_steps": req.TotalApprovalSteps,
			"status":         req.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.Transition("created")
	s.Logger.Info("request created",
		zap.String("request_number", req.RequestNumber),
		zap.String("requester_id", actor.ID.String()),
		zap.Int("approval_steps", req.TotalApprovalSteps),
	)

	s.publish(ctx, broadcast.EventRequestCreated, req, actor)
	if first := req.ApprovalAt(1); first != nil {
		email := mailer.ApprovalRequired(s.mailInfo(req, actor, "", 1))
		s.Notifier.Notify(ctx, NotifyInput{
			UserID:        first.ApproverID,
			RequestID:     req.ID,
			RequestNumber: req.RequestNumber,
			DepartmentID:  req.DepartmentID,
			Type:          model.NotificationApprovalRequired,
			Message:       fmt.Sprintf("New request '%s' from %s requires your approval", req.Title, actor.Name),
			Email:         &email,
		})
	}
	return req, nil
}

func (s *requestService) ListRequests(ctx context.Context, actor model.Actor, filter RequestFilter) ([]model.Request, int64, error) {
	q := repository.RequestQuery{
		Status: filter.Status,
		Search: filter.Search,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}
	if filter.Status != "" && !model.RequestStatus(filter.Status).IsValid() {
		return nil, 0, apperr.Validation("invalid status %q", filter.Status)
	}
	deptID, err := parseOptionalID("department_id", &filter.DepartmentID)
	if err != nil {
		return nil, 0, err
	}
	q.DepartmentID = deptID
	if !actor.Role.Can(model.CapViewAllRequests) {
		q.VisibleTo = &actor.ID
	}
	if filter.MyRequests {
		q.RequesterID = &actor.ID
	}
	if filter.MyApprovals {
		q.PendingApproverID = &actor.ID
	}

	requests, total, err := s.Requests.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, total, nil
}

func (s *requestService) GetRequest(ctx context.Context, actor model.Actor, id string) (*model.Request, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.CheckView(req, actor); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *requestService) ActOnRequest(ctx context.Context, actor model.Actor, id string, dto ActionRequestDTO) (result *model.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.act",
		attribute.String("request.id", id),
		attribute.String("actor.id", actor.ID.String()),
		attribute.String("action", dto.Action),
	)
	defer func() { tracing.End(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := workflow.Act(*current, actor, workflow.Action(strings.ToLower(dto.Action)), dto.Comments, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, current, &tr, actor, dto.Comments); err != nil {
		return nil, err
	}

	next := &tr.Request
	s.Metrics.Transition(string(tr.Outcome))
	s.Logger.Info("request acted upon",
		zap.String("request_number", next.RequestNumber),
		zap.String("actor_id", actor.ID.String()),
		zap.String("outcome", string(tr.Outcome)),
	)

	switch tr.Outcome {
	case workflow.OutcomeAdvanced:
		s.publish(ctx, broadcast.EventRequestUpdated, next, actor)
		if following := tr.NextApprover(); following != nil {
			email := mailer.ApprovalRequired(s.mailInfo(next, actor, "", following.Step))
			s.Notifier.Notify(ctx, NotifyInput{
				UserID:        following.ApproverID,
				RequestID:     next.ID,
				RequestNumber: next.RequestNumber,
				DepartmentID:  next.DepartmentID,
				Type:          model.NotificationApprovalRequired,
				Message:       fmt.Sprintf("Request '%s' requires your approval (Step %d)", next.Title, following.Step),
				Email:         &email,
			})
		}
	case workflow.OutcomeApproved:
		s.publish(ctx, broadcast.EventRequestApproved, next, actor)
		email := mailer.RequestApproved(s.mailInfo(next, actor, dto.Comments, next.CurrentApprovalStep))
		s.Notifier.Notify(ctx, NotifyInput{
			UserID:        next.RequesterID,
			RequestID:     next.ID,
			RequestNumber: next.RequestNumber,
			DepartmentID:  next.DepartmentID,
			Type:          model.NotificationRequestApproved,
			Message:       fmt.Sprintf("Your request '%s' has been fully approved!", next.Title),
			Email:         &email,
		})
	case workflow.OutcomeRejected:
		s.publish(ctx, broadcast.EventRequestRejected, next, actor)
		email := mailer.RequestRejected(s.mailInfo(next, actor, dto.Comments, next.CurrentApprovalStep))
		s.Notifier.Notify(ctx, NotifyInput{
			UserID:        next.RequesterID,
			RequestID:     next.ID,
			RequestNumber: next.RequestNumber,
			DepartmentID:  next.DepartmentID,
			Type:          model.NotificationRequestRejected,
			Message:       fmt.Sprintf("Your request '%s' was rejected by %s", next.Title, actor.Name),
			Email:         &email,
		})
	}
	s.publish(ctx, broadcast.EventRequestStateChanged, next, actor)
	return next, nil
}

func (s *requestService) CancelRequest(ctx context.Context, actor model.Actor, id string) (result *model.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.cancel",
		attribute.String("request.id", id),
		attribute.String("actor.id", actor.ID.String()),
	)
	defer func() { tracing.End(span, err) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := workflow.Cancel(*current, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, current, &tr, actor, ""); err != nil {
		return nil, err
	}

	next := &tr.Request
	s.Metrics.Transition(string(tr.Outcome))
	s.Logger.Info("request cancelled",
		zap.String("request_number", next.RequestNumber),
		zap.String("actor_id", actor.ID.String()),
	)
	s.publish(ctx, broadcast.EventRequestCancelled, next, actor)
	s.publish(ctx, broadcast.EventRequestStateChanged, next, actor)
	return next, nil
}

// --- Helpers ---

func (s *requestService) load(ctx context.Context, id string) (*model.Request, error) {
	reqID, err := parseID("request", id)
	if err != nil {
		return nil, err
	}
	req, err := s.Requests.FindByID(ctx, reqID)
	if err != nil {
		return nil, lookupErr("request", err)
	}
	return req, nil
}

var auditActions = map[workflow.Outcome]string{
	workflow.OutcomeAdvanced:  model.ActionApproveRequest,
	workflow.OutcomeApproved:  model.ActionApproveRequest,
	workflow.OutcomeRejected:  model.ActionRejectRequest,
	workflow.OutcomeCancelled: model.ActionCancelRequest,
}

// persist writes the transition and its audit row atomically. A concurrent
// writer that got there first turns into a conflict carrying the status it left.
func (s *requestService) persist(ctx context.Context, current *model.Request, tr *workflow.Transition, actor model.Actor, comments string) error {
	if err := workflow.CheckInvariants(tr.Request); err != nil {
		return err
	}

	err := s.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Requests.SaveTransition(txCtx, current.Version, &tr.Request, tr.Changed); err != nil {
			return err
		}
		return audit(txCtx, s.Audits, actor.ID, auditActions[tr.Outcome], tr.Request.ID.String(), tr.Request.RequestNumber, map[string]interface{}{
			"from_status": current.Status,
			"to_status":   tr.Request.Status,
			"step":        current.CurrentApprovalStep,
			"comments":    comments,
		})
	})
	if errors.Is(err, repository.ErrStaleRequest) {
		status := ""
		if latest, loadErr := s.Requests.FindByID(ctx, current.ID); loadErr == nil {
			status = string(latest.Status)
		}
		return apperr.Conflict("request was updated by someone else, reload and try again", status)
	}
	if err != nil {
		return fmt.Errorf("failed to save request transition: %w", err)
	}
	return nil
}

func (s *requestService) publish(ctx context.Context, event string, req *model.Request, actor model.Actor) {
	err := s.Broadcaster.Publish(ctx, event, broadcast.RequestPayload{
		RequestID:           req.ID,
		RequestNumber:       req.RequestNumber,
		Title:               req.Title,
		Status:              string(req.Status),
		DepartmentID:        req.DepartmentID,
		RequesterID:         req.RequesterID,
		CurrentApprovalStep: req.CurrentApprovalStep,
		TotalApprovalSteps:  req.TotalApprovalSteps,
		ActorID:             actor.ID,
	})
	if err != nil {
		s.Logger.Warn("failed to broadcast request event",
			zap.String("event", event),
			zap.String("request_number", req.RequestNumber),
			zap.Error(err),
		)
		s.Metrics.SideEffectFailed(metrics.ChannelBroadcast)
	}
}

func (s *requestService) mailInfo(req *model.Request, actor model.Actor, comments string, step int) mailer.RequestInfo {
	info := mailer.RequestInfo{
		Number:        req.RequestNumber,
		Title:         req.Title,
		RequesterName: req.RequesterName,
		ActorName:     actor.Name,
		Comments:      comments,
		Step:          step,
	}
	if s.FrontendURL != "" {
		info.Link = strings.TrimRight(s.FrontendURL, "/") + "/requests/" + req.ID.String()
	}
	return info
}
