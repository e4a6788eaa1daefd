package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/broadcast"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approve(comments string) ActionRequestDTO {
	return ActionRequestDTO{Action: "approve", Comments: comments}
}

func TestTwoStepApprovalFlow(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	bob := f.user(t, "bob", model.RoleApprover)
	tpl := f.template(t, alice, bob)

	req := f.create(t, rita, tpl, "New laptop")
	assert.Equal(t, "REQ-00001", req.RequestNumber)
	assert.Equal(t, model.StatusInProgress, req.Status)
	assert.Equal(t, 1, req.CurrentApprovalStep)
	assert.Equal(t, 2, req.TotalApprovalSteps)
	require.Len(t, req.Approvals, 2)
	assert.Equal(t, model.ApprovalPending, req.ApprovalAt(1).Status)
	assert.Equal(t, model.ApprovalWaiting, req.ApprovalAt(2).Status)

	awaiting := func(actor model.Actor) int64 {
		_, total, err := f.requests.ListRequests(f.ctx, actor, RequestFilter{MyApprovals: true})
		require.NoError(t, err)
		return total
	}
	assert.EqualValues(t, 1, awaiting(alice))
	assert.EqualValues(t, 0, awaiting(bob))

	aliceNotes := f.notificationsFor(t, alice)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, "New request 'New laptop' from rita requires your approval", aliceNotes[0].Message)
	assert.Equal(t, model.NotificationApprovalRequired, aliceNotes[0].Type)

	req, err := f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve("ok"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, req.Status)
	assert.Equal(t, 2, req.CurrentApprovalStep)
	assert.Equal(t, model.ApprovalApproved, req.ApprovalAt(1).Status)
	assert.Equal(t, "ok", req.ApprovalAt(1).Comments)
	assert.NotNil(t, req.ApprovalAt(1).ActedAt)
	assert.Equal(t, model.ApprovalPending, req.ApprovalAt(2).Status)

	assert.EqualValues(t, 0, awaiting(alice))
	assert.EqualValues(t, 1, awaiting(bob))

	bobNotes := f.notificationsFor(t, bob)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, "Request 'New laptop' requires your approval (Step 2)", bobNotes[0].Message)

	req, err = f.requests.ActOnRequest(f.ctx, bob, req.ID.String(), approve(""))
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, req.Status)

	ritaNotes := f.notificationsFor(t, rita)
	require.Len(t, ritaNotes, 1)
	assert.Equal(t, "Your request 'New laptop' has been fully approved!", ritaNotes[0].Message)
	assert.Equal(t, model.NotificationRequestApproved, ritaNotes[0].Type)

	stored, err := f.requests.GetRequest(f.ctx, rita, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Equal(t, 3, stored.Version)

	assert.Equal(t, []string{
		broadcast.EventRequestCreated,
		broadcast.EventNotificationCreated,
		broadcast.EventRequestUpdated,
		broadcast.EventNotificationCreated,
		broadcast.EventRequestStateChanged,
		broadcast.EventRequestApproved,
		broadcast.EventNotificationCreated,
		broadcast.EventRequestStateChanged,
	}, f.events.names())

	require.Len(t, f.mail.sent, 3)
	assert.Equal(t, "alice@company.com", f.mail.sent[0].To)
	assert.Equal(t, "bob@company.com", f.mail.sent[1].To)
	assert.Equal(t, "rita@company.com", f.mail.sent[2].To)
	assert.Contains(t, f.mail.sent[0].Subject, "REQ-00001")
}

func TestRejectStopsChain(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	bob := f.user(t, "bob", model.RoleApprover)
	req := f.create(t, rita, f.template(t, alice, bob), "Conference trip")

	req, err := f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), ActionRequestDTO{Action: "REJECT", Comments: "no budget"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, req.Status)
	assert.Equal(t, model.ApprovalRejected, req.ApprovalAt(1).Status)
	assert.Equal(t, model.ApprovalWaiting, req.ApprovalAt(2).Status)

	assert.Empty(t, f.notificationsFor(t, bob))
	ritaNotes := f.notificationsFor(t, rita)
	require.Len(t, ritaNotes, 1)
	assert.Equal(t, "Your request 'Conference trip' was rejected by alice", ritaNotes[0].Message)

	_, err = f.requests.ActOnRequest(f.ctx, bob, req.ID.String(), approve(""))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, string(model.StatusRejected), apperr.CurrentStatusOf(err))
}

func TestActPreconditions(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	bob := f.user(t, "bob", model.RoleApprover)
	req := f.create(t, rita, f.template(t, alice, bob), "Desk")

	_, err := f.requests.ActOnRequest(f.ctx, rita, req.ID.String(), approve(""))
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "requestor role cannot approve")

	_, err = f.requests.ActOnRequest(f.ctx, bob, req.ID.String(), approve(""))
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "step 2 approver acts out of turn")

	_, err = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), ActionRequestDTO{Action: "escalate"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
	require.NoError(t, err)
	_, err = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "you have already acted on this request", apperr.Public(err))

	_, err = f.requests.ActOnRequest(f.ctx, alice, uuid.NewString(), approve(""))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.requests.ActOnRequest(f.ctx, alice, "not-a-uuid", approve(""))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentApprovalsConflict(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	req := f.create(t, rita, f.template(t, alice), "Monitor")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := f.requests.GetRequest(f.ctx, rita, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Len(t, f.notificationsFor(t, rita), 1)
}

// pinnedReads serves a fixed snapshot of one request for the next
// remaining lookups, as if every caller had read it at the same moment.
type pinnedReads struct {
	repository.RequestRepository
	mu        sync.Mutex
	snapshot  *model.Request
	remaining int
}

func (p *pinnedReads) pin(req *model.Request, reads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := req.Clone()
	p.snapshot = &clone
	p.remaining = reads
}

func (p *pinnedReads) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	p.mu.Lock()
	if p.snapshot != nil && p.snapshot.ID == id && p.remaining > 0 {
		p.remaining--
		clone := p.snapshot.Clone()
		p.mu.Unlock()
		return &clone, nil
	}
	p.mu.Unlock()
	return p.RequestRepository.FindByID(ctx, id)
}

func TestStaleTransitionIsReportedAsConflict(t *testing.T) {
	pinned := &pinnedReads{}
	f := newFixture(t, func(r repository.RequestRepository) repository.RequestRepository {
		pinned.RequestRepository = r
		return pinned
	})
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	bob := f.user(t, "bob", model.RoleApprover)
	req := f.create(t, rita, f.template(t, alice, bob), "Standing desk")
	require.Equal(t, 1, req.Version)

	// Both calls load version 1; only the first may commit.
	pinned.pin(req, 2)

	first, err := f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve("first"))
	require.NoError(t, err)
	assert.Equal(t, 2, first.CurrentApprovalStep)

	_, err = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), ActionRequestDTO{Action: "reject"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "request was updated by someone else, reload and try again", apperr.Public(err))
	assert.Equal(t, string(model.StatusInProgress), apperr.CurrentStatusOf(err))

	stored, err := f.requests.GetRequest(f.ctx, rita, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, stored.Status)
	assert.Equal(t, 2, stored.CurrentApprovalStep)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, model.ApprovalApproved, stored.Approvals[0].Status)
	assert.Equal(t, "first", stored.Approvals[0].Comments)

	assert.Equal(t, float64(1), counterValue(t, f.metrics, "workflow_request_transitions_total", "advanced"))
	assert.Zero(t, counterValue(t, f.metrics, "workflow_request_transitions_total", "rejected"))
	assert.Empty(t, f.notificationsFor(t, rita))
}

func TestNotificationEventsCarryDepartment(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	req := f.create(t, rita, f.template(t, alice), "Projector")
	_, err := f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
	require.NoError(t, err)

	var payloads []broadcast.NotificationPayload
	for _, e := range f.events.events {
		if e.Event == broadcast.EventNotificationCreated {
			payloads = append(payloads, e.Payload.(broadcast.NotificationPayload))
		}
	}
	require.Len(t, payloads, 2)
	for _, p := range payloads {
		assert.Equal(t, req.ID, p.RequestID)
		assert.Equal(t, req.RequestNumber, p.RequestNumber)
		assert.Equal(t, f.dept.ID, p.DepartmentID)
	}
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	admin := f.user(t, "root", model.RoleSuperAdmin)
	tpl := f.template(t, alice)

	req := f.create(t, rita, tpl, "Chair")
	_, err := f.requests.CancelRequest(f.ctx, alice, req.ID.String())
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	f.events.reset()
	cancelled, err := f.requests.CancelRequest(f.ctx, rita, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, model.ApprovalPending, cancelled.ApprovalAt(1).Status)
	assert.Equal(t, []string{broadcast.EventRequestCancelled, broadcast.EventRequestStateChanged}, f.events.names())

	_, err = f.requests.CancelRequest(f.ctx, rita, req.ID.String())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "cancelled", apperr.CurrentStatusOf(err))

	other := f.create(t, rita, tpl, "Lamp")
	cancelled, err = f.requests.CancelRequest(f.ctx, admin, other.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
}

func TestEmptyChainIsApprovedOnCreate(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	req := f.create(t, rita, f.template(t), "Stationery")

	assert.Equal(t, model.StatusApproved, req.Status)
	assert.Equal(t, 0, req.TotalApprovalSteps)
	assert.Empty(t, req.Approvals)
	assert.Equal(t, []string{broadcast.EventRequestCreated}, f.events.names())
}

func TestImmediateManagerResolution(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	manager := f.user(t, "maria", model.RoleManager)
	alice := f.user(t, "alice", model.RoleApprover)
	aliceID := alice.ID

	tpl := f.templateWithChain(t, []model.ChainEntry{
		{Step: 1, Type: model.ChainImmediateManager},
		{Step: 2, Type: model.ChainUser, UserID: &aliceID, UserName: alice.Name},
	})
	req := f.create(t, rita, tpl, "Training")
	require.Len(t, req.Approvals, 2)
	assert.Equal(t, manager.ID, req.ApprovalAt(1).ApproverID)
	assert.Equal(t, alice.ID, req.ApprovalAt(2).ApproverID)

	outsider := f.user(t, "otto", model.RoleRequestor)
	outsider.DepartmentID = nil
	_, err := f.requests.CreateRequest(f.ctx, outsider, CreateRequestDTO{
		FormTemplateID: tpl.ID.String(),
		Title:          "Offsite",
		FormData:       map[string]any{"amount": 10},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestManagerChainDeduplicates(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	manager := f.user(t, "maria", model.RoleManager)
	managerID := manager.ID

	tpl := f.templateWithChain(t, []model.ChainEntry{
		{Step: 1, Type: model.ChainUser, UserID: &managerID, UserName: manager.Name},
		{Step: 2, Type: model.ChainImmediateManager},
	})
	req := f.create(t, rita, tpl, "Software licence")
	require.Len(t, req.Approvals, 1)
	assert.Equal(t, 1, req.TotalApprovalSteps)
	assert.Equal(t, manager.ID, req.ApprovalAt(1).ApproverID)
}

func TestRequestNumbersAreSequential(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	tpl := f.template(t, f.user(t, "alice", model.RoleApprover))

	for _, want := range []string{"REQ-00001", "REQ-00002", "REQ-00003"} {
		assert.Equal(t, want, f.create(t, rita, tpl, "Item").RequestNumber)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	tpl := f.template(t, alice)

	cases := []struct {
		name  string
		actor model.Actor
		dto   CreateRequestDTO
		kind  apperr.Kind
	}{
		{"approver cannot create", alice, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "x", FormData: map[string]any{"amount": 1}}, apperr.KindAuthorization},
		{"blank title", rita, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "  ", FormData: map[string]any{"amount": 1}}, apperr.KindValidation},
		{"missing required field", rita, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "x"}, apperr.KindValidation},
		{"non numeric amount", rita, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "x", FormData: map[string]any{"amount": "lots"}}, apperr.KindValidation},
		{"unknown template", rita, CreateRequestDTO{FormTemplateID: uuid.NewString(), Title: "x"}, apperr.KindValidation},
		{"bad priority", rita, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "x", Priority: "asap", FormData: map[string]any{"amount": 1}}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.requests.CreateRequest(f.ctx, tc.actor, tc.dto)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}

	tpl.IsActive = false
	require.NoError(t, f.templates.Update(f.ctx, tpl))
	_, err := f.requests.CreateRequest(f.ctx, rita, CreateRequestDTO{FormTemplateID: tpl.ID.String(), Title: "x", FormData: map[string]any{"amount": 1}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRequestVisibility(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	sam := f.user(t, "sam", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	bob := f.user(t, "bob", model.RoleApprover)
	admin := f.user(t, "root", model.RoleSuperAdmin)
	req := f.create(t, rita, f.template(t, alice, bob), "Printer ink")
	f.create(t, sam, f.template(t, alice), "Projector")

	_, err := f.requests.GetRequest(f.ctx, sam, req.ID.String())
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	// Waiting approvers can already see the request.
	_, err = f.requests.GetRequest(f.ctx, bob, req.ID.String())
	assert.NoError(t, err)

	list := func(actor model.Actor, filter RequestFilter) int64 {
		_, total, err := f.requests.ListRequests(f.ctx, actor, filter)
		require.NoError(t, err)
		return total
	}
	assert.EqualValues(t, 1, list(rita, RequestFilter{}))
	assert.EqualValues(t, 1, list(bob, RequestFilter{}))
	assert.EqualValues(t, 2, list(alice, RequestFilter{}))
	assert.EqualValues(t, 2, list(admin, RequestFilter{}))
	assert.EqualValues(t, 0, list(admin, RequestFilter{MyRequests: true}))
	assert.EqualValues(t, 1, list(admin, RequestFilter{Search: "printer"}))
	assert.EqualValues(t, 1, list(admin, RequestFilter{Search: "req-00002"}))
	assert.EqualValues(t, 2, list(admin, RequestFilter{Status: "in_progress"}))
	assert.EqualValues(t, 0, list(admin, RequestFilter{Status: "approved"}))

	_, _, err = f.requests.ListRequests(f.ctx, admin, RequestFilter{Status: "done"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestBroadcastFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("nats down")
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)

	req := f.create(t, rita, f.template(t, alice), "Keyboard")
	_, err := f.requests.ActOnRequest(f.ctx, alice, req.ID.String(), approve(""))
	require.NoError(t, err)

	assert.Equal(t, float64(5), counterValue(t, f.metrics, "workflow_side_effect_failures_total", metrics.ChannelBroadcast))
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "workflow_request_transitions_total", "approved"))
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	rita := f.user(t, "rita", model.RoleRequestor)
	alice := f.user(t, "alice", model.RoleApprover)
	admin := f.user(t, "root", model.RoleSuperAdmin)
	tpl := f.template(t, alice)

	first := f.create(t, rita, tpl, "A")
	f.create(t, rita, tpl, "B")
	_, err := f.requests.ActOnRequest(f.ctx, alice, first.ID.String(), approve(""))
	require.NoError(t, err)

	stats, err := f.dashboard.GetStats(f.ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.Approved)
	assert.EqualValues(t, 1, stats.InProgress)
	assert.EqualValues(t, 1, stats.MyPendingApprovals)
	assert.EqualValues(t, 2, stats.UnreadNotifications)
	assert.Nil(t, stats.TotalUsers)

	stats, err = f.dashboard.GetStats(f.ctx, admin)
	require.NoError(t, err)
	require.NotNil(t, stats.TotalUsers)
	assert.EqualValues(t, 3, *stats.TotalUsers)
	assert.EqualValues(t, 1, *stats.TotalTemplates)
}

func counterValue(t *testing.T, m *metrics.Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
