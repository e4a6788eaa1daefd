package service

import (
	"context"
	"sync"
	"testing"

	"workflowbridge/internal/database/dbtest"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type published struct {
	Event   string
	Payload any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *eventRecorder) Publish(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Event: event, Payload: payload})
	return r.err
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type sentMail struct {
	To      string
	Subject string
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *mailRecorder) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject})
	return nil
}

type fixture struct {
	db            *gorm.DB
	ctx           context.Context
	requests      RequestService
	notifications NotificationService
	dashboard     DashboardService
	events        *eventRecorder
	mail          *mailRecorder
	metrics       *metrics.Metrics
	users         repository.UserRepository
	templates     repository.TemplateRepository
	dept          model.Department
}

// newFixture wires the services over a fresh database. wrap, when given,
// decorates the request repository seen by the request service.
func newFixture(t *testing.T, wrap ...func(repository.RequestRepository) repository.RequestRepository) *fixture {
	t.Helper()
	db := dbtest.New(t)

	users := repository.NewUserRepository(db)
	templates := repository.NewTemplateRepository(db)
	requests := repository.NewRequestRepository(db)
	serviceRequests := requests
	for _, w := range wrap {
		serviceRequests = w(serviceRequests)
	}
	audits := repository.NewAuditRepository(db)
	events := &eventRecorder{}
	mail := &mailRecorder{}
	m := metrics.New()
	logger := zap.NewNop()

	notifications := NewNotificationService(repository.NewNotificationRepository(db), users, events, mail, m, logger)

	f := &fixture{
		db:  db,
		ctx: context.Background(),
		requests: NewRequestService(RequestDeps{
			Requests:    serviceRequests,
			Templates:   templates,
			Users:       users,
			Sequences:   repository.NewSequenceRepository(db),
			Audits:      audits,
			TxManager:   repository.NewTransactionManager(db),
			Notifier:    notifications,
			Broadcaster: events,
			Metrics:     m,
			Logger:      logger,
			FrontendURL: "http://localhost:3000",
		}),
		notifications: notifications,
		dashboard:     NewDashboardService(requests, users, templates, repository.NewNotificationRepository(db)),
		events:        events,
		mail:          mail,
		metrics:       m,
		users:         users,
		templates:     templates,
		dept:          model.Department{Name: "Accounting", Code: "ACCT", IsActive: true},
	}
	require.NoError(t, db.Create(&f.dept).Error)
	return f
}

func (f *fixture) user(t *testing.T, name string, role model.Role) model.Actor {
	t.Helper()
	deptID := f.dept.ID
	u := &model.User{
		Email:        name + "@company.com",
		Name:         name,
		PasswordHash: "unused",
		Role:         role,
		DepartmentID: &deptID,
		IsActive:     true,
	}
	require.NoError(t, f.users.Create(f.ctx, u))
	return u.Actor()
}

func (f *fixture) template(t *testing.T, approvers ...model.Actor) *model.FormTemplate {
	t.Helper()
	chain := make([]model.ChainEntry, 0, len(approvers))
	for i, a := range approvers {
		id := a.ID
		chain = append(chain, model.ChainEntry{Step: i + 1, Type: model.ChainUser, UserID: &id, UserName: a.Name})
	}
	return f.templateWithChain(t, chain)
}

func (f *fixture) templateWithChain(t *testing.T, chain []model.ChainEntry) *model.FormTemplate {
	t.Helper()
	tpl := &model.FormTemplate{
		Name:         "Purchase " + uuid.NewString()[:8],
		DepartmentID: f.dept.ID,
		Fields: datatypes.NewJSONType([]model.FormField{
			{Name: "amount", Label: "Amount", Type: model.FieldNumber, Required: true},
			{Name: "vendor", Label: "Vendor", Type: model.FieldText},
		}),
		ApproverChain: datatypes.NewJSONType(chain),
		IsActive:      true,
	}
	require.NoError(t, f.templates.Create(f.ctx, tpl))
	return tpl
}

func (f *fixture) create(t *testing.T, requester model.Actor, tpl *model.FormTemplate, title string) *model.Request {
	t.Helper()
	req, err := f.requests.CreateRequest(f.ctx, requester, CreateRequestDTO{
		FormTemplateID: tpl.ID.String(),
		Title:          title,
		FormData:       map[string]any{"amount": 1200.5, "vendor": "Acme"},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) notificationsFor(t *testing.T, actor model.Actor) []model.Notification {
	t.Helper()
	page, err := f.notifications.List(f.ctx, actor, false, 0, 50)
	require.NoError(t, err)
	return page.Items
}
