package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workflowbridge/internal/broadcast"
	"workflowbridge/internal/database/dbtest"
	"workflowbridge/internal/mailer"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"
	"workflowbridge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

type testServer struct {
	router *gin.Engine
	dept   model.Department
	tpl    model.FormTemplate
	tokens map[string]string
	ids    map[string]uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	log := zap.NewNop()
	m := metrics.New()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTransactionManager(db)

	authService := service.NewAuthService(userRepo, auditRepo, "handler-test", time.Hour, log)
	userService := service.NewUserService(userRepo, departmentRepo, auditRepo, tx)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, broadcast.Nop{}, mailer.New(mailer.Config{}, log), m, log)
	requestService := service.NewRequestService(service.RequestDeps{
		Requests:    requestRepo,
		Templates:   templateRepo,
		Users:       userRepo,
		Sequences:   repository.NewSequenceRepository(db),
		Audits:      auditRepo,
		TxManager:   tx,
		Notifier:    notificationService,
		Broadcaster: broadcast.Nop{},
		Metrics:     m,
		Logger:      log,
	})

	router := NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         log,
		Metrics:        m,
		Verifier:       authService,
	}, Handlers{
		Auth:          NewAuthHandler(authService, userService, time.Hour),
		Users:         NewUserHandler(userService),
		Departments:   NewDepartmentHandler(service.NewDepartmentService(departmentRepo, auditRepo, tx)),
		Templates:     NewTemplateHandler(service.NewTemplateService(templateRepo, departmentRepo, userRepo, auditRepo, tx)),
		Requests:      NewRequestHandler(requestService),
		Notifications: NewNotificationHandler(notificationService),
		Dashboard:     NewDashboardHandler(service.NewDashboardService(requestRepo, userRepo, templateRepo, notificationRepo)),
		Audit:         NewAuditHandler(service.NewAuditService(auditRepo)),
	})

	s := &testServer{
		router: router,
		dept:   model.Department{Name: "Purchasing", Code: "PUR", IsActive: true},
		tokens: map[string]string{},
		ids:    map[string]uuid.UUID{},
	}
	require.NoError(t, db.Create(&s.dept).Error)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	for name, role := range map[string]model.Role{
		"rita":  model.RoleRequestor,
		"alice": model.RoleApprover,
		"root":  model.RoleSuperAdmin,
	} {
		deptID := s.dept.ID
		u := &model.User{Email: name + "@company.com", Name: name, PasswordHash: string(hash), Role: role, DepartmentID: &deptID, IsActive: true}
		require.NoError(t, userRepo.Create(context.Background(), u))
		token, _, err := authService.IssueToken(u)
		require.NoError(t, err)
		s.tokens[name] = token
		s.ids[name] = u.ID
	}

	aliceID := s.ids["alice"]
	s.tpl = model.FormTemplate{
		Name:         "Purchase order",
		DepartmentID: s.dept.ID,
		Fields: datatypes.NewJSONType([]model.FormField{
			{Name: "amount", Label: "Amount", Type: model.FieldNumber, Required: true},
		}),
		ApproverChain: datatypes.NewJSONType([]model.ChainEntry{
			{Step: 1, Type: model.ChainUser, UserID: &aliceID, UserName: "alice"},
		}),
		IsActive: true,
	}
	require.NoError(t, templateRepo.Create(context.Background(), &s.tpl))
	return s
}

func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details map[string]any  `json:"details"`
	Total   int64           `json:"total"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "rita@company.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "rita@company.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "rita@company.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "access_token=")
	var login service.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &login))
	assert.NotEmpty(t, login.AccessToken)

	s.tokens["rita"] = login.AccessToken
	w = s.do(http.MethodGet, "/api/auth/me", "rita", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), "rita@company.com")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", nil).Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/requests", "alice", map[string]any{"form_template_id": s.tpl.ID.String(), "title": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/requests", "rita", map[string]any{"form_template_id": s.tpl.ID.String(), "title": "Paper"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "amount is required")

	w = s.do(http.MethodPost, "/api/requests", "rita", map[string]any{
		"form_template_id": s.tpl.ID.String(),
		"title":            "Paper",
		"form_data":        map[string]any{"amount": "99.90"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Request
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "REQ-00001", created.RequestNumber)
	path := "/api/requests/" + created.ID.String()

	w = s.do(http.MethodGet, "/api/requests?my_approvals=true", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w).Total)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, path+"/action", "rita", map[string]string{"action": "approve"}).Code)
	w = s.do(http.MethodPost, "/api/requests/"+uuid.NewString()+"/action", "rita", map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusNotFound, w.Code, "an unknown request is reported before the role check")
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path+"/action", "alice", map[string]string{}).Code)

	w = s.do(http.MethodPost, path+"/action", "alice", map[string]string{"action": "approve", "comments": "fine"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, path+"/action", "alice", map[string]string{"action": "approve"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "approved", decode(t, w).Details["current_status"])

	w = s.do(http.MethodPost, path+"/cancel", "rita", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/requests/not-a-uuid", "rita", nil).Code)

	w = s.do(http.MethodGet, "/api/notifications", "rita", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "has been fully approved")

	w = s.do(http.MethodGet, "/api/dashboard/stats", "rita", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"approved":1`)
}

func TestAdminRoutesRequireSuperAdmin(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/users", "/api/audit-logs", "/api/departments/all", "/api/form-templates/all"} {
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, "rita", nil).Code, path)
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "root", nil).Code, path)
	}

	w := s.do(http.MethodPost, "/api/departments", "root", map[string]string{"name": "Legal", "code": "leg"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"LEG"`)

	w = s.do(http.MethodGet, "/api/users/approvers", "rita", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	s.do(http.MethodGet, "/api/dashboard/stats", "rita", nil)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "workflow_http_request_duration_seconds")
}
