package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubVerifier map[string]*model.User

func (s stubVerifier) VerifyToken(_ context.Context, token string) (*model.User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, apperr.Unauthenticated("invalid or expired token")
}

func newRouter(verifier TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()), RequestLogger(zap.NewNop()))
	authed := r.Group("/", Authenticate(verifier))
	authed.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, CurrentActor(c).Name)
	})
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestAuthenticate(t *testing.T) {
	verifier := stubVerifier{
		"rita-token": {ID: uuid.New(), Name: "rita", Role: model.RoleRequestor, IsActive: true},
		"root-token": {ID: uuid.New(), Name: "root", Role: model.RoleSuperAdmin, IsActive: true},
	}
	r := newRouter(verifier)

	cases := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
		body   string
	}{
		{"bearer header", "/me", "Bearer rita-token", "", http.StatusOK, "rita"},
		{"lowercase scheme", "/me", "bearer rita-token", "", http.StatusOK, "rita"},
		{"cookie fallback", "/me", "", "root-token", http.StatusOK, "root"},
		{"missing", "/me", "", "", http.StatusUnauthorized, ""},
		{"malformed header", "/me", "Token rita-token", "", http.StatusUnauthorized, ""},
		{"unknown token", "/me", "Bearer nope", "", http.StatusUnauthorized, ""},
		{"non admin", "/admin", "Bearer rita-token", "", http.StatusForbidden, ""},
		{"admin", "/admin", "Bearer root-token", "", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	r := newRouter(stubVerifier{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
