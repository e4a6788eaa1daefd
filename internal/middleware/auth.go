package middleware

import (
	"context"
	"net/http"
	"strings"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"
	"workflowbridge/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie = "access_token"
	currentUserKey    = "currentUser"
)

// TokenVerifier resolves a bearer token to the active user it was issued to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*model.User, error)
}

// SetTokenCookie stores the access token as an HttpOnly cookie. Release mode
// serves the frontend cross-origin, so the cookie must be SameSite=None and Secure.
func SetTokenCookie(c *gin.Context, token string, maxAge int) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, maxAge, "/", "", secure, true)
}

func ClearTokenCookie(c *gin.Context) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
}

func cookiePolicy() (http.SameSite, bool) {
	if gin.Mode() == gin.ReleaseMode {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// Authenticate requires a valid token from the Authorization header, falling
// back to the access_token cookie, and stores the user on the context.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, apperr.Unauthenticated("authorization is missing"))
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// RequireCapability must run after Authenticate.
func RequireCapability(capability model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.Unauthenticated("authorization is missing"))
			return
		}
		if !user.Role.Can(capability) {
			abort(c, apperr.Forbidden("access denied: insufficient permissions"))
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireCapability(model.CapAdminister)
}

// CurrentUser returns the user set by Authenticate.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// CurrentActor is CurrentUser reduced to what services need. It returns the
// zero Actor on unauthenticated routes.
func CurrentActor(c *gin.Context) model.Actor {
	user, ok := CurrentUser(c)
	if !ok {
		return model.Actor{}
	}
	return user.Actor()
}

func abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.AbortWithStatusJSON(status, response.Error(status, apperr.Public(err)))
}
