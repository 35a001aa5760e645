package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service"
)

func protectedRouter(jwtSvc *service.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWTAuthMiddleware(jwtSvc)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok || claims.UserID == "" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/protected", handlers...)
	return r
}

func serve(r http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestJWTAuthMiddleware_AllowsValidToken(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	token, err := jwtSvc.Generate(domain.User{ID: "u1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code := serve(protectedRouter(jwtSvc), token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	if code := serve(protectedRouter(jwtSvc), ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestJWTAuthMiddleware_RejectsForeignSignature(t *testing.T) {
	other := service.NewJWTService("other-secret", 15*time.Minute)
	token, err := other.Generate(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	if code := serve(protectedRouter(jwtSvc), token); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAdminOnly(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	r := protectedRouter(jwtSvc, AdminOnly())

	userToken, _ := jwtSvc.Generate(domain.User{ID: "u1"})
	adminToken, _ := jwtSvc.Generate(domain.User{ID: "a1", IsAdmin: true})

	if code := serve(r, userToken); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}
	if code := serve(r, adminToken); code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", code)
	}
}
