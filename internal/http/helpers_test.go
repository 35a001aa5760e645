package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/email"
	"storefront/internal/repository"
	"storefront/internal/service"
)

type mockMailQueue struct {
	mu   sync.Mutex
	jobs []email.Job
}

func (m *mockMailQueue) Enqueue(job email.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockMailQueue) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.jobs) - 1; i >= 0; i-- {
		if m.jobs[i].Kind != "otp" {
			continue
		}
		subject := m.jobs[i].Message.Subject
		return subject[strings.LastIndex(subject, ": ")+2:]
	}
	t.Fatalf("no otp email queued")
	return ""
}

func (m *mockMailQueue) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Kind)
	}
	return out
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ context.Context, _ string) bool {
	return m.allow
}

type testServer struct {
	router *gin.Engine
	store  *repository.MemoryStore
	jwt    *service.JWTService
	mailer *mockMailQueue
}

func newTestServer(t *testing.T, limiter service.OTPRateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	mailer := &mockMailQueue{}
	jwtSvc := service.NewJWTService("test-secret", time.Hour)

	userSvc := service.NewUserService(logger, store.Users(), service.NewMemoryOTPStore(), mailer, limiter, 10*time.Minute)
	productSvc := service.NewProductService(logger, store.Products())
	orderSvc := service.NewOrderService(logger, store.Products(), store.Orders(), service.DefaultPricing())

	router := NewRouter(logger, jwtSvc,
		NewUserHandler(logger, userSvc, jwtSvc),
		NewProductHandler(logger, productSvc),
		NewOrderHandler(logger, orderSvc),
	)
	return &testServer{router: router, store: store, jwt: jwtSvc, mailer: mailer}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register crea la cuenta por HTTP y devuelve id y token.
func (s *testServer) register(t *testing.T, name, addr string) (string, string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": addr, "password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	decode(t, rec, &resp)
	return resp.ID, resp.Token
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	admin, err := s.store.Users().Create(context.Background(), domain.User{
		Name: "Admin", Email: "admin@example.com", IsAdmin: true, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	token, err := s.jwt.Generate(admin)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	return token
}

func (s *testServer) product(t *testing.T, name, category string, price float64, stock int) domain.Product {
	t.Helper()
	p, err := s.store.Products().Create(context.Background(), domain.Product{
		Name: name, Category: category, Price: price, CountInStock: stock, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
