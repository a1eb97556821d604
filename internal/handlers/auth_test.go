package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/services"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

// fakeAuthService registers users in memory so handler behavior can be
// exercised without postgres.
type fakeAuthService struct {
	usersByEmail map[string]*types.User
}

func newFakeAuthService() *fakeAuthService {
	return &fakeAuthService{usersByEmail: map[string]*types.User{}}
}

func (f *fakeAuthService) RegisterUser(ctx context.Context, name, email, password string) (*types.User, services.TokenPair, error) {
	if _, exists := f.usersByEmail[email]; exists {
		return nil, services.TokenPair{}, apierr.Validation("User with this email already exists")
	}
	user := &types.User{ID: uuid.New(), Name: name, Email: email}
	f.usersByEmail[email] = user
	return user, services.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuthService) LoginUser(ctx context.Context, email, password string) (*types.User, services.TokenPair, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return nil, services.TokenPair{}, apierr.Unauthorized(apierr.CodeInvalidCredentials, "Invalid email or password")
	}
	return user, services.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuthService) RefreshTokens(ctx context.Context, refreshToken string) (*types.User, services.TokenPair, error) {
	return nil, services.TokenPair{}, apierr.NotFound("User not found")
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	return nil
}

func (f *fakeAuthService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	return ctx, nil
}

func (f *fakeAuthService) GetCurrentUser(ctx context.Context) (*types.User, error) {
	return nil, apierr.Unauthorized(apierr.CodeUnauthorized, "Not authenticated")
}

func (f *fakeAuthService) GetAccessTTL() time.Duration { return time.Hour }

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSignupDuplicateEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ah := NewAuthHandler(newFakeAuthService())
	router.POST("/signup", ah.Signup)

	body := `{"name": "Ada", "email": "a@x.com", "password": "pw"}`

	first := postJSON(t, router, "/signup", body)
	if first.Code != http.StatusOK {
		t.Fatalf("first signup status = %d, want 200; body: %s", first.Code, first.Body.String())
	}
	var resp struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		User         *types.User `json:"user"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.User == nil {
		t.Fatalf("signup response missing token pair or user: %s", first.Body.String())
	}

	second := postJSON(t, router, "/signup", body)
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second signup status = %d, want 400", second.Code)
	}
	if !strings.Contains(second.Body.String(), "User with this email already exists") {
		t.Fatalf("second signup body = %s, want duplicate-email message", second.Body.String())
	}
}

func TestSignupRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ah := NewAuthHandler(newFakeAuthService())
	router.POST("/signup", ah.Signup)

	w := postJSON(t, router, "/signup", `{"name": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
