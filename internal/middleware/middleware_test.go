package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"

	"reportflow/internal/permission"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, permission.Actor, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var actor permission.Actor
	var reached bool
	handler := JWTAuth(testSecret)(func(c echo.Context) error {
		actor, reached = ActorFrom(c)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, actor, reached
}

func TestJWTAuthValidToken(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"user_id":   "user-1",
		"tenant_id": "tenant-1",
		"email":     "chef@example.com",
		"role":      "manager",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	rec, actor, reached := runAuth(t, "Bearer "+raw)
	if rec.Code != http.StatusOK || !reached {
		t.Fatalf("status = %d, reached = %v", rec.Code, reached)
	}
	if actor.TenantID != "tenant-1" || actor.UserID != "user-1" {
		t.Errorf("actor = %+v", actor)
	}
	if actor.Role != permission.RoleManager {
		t.Errorf("role = %q, want manager", actor.Role)
	}
}

func TestJWTAuthRejections(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{
		"tenant_id": "tenant-1",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	noTenant := signToken(t, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + expired},
		{"missing tenant claim", "Bearer " + noTenant},
	}
	for _, tc := range tests {
		rec, _, reached := runAuth(t, tc.header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, rec.Code)
		}
		if reached {
			t.Errorf("%s: handler reached", tc.name)
		}
	}
}

func TestJWTAuthUnknownRoleDegradesToViewer(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{
		"tenant_id": "tenant-1",
		"role":      "galactic-overlord",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	rec, actor, _ := runAuth(t, "Bearer "+raw)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if actor.Role != permission.RoleViewer {
		t.Errorf("role = %q, want viewer", actor.Role)
	}
}
