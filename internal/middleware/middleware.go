package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"

	"reportflow/internal/models"
	"reportflow/internal/permission"
)

const actorContextKey = "auth_actor"

// JWTAuth validates the Authorization bearer token and stores the caller's
// identity on the request context. Tokens carry user_id, tenant_id, role and
// email claims; a token without a tenant is rejected.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return unauthorized(c, "Authorization token is required")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return unauthorized(c, "Invalid token")
			}

			tenantID, _ := claims["tenant_id"].(string)
			if tenantID == "" {
				return unauthorized(c, "Invalid token")
			}
			userID, _ := claims["user_id"].(string)
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			c.Set(actorContextKey, permission.Actor{
				UserID:   userID,
				TenantID: tenantID,
				Email:    email,
				Role:     permission.ParseRole(role),
			})
			return next(c)
		}
	}
}

// ActorFrom returns the authenticated caller stored by JWTAuth.
func ActorFrom(c echo.Context) (permission.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(permission.Actor)
	return actor, ok
}

// SetActor stores a caller identity on the context. Used by tests that
// bypass token parsing.
func SetActor(c echo.Context, actor permission.Actor) {
	c.Set(actorContextKey, actor)
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

// CORS configures CORS headers.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if c.Request().Method == "OPTIONS" {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
