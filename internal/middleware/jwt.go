package middleware

import (
	"context"
	"net/http"

	"dinemart/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTConfig builds the echo-jwt configuration for the operator API. Tokens
// are issued by the platform identity service with the operator id in sub
// and the role in a custom claim; on success both land in the request
// context for handlers and the audit trail.
func JWTConfig(jwtSecret string) echojwt.Config {
	return echojwt.Config{
		SigningKey: []byte(jwtSecret),
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return
			}

			ctx := c.Request().Context()
			if sub, ok := claims["sub"].(string); ok {
				if operatorID, err := uuid.Parse(sub); err == nil {
					ctx = context.WithValue(ctx, common.OperatorIDKey, operatorID)
				}
			}
			if role, ok := claims["role"].(string); ok {
				ctx = context.WithValue(ctx, common.RoleKey, role)
			}
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
}
