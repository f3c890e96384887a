package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/issuetracker/issues-api/internal/core/auth"
	"github.com/issuetracker/issues-api/internal/core/domain"
)

// RBAC enforces role-based access control. It must run after Auth. ADMIN
// passes every check; other roles must be listed.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	roles := append([]domain.Role(nil), allowedRoles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFrom(c)
			if user == nil {
				return domain.ErrUnauthenticated
			}
			if !auth.Allows(user, roles...) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
