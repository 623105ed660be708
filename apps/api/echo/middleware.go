package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core/project"
)

// projectRoleMiddleware restricts a project detail route (":id") to members
// holding one of the given roles; with no roles, any member passes.
func projectRoleMiddleware(svc *project.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			mem, err := svc.GetMember(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
			if err != nil {
				if errors.Cause(err) == project.ErrMemberNotFound {
					return errHttpForbidden
				}
				return errors.Wrap(err, "getting project member")
			}
			if len(roles) == 0 {
				return next(ctx)
			}
			for _, role := range roles {
				if mem.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
