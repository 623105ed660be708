package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core/project"
)

type projectApi struct {
	svc      *project.Service
	validate *validator.Validate
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := projectApi{svc: deps.ProjectSvc, validate: deps.Validate}

	pg := g.Group("/projects", jwt)
	pg.POST("", api.create)
	pg.GET("", api.query)

	// detail endpoints: any member may read
	dg := pg.Group("/:id", projectRoleMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.GET("/members", api.queryMembers)

	// management endpoints: supervisors only
	mg := pg.Group("/:id", projectRoleMiddleware(api.svc, project.RoleSupervisor))
	mg.PUT("", api.update)
	mg.DELETE("", api.destroy)
	mg.POST("/members", api.addMember)
	mg.PUT("/members/:userID", api.changeMemberRole)
	mg.DELETE("/members/:userID", api.removeMember)
}

// Handlers

func (api *projectApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectApi) query(ctx echo.Context) error {
	projects, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	prj, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == project.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) update(ctx echo.Context) error {
	var data project.UpdateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == project.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) queryMembers(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying project members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *projectApi) addMember(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data project.NewMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mem, err := api.svc.AddMember(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		switch errors.Cause(err) {
		case project.ErrNotFound:
			return errHttpNotFound
		case project.ErrMemberExists:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "adding project member")
	}
	return ctx.JSON(http.StatusCreated, mem)
}

func (api *projectApi) changeMemberRole(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data project.ChangeRole
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeRole")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mem, err := api.svc.ChangeMemberRole(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userID"), data, claims.Subject)
	if err != nil {
		if errors.Cause(err) == project.ErrMemberNotFound {
			return errHttpNotFound
		}
		return err // InvariantViolationError handled by the error handler
	}
	return ctx.JSON(http.StatusOK, mem)
}

func (api *projectApi) removeMember(ctx echo.Context) error {
	err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userID"))
	if err != nil {
		if errors.Cause(err) == project.ErrMemberNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
