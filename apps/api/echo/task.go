package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
)

type (
	AssignRequest struct {
		AssigneeIDs []string `json:"assignee_ids" validate:"required"`
	}

	taskApi struct {
		svc      *task.Service
		prjSvc   *project.Service
		validate *validator.Validate
	}
)

func (ar *AssignRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(ar)
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := taskApi{svc: deps.TaskSvc, prjSvc: deps.ProjectSvc, validate: deps.Validate}

	// project-scoped listing and creation
	pg := g.Group("/projects/:id/tasks", jwt, projectRoleMiddleware(api.prjSvc))
	pg.GET("", api.queryByProject)
	pg.POST("", api.create)

	tg := g.Group("/tasks", jwt)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
	tg.GET("/:id/assignees", api.queryAssignees)
	tg.PUT("/:id/assignees", api.assign)
}

// Handlers

func (api *taskApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data task.NewTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	data.ProjectID = ctx.Param("id")
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tsk, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *taskApi) queryByProject(ctx echo.Context) error {
	tasks, err := api.svc.QueryByProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// requireTaskMember loads the task and verifies the caller belongs to its project.
func (api *taskApi) requireTaskMember(ctx echo.Context) (task.Task, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return task.Task{}, err
	}
	tsk, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return task.Task{}, errHttpNotFound
		}
		return task.Task{}, errors.Wrap(err, "getting task")
	}
	if _, err = api.prjSvc.GetMember(ctx.Request().Context(), tsk.ProjectID, claims.Subject); err != nil {
		if errors.Cause(err) == project.ErrMemberNotFound {
			return task.Task{}, errHttpForbidden
		}
		return task.Task{}, errors.Wrap(err, "getting project member")
	}
	return tsk, nil
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	tsk, err := api.requireTaskMember(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) update(ctx echo.Context) error {
	tsk, err := api.requireTaskMember(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tsk, err = api.svc.Update(ctx.Request().Context(), tsk.ID, data)
	if err != nil {
		if errors.Cause(err) == task.ErrInvalidStatusChange {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	tsk, err := api.requireTaskMember(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), tsk.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) queryAssignees(ctx echo.Context) error {
	tsk, err := api.requireTaskMember(ctx)
	if err != nil {
		return err
	}
	ids, err := api.svc.Assignees(ctx.Request().Context(), tsk.ID)
	if err != nil {
		return errors.Wrap(err, "querying task assignees")
	}
	return ctx.JSON(http.StatusOK, ids)
}

func (api *taskApi) assign(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	tsk, err := api.requireTaskMember(ctx)
	if err != nil {
		return err
	}

	var data AssignRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tsk, err = api.svc.Assign(ctx.Request().Context(), tsk.ID, data.AssigneeIDs, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tsk)
}
