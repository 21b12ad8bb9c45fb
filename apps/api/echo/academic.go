package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
)

type academicApi struct {
	svc *academic.Service
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *academic.Service) {
	api := academicApi{svc: svc}

	// only admins manage the school calendar; all authed users may read it
	sg := g.Group("/sessions", jwt)
	sg.GET("", api.querySessions)
	sg.POST("", api.createSession, adminMiddleware())
	sg.GET("/current", api.currentSession)
	sg.GET("/:id", api.retrieveSession)
	sg.PUT("/:id", api.updateSession, adminMiddleware())
	sg.DELETE("/:id", api.destroySession, adminMiddleware())

	smg := g.Group("/semesters", jwt)
	smg.GET("", api.querySemesters)
	smg.POST("", api.createSemester, adminMiddleware())
	smg.GET("/current", api.currentSemester)
	smg.GET("/:id", api.retrieveSemester)
	smg.PUT("/:id", api.updateSemester, adminMiddleware())
	smg.DELETE("/:id", api.destroySemester, adminMiddleware())
}

// Session handlers

func (api *academicApi) createSession(ctx echo.Context) error {
	var data academic.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	sess, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *academicApi) querySessions(ctx echo.Context) error {
	sessions, err := api.svc.QuerySessions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []academic.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *academicApi) currentSession(ctx echo.Context) error {
	sess, err := api.svc.GetCurrentSession(ctx.Request().Context())
	if err != nil {
		if errors.Cause(err) == academic.ErrSessionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding current session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *academicApi) retrieveSession(ctx echo.Context) error {
	sess, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == academic.ErrSessionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *academicApi) updateSession(ctx echo.Context) error {
	orig, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == academic.ErrSessionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding session")
	}

	var data academic.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(ctx.Request().Context(), orig, api.svc); err != nil {
		return err
	}

	sess, err := api.svc.UpdateSession(ctx.Request().Context(), orig, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *academicApi) destroySession(ctx echo.Context) error {
	if err := api.svc.DeleteSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == academic.ErrSessionNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Semester handlers

func (api *academicApi) createSemester(ctx echo.Context) error {
	var data academic.NewSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSemester")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

func (api *academicApi) querySemesters(ctx echo.Context) error {
	semesters, err := api.svc.QuerySemesters(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying semesters")
	}
	if semesters == nil {
		semesters = []academic.Semester{}
	}
	return ctx.JSON(http.StatusOK, semesters)
}

func (api *academicApi) currentSemester(ctx echo.Context) error {
	sem, err := api.svc.GetCurrentSemester(ctx.Request().Context())
	if err != nil {
		if errors.Cause(err) == academic.ErrSemesterNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding current semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *academicApi) retrieveSemester(ctx echo.Context) error {
	sem, err := api.svc.GetSemester(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == academic.ErrSemesterNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *academicApi) updateSemester(ctx echo.Context) error {
	orig, err := api.svc.GetSemester(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == academic.ErrSemesterNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding semester")
	}

	var data academic.UpdateSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSemester")
	}
	if err := data.Validate(ctx.Request().Context(), orig, api.svc); err != nil {
		return err
	}

	sem, err := api.svc.UpdateSemester(ctx.Request().Context(), orig, data)
	if err != nil {
		return errors.Wrap(err, "updating semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *academicApi) destroySemester(ctx echo.Context) error {
	if err := api.svc.DeleteSemester(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == academic.ErrSemesterNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
