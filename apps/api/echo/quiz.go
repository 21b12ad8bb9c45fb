package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/quiz"
)

type quizApi struct {
	svc       *quiz.Service
	courseSvc *course.Service
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service, courseSvc *course.Service) {
	api := quizApi{svc: svc, courseSvc: courseSvc}

	qg := g.Group("/courses/:slug/quizzes", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create, staffMiddleware())
	qg.GET("/:quiz", api.retrieve)
	qg.GET("/:quiz/take", api.take)
	qg.POST("/:quiz/take", api.submitAnswer)

	g.POST("/questions", api.addQuestion, jwt, staffMiddleware())
	g.POST("/choices", api.addChoice, jwt, staffMiddleware())
	g.GET("/progress", api.progress, jwt)
}

func (api *quizApi) getCourse(ctx echo.Context) (course.Course, error) {
	crs, err := api.courseSvc.GetCourseBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Cause(err) == course.ErrCourseNotFound {
			return course.Course{}, errHttpNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return crs, nil
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	data.CourseID = crs.ID
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	qz, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *quizApi) query(ctx echo.Context) error {
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	quizzes, err := api.svc.QueryByCourse(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	qz, err := api.svc.GetBySlug(ctx.Request().Context(), crs.ID, ctx.Param("quiz"))
	if err != nil {
		if errors.Cause(err) == quiz.ErrQuizNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

// take starts or resumes the authed user's sitting and serves the current question.
func (api *quizApi) take(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	state, err := api.svc.Take(ctx.Request().Context(), claims.Subject, crs.ID, ctx.Param("quiz"))
	if err != nil {
		if errors.Cause(err) == quiz.ErrQuizNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *quizApi) submitAnswer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	var data quiz.Answer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answer")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	state, err := api.svc.SubmitAnswer(ctx.Request().Context(), claims.Subject, crs.ID, ctx.Param("quiz"), data)
	if err != nil {
		if errors.Cause(err) == quiz.ErrQuizNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *quizApi) addQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	qst, err := api.svc.AddQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, qst)
}

func (api *quizApi) addChoice(ctx echo.Context) error {
	var data quiz.NewChoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChoice")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ch, err := api.svc.AddChoice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding choice")
	}
	return ctx.JSON(http.StatusCreated, ch)
}

func (api *quizApi) progress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	prog, err := api.svc.GetProgress(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}
