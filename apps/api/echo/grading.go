package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/grading"
)

type gradingApi struct {
	svc       grading.Service
	graderSvc grader.Service
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := gradingApi{svc: opts.GradingSvc, graderSvc: opts.GraderSvc}

	gg := g.Group("/grading", jwt, rolesMiddleware(grader.AllRoles...), activeGraderMiddleware(opts.GraderSvc))
	gg.GET("/next", api.next)
	gg.GET("/review", api.review)
	gg.GET("/resolutions", api.resolutions)

	sg := gg.Group("/submissions/:id")
	sg.GET("", api.group)
	sg.POST("/scores", api.score)
	sg.PUT("/resolution", api.resolve)
}

func submissionID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, grading.ErrNotFound
	}
	return id, nil
}

// graderName is how scores reference their author.
func graderName(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func (api *gradingApi) next(ctx echo.Context) error {
	name, err := graderName(ctx)
	if err != nil {
		return err
	}
	problemID, err := strconv.Atoi(ctx.QueryParam("problem_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid problem_id")
	}

	sub, err := api.svc.NextForGrading(ctx.Request().Context(), ctx.QueryParam("language"), problemID, name)
	if err != nil {
		return errors.Wrap(err, "finding next submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *gradingApi) group(ctx echo.Context) error {
	id, err := submissionID(ctx)
	if err != nil {
		return err
	}
	group, err := api.svc.Group(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting submission group")
	}
	return ctx.JSON(http.StatusOK, group)
}

func (api *gradingApi) score(ctx echo.Context) error {
	id, err := submissionID(ctx)
	if err != nil {
		return err
	}
	name, err := graderName(ctx)
	if err != nil {
		return err
	}

	var data grading.NewScore
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScore")
	}
	score, err := api.svc.RecordScore(ctx.Request().Context(), id, name, data)
	if err != nil {
		return errors.Wrap(err, "recording score")
	}
	return ctx.JSON(http.StatusCreated, score)
}

func (api *gradingApi) review(ctx echo.Context) error {
	groups, err := api.svc.SubmissionsNeedingReview(ctx.Request().Context(), ctx.QueryParam("track"))
	if err != nil {
		return errors.Wrap(err, "querying submissions needing review")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *gradingApi) resolve(ctx echo.Context) error {
	id, err := submissionID(ctx)
	if err != nil {
		return err
	}
	name, err := graderName(ctx)
	if err != nil {
		return err
	}

	var data grading.NewResolution
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResolution")
	}
	rs, err := api.svc.Resolve(ctx.Request().Context(), id, name, data)
	if err != nil {
		return errors.Wrap(err, "resolving score")
	}
	return ctx.JSON(http.StatusOK, rs)
}

func (api *gradingApi) resolutions(ctx echo.Context) error {
	resolved, err := api.svc.Resolutions(ctx.Request().Context(), ctx.QueryParam("track"))
	if err != nil {
		return errors.Wrap(err, "querying resolutions")
	}
	return ctx.JSON(http.StatusOK, resolved)
}
