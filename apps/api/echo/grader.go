package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grader"
)

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	SetActiveRequest struct {
		IsActive bool `json:"is_active"`
	}
)

type authApi struct {
	svc  grader.Service
	conf *core.Config
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc grader.Service, conf *core.Config) {
	api := authApi{svc: svc, conf: conf}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var data grader.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	g, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	token, err := GenerateToken(GetGraderClaims(g, api.conf), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type graderApi struct {
	svc grader.Service
}

func registerGraderAPI(g *echo.Group, svc grader.Service) {
	api := graderApi{svc: svc}

	gg := g.Group("/graders")
	gg.GET("", api.query)
	gg.POST("", api.create)
	gg.GET("/roles", api.queryRoles)
	gg.PUT("/:id/active", api.setActive)
}

func (api *graderApi) query(ctx echo.Context) error {
	graders, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying graders")
	}
	return ctx.JSON(http.StatusOK, graders)
}

func (api *graderApi) create(ctx echo.Context) error {
	var data grader.NewGrader
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrader")
	}
	g, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grader")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *graderApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, grader.AllRoles)
}

func (api *graderApi) setActive(ctx echo.Context) error {
	var data SetActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}

	// Say No to Suicide! an admin cannot deactivate themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.Subject == ctx.Param("id") && !data.IsActive {
		return errHttpForbidden
	}

	g, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting grader active")
	}
	return ctx.JSON(http.StatusOK, g)
}
