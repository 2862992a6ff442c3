package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/participant"
)

type UpdatedResponse struct {
	Updated int `json:"updated"`
}

type adminApi struct {
	participantSvc participant.Service
	examSvc        exam.Service
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := adminApi{participantSvc: opts.ParticipantSvc, examSvc: opts.ExamSvc}

	ag := g.Group("/admin", jwt, adminMiddleware(), activeGraderMiddleware(opts.GraderSvc))

	pg := ag.Group("/participants")
	pg.GET("", api.queryParticipants)
	pg.POST("", api.createParticipant)
	pg.POST("/import", api.importParticipants)
	pg.GET("/links", api.exportLinks)
	pg.POST("/links/send", api.sendLinks)

	xg := ag.Group("/papers")
	xg.GET("", api.queryPapers)
	xg.PUT("", api.upsertPaper)
	xg.POST("/activate", api.activatePapers)

	registerGraderAPI(ag, opts.GraderSvc)
}

func (api *adminApi) queryParticipants(ctx echo.Context) error {
	participants, err := api.participantSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying participants")
	}
	return ctx.JSON(http.StatusOK, participants)
}

func (api *adminApi) createParticipant(ctx echo.Context) error {
	var data participant.NewParticipant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParticipant")
	}
	p, err := api.participantSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating participant")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// importParticipants accepts a CSV body, a JSON list, or a multipart "file".
func (api *adminApi) importParticipants(ctx echo.Context) error {
	var (
		nps []participant.NewParticipant
		err error
	)
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		if err = ctx.Bind(&nps); err != nil {
			return errors.Wrap(err, "binding to []NewParticipant")
		}
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		fh, err := ctx.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening file")
		}
		defer func() { _ = f.Close() }()
		if nps, err = readCSV(f); err != nil {
			return err
		}
	default:
		if nps, err = readCSV(ctx.Request().Body); err != nil {
			return err
		}
	}

	participants, err := api.participantSvc.Import(ctx.Request().Context(), nps)
	if err != nil {
		return errors.Wrap(err, "importing participants")
	}
	return ctx.JSON(http.StatusCreated, participants)
}

func readCSV(r io.Reader) ([]participant.NewParticipant, error) {
	nps, err := participant.ReadCSV(r)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nps, nil
}

// exportLinks renders JSON, or CSV with ?format=csv.
func (api *adminApi) exportLinks(ctx echo.Context) error {
	links, err := api.participantSvc.ExportAccessLinks(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "exporting access links")
	}
	if ctx.QueryParam("format") != "csv" {
		return ctx.JSON(http.StatusOK, links)
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="access_links.csv"`)
	resp.WriteHeader(http.StatusOK)
	return participant.WriteLinksCSV(resp, links)
}

func (api *adminApi) sendLinks(ctx echo.Context) error {
	res, err := api.participantSvc.SendAccessLinks(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "sending access links")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) queryPapers(ctx echo.Context) error {
	papers, err := api.examSvc.QueryPapers(ctx.Request().Context(), exam.PaperFilter{TestName: ctx.QueryParam("track")})
	if err != nil {
		return errors.Wrap(err, "querying papers")
	}
	return ctx.JSON(http.StatusOK, papers)
}

func (api *adminApi) upsertPaper(ctx echo.Context) error {
	var data exam.NewExamPaper
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExamPaper")
	}
	paper, err := api.examSvc.UpsertPaper(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting paper")
	}
	return ctx.JSON(http.StatusOK, paper)
}

func (api *adminApi) activatePapers(ctx echo.Context) error {
	var data exam.ActivatePapers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivatePapers")
	}
	n, err := api.examSvc.SetActive(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "activating papers")
	}
	return ctx.JSON(http.StatusOK, UpdatedResponse{Updated: n})
}
