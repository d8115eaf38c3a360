package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/patrol"
)

type scanApi struct {
	svc      patrol.Service
	validate *validator.Validate
	clock    core.Clock
}

func registerScanAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc patrol.Service, validate *validator.Validate, clock core.Clock) {
	api := scanApi{svc: svc, validate: validate, clock: clock}

	sg := g.Group("/scans", jwt)
	sg.POST("", api.record, officerMiddleware())
	sg.POST("/sync", api.sync, officerMiddleware())
	sg.GET("", api.query, adminMiddleware())
	sg.GET("/summary", api.summary, adminMiddleware())
}

// record stores a scan of the authenticated officer.
func (api *scanApi) record(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data patrol.NewScan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScan")
	}
	data.OfficerID = claims.Subject
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	scan, err := api.svc.RecordScan(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording scan")
	}
	return ctx.JSON(http.StatusCreated, scan)
}

// sync replays the scans an officer recorded while offline.
func (api *scanApi) sync(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SyncRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SyncRequest")
	}

	res, err := api.svc.SyncScans(ctx.Request().Context(), claims.Subject, data.Scans)
	if err != nil {
		return errors.Wrap(err, "syncing scans")
	}
	if res.Synced == nil {
		res.Synced = []patrol.Scan{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *scanApi) query(ctx echo.Context) error {
	filter, err := bindScanFilter(ctx)
	if err != nil {
		return err
	}

	scans, err := api.svc.QueryScans(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scans")
	}
	if scans == nil {
		scans = []patrol.Scan{}
	}
	return ctx.JSON(http.StatusOK, scans)
}

func (api *scanApi) summary(ctx echo.Context) error {
	day, err := queryTime(ctx, "date")
	if err != nil {
		return err
	}
	if day.IsZero() {
		day = api.clock.Now()
	}

	summary, err := api.svc.DailySummary(ctx.Request().Context(), day)
	if err != nil {
		return errors.Wrap(err, "summarizing scans")
	}
	return ctx.JSON(http.StatusOK, summary)
}

type SyncRequest struct {
	Scans []patrol.NewScan `json:"scans"`
}
