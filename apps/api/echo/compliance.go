package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/user"
	"github.com/trezcool/neighborguard/services/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type complianceApi struct {
	engine *compliance.Engine
	clock  core.Clock
}

func registerComplianceAPI(g *echo.Group, jwt echo.MiddlewareFunc, engine *compliance.Engine, clock core.Clock) {
	api := complianceApi{engine: engine, clock: clock}

	cg := g.Group("/compliance", jwt, adminMiddleware())
	cg.POST("/officers/:id/evaluate", api.evaluate)
	cg.POST("/reinstate", api.reinstate)
	cg.POST("/sweep", api.sweep)
	cg.GET("/report", api.report)
	cg.GET("/audit", api.audit)
	cg.GET("/report.xlsx", api.auditXLSX)
}

func (api *complianceApi) evaluate(ctx echo.Context) error {
	res, ofc, err := api.engine.EvaluateOfficerByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "evaluating officer")
	}
	return ctx.JSON(http.StatusOK, EvaluationResponse{Result: res, Officer: ofc})
}

func (api *complianceApi) reinstate(ctx echo.Context) error {
	officers, err := api.engine.ReinstateExpired(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reinstating officers")
	}
	return ctx.JSON(http.StatusOK, officers)
}

func (api *complianceApi) sweep(ctx echo.Context) error {
	summary, err := api.engine.PerformComplianceCheck(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "performing compliance check")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *complianceApi) report(ctx echo.Context) error {
	var period Period
	if err := period.Bind(ctx, api.clock.Now()); err != nil {
		return err
	}

	rep, err := api.engine.Report(ctx.Request().Context(), period.From, period.To)
	if err != nil {
		return errors.Wrap(err, "generating compliance report")
	}
	if rep.OfficerDetails == nil {
		rep.OfficerDetails = []compliance.OfficerRow{}
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *complianceApi) auditReport(ctx echo.Context) (compliance.AuditReport, error) {
	var period Period
	if err := period.Bind(ctx, api.clock.Now()); err != nil {
		return compliance.AuditReport{}, err
	}
	rep, err := api.engine.AuditReport(ctx.Request().Context(), period.From, period.To)
	return rep, errors.Wrap(err, "generating audit report")
}

func (api *complianceApi) audit(ctx echo.Context) error {
	rep, err := api.auditReport(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *complianceApi) auditXLSX(ctx echo.Context) error {
	rep, err := api.auditReport(ctx)
	if err != nil {
		return err
	}
	data, err := reportsvc.AuditXLSX(rep)
	if err != nil {
		return errors.Wrap(err, "exporting audit report")
	}

	filename := fmt.Sprintf("compliance-%s_%s.xlsx", rep.From.Format(dateLayout), rep.To.Format(dateLayout))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, xlsxContentType, data)
}

type EvaluationResponse struct {
	Result  compliance.Result `json:"result"`
	Officer user.Officer      `json:"officer"`
}
