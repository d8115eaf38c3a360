package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core/user"
)

type officerApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerOfficerAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.Service, validate *validator.Validate) {
	api := officerApi{svc: svc, validate: validate}

	og := g.Group("/officers", jwt)
	og.POST("", api.create, adminMiddleware())
	og.GET("", api.query, adminMiddleware())

	// detail endpoints
	og.GET("/:id", api.retrieve, selfOrAdminMiddleware())
	og.PUT("/:id/houses", api.assignHouses, adminMiddleware())
	og.PUT("/:id/status", api.overrideStatus, adminMiddleware())
}

func (api *officerApi) create(ctx echo.Context) error {
	var data user.NewOfficer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOfficer")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	ofc, err := api.svc.RegisterOfficer(rctx, data)
	if err != nil {
		return errors.Wrap(err, "registering officer")
	}
	return ctx.JSON(http.StatusCreated, ofc)
}

func (api *officerApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Officer{})
	}
	filter.Clean()

	officers, err := api.svc.QueryOfficers(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying officers")
	}
	if officers == nil {
		officers = []user.Officer{}
	}
	return ctx.JSON(http.StatusOK, officers)
}

func (api *officerApi) retrieve(ctx echo.Context) error {
	ofc, err := api.svc.GetOfficer(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding officer by ID")
	}
	return ctx.JSON(http.StatusOK, ofc)
}

func (api *officerApi) assignHouses(ctx echo.Context) error {
	var data user.AssignHouses
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignHouses")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ofc, err := api.svc.AssignHouses(ctx.Request().Context(), ctx.Param("id"), data.Houses)
	if err != nil {
		return errors.Wrap(err, "assigning houses")
	}
	return ctx.JSON(http.StatusOK, ofc)
}

func (api *officerApi) overrideStatus(ctx echo.Context) error {
	var data user.StatusOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusOverride")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ofc, err := api.svc.OverrideOfficerStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "overriding officer status")
	}
	return ctx.JSON(http.StatusOK, ofc)
}
