package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/user"
)

type residentApi struct {
	svc      user.Service
	engine   *compliance.Engine
	validate *validator.Validate
}

func registerResidentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc user.Service,
	engine *compliance.Engine,
	validate *validator.Validate,
) {
	api := residentApi{svc: svc, engine: engine, validate: validate}

	rg := g.Group("/residents", jwt)
	rg.POST("", api.create, adminMiddleware())
	rg.GET("", api.query, adminMiddleware())

	// detail endpoints
	rg.GET("/:id", api.retrieve, selfOrAdminMiddleware())
	rg.GET("/:id/payment-status", api.paymentStatus, selfOrAdminMiddleware())
	rg.POST("/:id/payments", api.pay, adminMiddleware())
}

func (api *residentApi) create(ctx echo.Context) error {
	var data user.NewResident
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResident")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	res, err := api.svc.RegisterResident(rctx, data)
	if err != nil {
		return errors.Wrap(err, "registering resident")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *residentApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Resident{})
	}
	filter.Clean()

	residents, err := api.svc.QueryResidents(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying residents")
	}
	if residents == nil {
		residents = []user.Resident{}
	}
	return ctx.JSON(http.StatusOK, residents)
}

func (api *residentApi) retrieve(ctx echo.Context) error {
	res, err := api.svc.GetResident(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resident by ID")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *residentApi) paymentStatus(ctx echo.Context) error {
	res, err := api.svc.GetResident(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resident by ID")
	}
	result, err := api.engine.PaymentStatus(res)
	if err != nil {
		return errors.Wrap(err, "checking payment status")
	}
	return ctx.JSON(http.StatusOK, PaymentStatusResponse{
		PaymentResult:       result,
		PaymentStatus:       res.PaymentStatus,
		SubscriptionEndDate: res.SubscriptionEndDate.Format(dateLayout),
	})
}

func (api *residentApi) pay(ctx echo.Context) error {
	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.engine.ApplyPayment(ctx.Request().Context(), ctx.Param("id"), data.Months)
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	PaymentRequest struct {
		Months int `json:"months" validate:"required,min=1,max=24"`
	}

	PaymentStatusResponse struct {
		compliance.PaymentResult
		PaymentStatus       user.PaymentStatus `json:"payment_status"`
		SubscriptionEndDate string             `json:"subscription_end_date"`
	}
)
