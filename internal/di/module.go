package di

import (
	"go.uber.org/fx"

	"github.com/vinocellar/vinocellar/internal/adapter/mailer"
	"github.com/vinocellar/vinocellar/internal/adapter/payment"
	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	"github.com/vinocellar/vinocellar/internal/app"
	"github.com/vinocellar/vinocellar/internal/config"
	"github.com/vinocellar/vinocellar/internal/fulfillment"
	"github.com/vinocellar/vinocellar/internal/logger"
	"github.com/vinocellar/vinocellar/internal/pkg/auth"
	"github.com/vinocellar/vinocellar/internal/server/http/handlers"
	"github.com/vinocellar/vinocellar/internal/server/http/router"
	"github.com/vinocellar/vinocellar/internal/storage/postgres"
	"github.com/vinocellar/vinocellar/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		searchapi.Module,
		payment.Module,
		mailer.Module,
		fulfillment.Module,
		usecase.Module,
		fx.Provide(func(o *fulfillment.Orchestrator) app.ActionRunner { return o }),
		fx.Provide(func(f *app.FulfillmentFacade) handlers.FulfillmentFacade { return f }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
