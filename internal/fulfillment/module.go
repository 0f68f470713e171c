package fulfillment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/vinocellar/vinocellar/internal/adapter/mailer"
	"github.com/vinocellar/vinocellar/internal/adapter/payment"
	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	"github.com/vinocellar/vinocellar/internal/config"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
)

// Module wires the fulfillment orchestrator for fx graphs.
var Module = fx.Provide(newOrchestrator)

type orchestratorParams struct {
	fx.In

	Store    repository.Factory
	Search   searchapi.Client
	Payments payment.Gateway
	Mail     mailer.Sender
	Config   *config.Config
	Logger   *slog.Logger
}

func newOrchestrator(p orchestratorParams) *Orchestrator {
	policy := Policy{
		SkipPayment: p.Config.SkipPayment,
		AdminURL:    p.Config.AdminURL,
		DeeplinkURL: p.Config.DeeplinkURL,
	}
	return NewOrchestrator(
		p.Store,
		p.Search,
		p.Payments,
		p.Mail,
		policy,
		p.Config.OrderTimeout(),
		p.Config.WorkerPoolSize,
		p.Logger,
	)
}
