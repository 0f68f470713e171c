package payment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/vinocellar/vinocellar/internal/config"
)

// Module wires the payment gateway client for fx graphs.
var Module = fx.Provide(newGateway)

type gatewayParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newGateway(p gatewayParams) (Gateway, error) {
	return NewHTTPGateway(p.Config.PaymentAPIURL, p.Config.PaymentAPIKey, p.Logger)
}
