package searchapi

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/vinocellar/vinocellar/internal/config"
)

// Module wires the search API client for fx graphs.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.SearchAPIURL, p.Logger)
}
