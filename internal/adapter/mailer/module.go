package mailer

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/vinocellar/vinocellar/internal/config"
)

// Module wires the mail client for fx graphs.
var Module = fx.Provide(newSender)

type senderParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newSender(p senderParams) (Sender, error) {
	return NewHTTPSender(p.Config.MailAPIURL, p.Config.EmailSender, p.Logger)
}
