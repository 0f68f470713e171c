package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Sender delivers plain and templated messages to an email address. Callers
// decide whether a delivery failure is fatal: expert notifications propagate,
// user-facing confirmations are best-effort.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
	SendTemplate(ctx context.Context, to, template string, data map[string]any) error
}

// HTTPSender implements Sender against a transactional mail HTTP API.
type HTTPSender struct {
	baseURL    *url.URL
	sender     string
	httpClient *http.Client
	logger     *slog.Logger
}

type plainMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type templateMessage struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// NewHTTPSender creates the mail client.
func NewHTTPSender(baseURL, sender string, logger *slog.Logger) (*HTTPSender, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse mail url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("mail url must be absolute")
	}
	return &HTTPSender{
		baseURL: parsed,
		sender:  sender,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Send delivers a plain-text message.
func (s *HTTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := plainMessage{From: s.sender, To: to, Subject: subject, Body: body}
	if err := s.post(ctx, "/v1/messages", msg); err != nil {
		s.logger.Error("error when sending email",
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// SendTemplate delivers a templated message.
func (s *HTTPSender) SendTemplate(ctx context.Context, to, template string, data map[string]any) error {
	msg := templateMessage{From: s.sender, To: to, Template: template, Data: data}
	if err := s.post(ctx, "/v1/messages/template", msg); err != nil {
		s.logger.Error("error when sending templated email",
			slog.String("to", to),
			slog.String("template", template),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (s *HTTPSender) post(ctx context.Context, endpointPath string, payload any) error {
	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, endpointPath)

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail api: %s: %s", resp.Status, string(raw))
	}
	return nil
}
