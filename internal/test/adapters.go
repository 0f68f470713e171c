package test

import (
	"context"
	"sync"

	"github.com/vinocellar/vinocellar/internal/adapter/searchapi"
	"github.com/vinocellar/vinocellar/internal/domain/model"
)

// SearchClientStub returns canned catalog results.
type SearchClientStub struct {
	SearchFn func(context.Context, searchapi.Request) ([]model.Product, error)
	Products []model.Product
	Err      error

	mu       sync.Mutex
	Requests []searchapi.Request
}

// Search records the request and returns configured products.
func (s *SearchClientStub) Search(ctx context.Context, req searchapi.Request) ([]model.Product, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	s.mu.Unlock()
	if s.SearchFn != nil {
		return s.SearchFn(ctx, req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Products, nil
}

// GatewayStub simulates the payment gateway.
type GatewayStub struct {
	AuthorizeFn func(context.Context, int64, int64, string) (string, error)
	CaptureFn   func(context.Context, string) error
	ChargeID    string

	mu               sync.Mutex
	Authorized       []int64
	AuthorizedOffers []int64
	Captured         []string
}

// Authorize records the amount and returns the configured charge id.
func (g *GatewayStub) Authorize(ctx context.Context, offerID, amountCents int64, customerID string) (string, error) {
	if g.AuthorizeFn != nil {
		return g.AuthorizeFn(ctx, offerID, amountCents, customerID)
	}
	g.mu.Lock()
	g.Authorized = append(g.Authorized, amountCents)
	g.AuthorizedOffers = append(g.AuthorizedOffers, offerID)
	g.mu.Unlock()
	if g.ChargeID != "" {
		return g.ChargeID, nil
	}
	return "ch_stub", nil
}

// Capture records the charge id.
func (g *GatewayStub) Capture(ctx context.Context, chargeID string) error {
	if g.CaptureFn != nil {
		return g.CaptureFn(ctx, chargeID)
	}
	g.mu.Lock()
	g.Captured = append(g.Captured, chargeID)
	g.mu.Unlock()
	return nil
}

// SentMail captures one Send or SendTemplate invocation.
type SentMail struct {
	To       string
	Subject  string
	Body     string
	Template string
	Data     map[string]any
}

// SenderStub records outgoing mail.
type SenderStub struct {
	SendFn         func(context.Context, string, string, string) error
	SendTemplateFn func(context.Context, string, string, map[string]any) error

	mu   sync.Mutex
	Sent []SentMail
}

// Send records a plain message.
func (s *SenderStub) Send(ctx context.Context, to, subject, body string) error {
	if s.SendFn != nil {
		return s.SendFn(ctx, to, subject, body)
	}
	s.mu.Lock()
	s.Sent = append(s.Sent, SentMail{To: to, Subject: subject, Body: body})
	s.mu.Unlock()
	return nil
}

// SendTemplate records a templated message.
func (s *SenderStub) SendTemplate(ctx context.Context, to, template string, data map[string]any) error {
	if s.SendTemplateFn != nil {
		return s.SendTemplateFn(ctx, to, template, data)
	}
	s.mu.Lock()
	s.Sent = append(s.Sent, SentMail{To: to, Template: template, Data: data})
	s.mu.Unlock()
	return nil
}

// Mails returns a snapshot of recorded messages.
func (s *SenderStub) Mails() []SentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMail, len(s.Sent))
	copy(out, s.Sent)
	return out
}
