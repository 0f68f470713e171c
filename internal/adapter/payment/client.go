package payment

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

	"github.com/google/uuid"
)

// Gateway exposes the two card operations the fulfillment pipeline needs: an
// uncaptured authorization when the user accepts an offer, and the capture
// once the order ships.
type Gateway interface {
	Authorize(ctx context.Context, offerID, amountCents int64, customerID string) (string, error)
	Capture(ctx context.Context, chargeID string) error
}

// HTTPGateway implements Gateway against a charges HTTP API.
type HTTPGateway struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type chargeRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer"`
	Capture  bool   `json:"capture"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewHTTPGateway creates the payment gateway client.
func NewHTTPGateway(baseURL, apiKey string, logger *slog.Logger) (*HTTPGateway, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("payment url must be absolute")
	}
	return &HTTPGateway{
		baseURL: parsed,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Authorize places an uncaptured charge against the customer and returns its id.
func (g *HTTPGateway) Authorize(ctx context.Context, offerID, amountCents int64, customerID string) (string, error) {
	payload := chargeRequest{
		Amount:   amountCents,
		Currency: "usd",
		Customer: customerID,
		Capture:  false,
	}

	var charge chargeResponse
	if err := g.post(ctx, "/v1/charges", idempotencyKey("authorize", offerID), payload, &charge); err != nil {
		return "", fmt.Errorf("authorize payment: %w", err)
	}

	g.logger.Info("payment authorized",
		slog.String("charge_id", charge.ID),
		slog.Int64("amount_cents", amountCents),
	)
	return charge.ID, nil
}

// Capture settles a previously authorized charge.
func (g *HTTPGateway) Capture(ctx context.Context, chargeID string) error {
	var charge chargeResponse
	if err := g.post(ctx, path.Join("/v1/charges", chargeID, "capture"), idempotencyKey("capture", chargeID), struct{}{}, &charge); err != nil {
		return fmt.Errorf("capture payment: %w", err)
	}

	g.logger.Info("payment captured", slog.String("charge_id", chargeID), slog.String("status", charge.Status))
	return nil
}

// idempotencyKey is stable for one operation on one target, so an
// at-least-once redelivery reuses the key instead of opening a second charge.
func idempotencyKey(operation string, target any) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "vinocellar:%s:%v", operation, target)).String()
}

func (g *HTTPGateway) post(ctx context.Context, endpointPath, key string, payload any, out any) error {
	endpoint := *g.baseURL
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
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	// Retried deliveries must not double-charge.
	req.Header.Set("Idempotency-Key", key)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("payment api: %s", apiErr.Error.Message)
		}
		g.logger.Error("payment request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(raw)))
		return fmt.Errorf("payment api: %s", resp.Status)
	}

	return json.Unmarshal(raw, out)
}
