package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
)

// Request describes one catalog search for an order.
type Request struct {
	BottleQty     int
	WineTypes     []string
	ThemeIDs      []int64
	SourcesBudget map[int64]int
	SentWineIDs   []int64
}

// Client exposes operations to query the catalog/search service.
type Client interface {
	Search(ctx context.Context, req Request) ([]model.Product, error)
}

// HTTPClient implements Client via the search HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates HTTP search client with default timeout.
func NewHTTPClient(baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("search url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Search queries the catalog for ranked candidate products. A 5xx response is
// a fatal search failure; any other non-200 response carries a user-facing
// payload error and surfaces as a domain failure.
func (c *HTTPClient) Search(ctx context.Context, searchReq Request) ([]model.Product, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/api/search")

	wineTypes, err := json.Marshal(searchReq.WineTypes)
	if err != nil {
		return nil, err
	}
	themes, err := json.Marshal(searchReq.ThemeIDs)
	if err != nil {
		return nil, err
	}
	budgets, err := json.Marshal(stringKeys(searchReq.SourcesBudget))
	if err != nil {
		return nil, err
	}
	sentWines, err := json.Marshal(searchReq.SentWineIDs)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("number_wines", strconv.Itoa(searchReq.BottleQty))
	params.Set("wine_types", string(wineTypes))
	params.Set("themes", string(themes))
	params.Set("sources_budget", string(budgets))
	params.Set("sent_wines", string(sentWines))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info("calling search api", slog.String("url", endpoint.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var products []model.Product
		if err := json.Unmarshal(body, &products); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return products, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		c.logger.Error("search request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("search error: %s", resp.Status)
	default:
		return nil, domainErrors.NewDomainError(string(body))
	}
}

// stringKeys converts the source budget map to the string-keyed form the
// search API expects.
func stringKeys(budgets map[int64]int) map[string]int {
	out := make(map[string]int, len(budgets))
	for id, budget := range budgets {
		out[strconv.FormatInt(id, 10)] = budget
	}
	return out
}
