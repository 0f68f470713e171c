package searchapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewHTTPClient(t *testing.T) {
	if _, err := NewHTTPClient("://bad", testLogger()); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewHTTPClient("/relative", testLogger()); err == nil {
		t.Fatal("expected error for relative url")
	}
	if _, err := NewHTTPClient("http://search.local", testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchSuccess(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = map[string]string{
			"number_wines":   r.URL.Query().Get("number_wines"),
			"wine_types":     r.URL.Query().Get("wine_types"),
			"themes":         r.URL.Query().Get("themes"),
			"sources_budget": r.URL.Query().Get("sources_budget"),
			"sent_wines":     r.URL.Query().Get("sent_wines"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]model.Product{
			{MasterProductID: 11, SourceID: 7, Name: "Pinot", SKU: "P-11", Price: 30},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	products, err := client.Search(context.Background(), Request{
		BottleQty:     3,
		WineTypes:     []string{"red"},
		ThemeIDs:      []int64{2},
		SourcesBudget: map[int64]int{7: 80},
		SentWineIDs:   []int64{5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].MasterProductID != 11 {
		t.Fatalf("unexpected products: %+v", products)
	}

	if gotQuery["number_wines"] != "3" {
		t.Fatalf("unexpected number_wines %q", gotQuery["number_wines"])
	}
	if gotQuery["wine_types"] != `["red"]` {
		t.Fatalf("unexpected wine_types %q", gotQuery["wine_types"])
	}
	if gotQuery["sources_budget"] != `{"7":80}` {
		t.Fatalf("unexpected sources_budget %q", gotQuery["sources_budget"])
	}
	if gotQuery["sent_wines"] != `[5]` {
		t.Fatalf("unexpected sent_wines %q", gotQuery["sent_wines"])
	}
}

func TestSearchClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("Not enough wines found for your budget."))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Search(context.Background(), Request{BottleQty: 3})
	if err == nil {
		t.Fatal("expected error")
	}
	de, ok := domainErrors.AsDomainError(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Msg != "Not enough wines found for your budget." {
		t.Fatalf("unexpected message %q", de.Msg)
	}
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Search(context.Background(), Request{BottleQty: 3})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := domainErrors.AsDomainError(err); ok {
		t.Fatal("a 5xx must not surface as a domain error")
	}
	if !strings.Contains(err.Error(), "search error") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSearchDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Search(context.Background(), Request{}); err == nil {
		t.Fatal("expected decode error")
	}
}
