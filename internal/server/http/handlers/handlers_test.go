package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/state"
	"github.com/vinocellar/vinocellar/internal/server/http/dto"
	"github.com/vinocellar/vinocellar/internal/server/http/middleware"
	testhelpers "github.com/vinocellar/vinocellar/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(t *testing.T, method, routePath, requestPath string, handler gin.HandlerFunc, setup func(*gin.Context), body []byte) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, routePath, func(c *gin.Context) {
		if setup != nil {
			setup(c)
		}
		handler(c)
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, requestPath, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func asUser(id int64) func(*gin.Context) {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDContextKey, id)
	}
}

func TestCurrentUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentUserID(c); got != 0 {
		t.Fatalf("expected 0 when not set, got %d", got)
	}

	c.Set(middleware.UserIDContextKey, int64(42))
	if got := CurrentUserID(c); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestAuthHandlerRegister(t *testing.T) {
	body, _ := json.Marshal(dto.AuthRequest{Email: "user@example.com", Password: "pass"})
	handler := NewAuthHandler(testhelpers.AuthFacadeStub{RegisterFn: func(ctx context.Context, email, password string) (string, error) {
		if email != "user@example.com" || password != "pass" {
			t.Fatalf("unexpected credentials passed to facade: %q %q", email, password)
		}
		return "session-token", nil
	}})
	resp := performRequest(t, http.MethodPost, "/register", "/register", handler.Register, nil, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if resp.Header().Get("Authorization") != "Bearer session-token" {
		t.Fatalf("unexpected authorization header %q", resp.Header().Get("Authorization"))
	}

	result := resp.Result()
	t.Cleanup(func() { _ = result.Body.Close() })
	found := false
	for _, cookie := range result.Cookies() {
		if cookie.Name == "vinocellar_token" {
			if cookie.Value != "session-token" {
				t.Fatalf("unexpected token stored in cookie: %q", cookie.Value)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected auth cookie named vinocellar_token")
	}
}

func TestAuthHandlerRegisterFailures(t *testing.T) {
	tests := []struct {
		name   string
		facade testhelpers.AuthFacadeStub
		body   []byte
		status int
	}{
		{name: "bad json", body: []byte("not json"), status: http.StatusBadRequest},
		{name: "invalid credentials", body: []byte(`{"email":"","password":""}`), facade: testhelpers.AuthFacadeStub{RegisterFn: func(context.Context, string, string) (string, error) {
			return "", domainErrors.ErrInvalidCredentials
		}}, status: http.StatusBadRequest},
		{name: "already exists", body: []byte(`{"email":"a@b.c","password":"b"}`), facade: testhelpers.AuthFacadeStub{RegisterFn: func(context.Context, string, string) (string, error) {
			return "", domainErrors.ErrAlreadyExists
		}}, status: http.StatusConflict},
		{name: "internal", body: []byte(`{"email":"a@b.c","password":"b"}`), facade: testhelpers.AuthFacadeStub{RegisterFn: func(context.Context, string, string) (string, error) {
			return "", errors.New("boom")
		}}, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performRequest(t, http.MethodPost, "/register", "/register", NewAuthHandler(tt.facade).Register, nil, tt.body)
			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	body, _ := json.Marshal(dto.AuthRequest{Email: "user@example.com", Password: "pass"})
	resp := performRequest(t, http.MethodPost, "/login", "/login", NewAuthHandler(testhelpers.AuthFacadeStub{}).Login, nil, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	failing := testhelpers.AuthFacadeStub{AuthenticateFn: func(context.Context, string, string) (string, error) {
		return "", domainErrors.ErrInvalidCredentials
	}}
	resp = performRequest(t, http.MethodPost, "/login", "/login", NewAuthHandler(failing).Login, nil, body)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestOrderHandlerCreate(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodPost, "/orders", "/orders", handler.Create, asUser(1), nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	var created dto.OrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.State != string(state.Started) || created.Number == "" {
		t.Fatalf("unexpected response: %+v", created)
	}

	noSub := NewOrderHandler(testhelpers.OrderFacadeStub{CreateFn: func(context.Context, int64) (*model.Order, error) {
		return nil, domainErrors.ErrNotFound
	}})
	resp = performRequest(t, http.MethodPost, "/orders", "/orders", noSub.Create, asUser(1), nil)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.Code)
	}
}

func TestOrderHandlerList(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodGet, "/orders", "/orders", handler.List, asUser(1), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var grouped dto.OrderListResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// The stub returns one started order, which belongs to no user-facing family.
	if len(grouped.Other) != 1 || len(grouped.Proposed) != 0 || len(grouped.Upcoming) != 0 || len(grouped.History) != 0 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}

	empty := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(context.Context, int64) ([]model.Order, error) {
		return nil, nil
	}})
	resp = performRequest(t, http.MethodGet, "/orders", "/orders", empty.List, asUser(1), nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
}

func TestOrderHandlerGet(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/1", handler.Get, asUser(1), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/abc", handler.Get, asUser(1), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad id, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/-1", handler.Get, asUser(1), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for negative id, got %d", resp.Code)
	}

	missing := NewOrderHandler(testhelpers.OrderFacadeStub{OrderFn: func(context.Context, int64, int64) (*model.Order, error) {
		return nil, domainErrors.ErrNotFound
	}})
	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/1", missing.Get, asUser(1), nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestOrderHandlerHistory(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodGet, "/orders/:id/history", "/orders/1/history", handler.History, asUser(1), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var entries []dto.HistoryEntryResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].State != string(state.Started) {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// Foreign orders must 404 before the ledger is touched.
	foreign := NewOrderHandler(testhelpers.OrderFacadeStub{
		OrderFn: func(context.Context, int64, int64) (*model.Order, error) {
			return nil, domainErrors.ErrNotFound
		},
		HistoryFn: func(context.Context, int64) ([]model.OrderHistory, error) {
			t.Fatal("history must not be fetched for foreign orders")
			return nil, nil
		},
	})
	resp = performRequest(t, http.MethodGet, "/orders/:id/history", "/orders/1/history", foreign.History, asUser(2), nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestOrderHandlerAccept(t *testing.T) {
	body, _ := json.Marshal(dto.AcceptOfferRequest{OfferID: 3})

	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodPost, "/orders/:id/accept", "/orders/1/accept", handler.Accept, asUser(1), body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result dto.RunActionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected completed run")
	}

	resp = performRequest(t, http.MethodPost, "/orders/:id/accept", "/orders/1/accept", handler.Accept, asUser(1), []byte(`{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing offer id, got %d", resp.Code)
	}

	slow := NewOrderHandler(testhelpers.OrderFacadeStub{AcceptFn: func(context.Context, int64, int64, int64) (bool, error) {
		return false, nil
	}})
	resp = performRequest(t, http.MethodPost, "/orders/:id/accept", "/orders/1/accept", slow.Accept, asUser(1), body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 for detached run, got %d", resp.Code)
	}

	invalid := NewOrderHandler(testhelpers.OrderFacadeStub{AcceptFn: func(context.Context, int64, int64, int64) (bool, error) {
		return false, domainErrors.ErrInvalidTransition
	}})
	resp = performRequest(t, http.MethodPost, "/orders/:id/accept", "/orders/1/accept", invalid.Accept, asUser(1), body)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestOperatorHandlerGet(t *testing.T) {
	stub := &testhelpers.OperatorFacadeStub{}
	handler := NewOperatorHandler(stub)
	resp := performRequest(t, http.MethodGet, "/orders/:id", "/orders/1", handler.Get, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result dto.OperatorOrderResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// The stub order sits in proposed_to_wine_expert, which offers two
	// manual actions.
	if len(result.ManualActions) != 2 {
		t.Fatalf("unexpected manual actions: %v", result.ManualActions)
	}

	missing := &testhelpers.OperatorFacadeStub{OrderFn: func(context.Context, int64) (*model.Order, error) {
		return nil, domainErrors.ErrNotFound
	}}
	resp = performRequest(t, http.MethodGet, "/orders/:id", "/orders/1", NewOperatorHandler(missing).Get, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestOperatorHandlerRunAction(t *testing.T) {
	body, _ := json.Marshal(dto.RunActionRequest{Action: "approve"})

	stub := &testhelpers.OperatorFacadeStub{}
	handler := NewOperatorHandler(stub)
	resp := performRequest(t, http.MethodPost, "/orders/:id/actions", "/orders/1/actions", handler.RunAction, nil, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(stub.RunActions) != 1 || stub.RunActions[0] != state.ActionApprove {
		t.Fatalf("unexpected recorded actions: %v", stub.RunActions)
	}

	resp = performRequest(t, http.MethodPost, "/orders/:id/actions", "/orders/1/actions", handler.RunAction, nil, []byte(`{"action":"explode"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown action, got %d", resp.Code)
	}

	// A known action that is not manual for the current state is refused
	// before it reaches the orchestrator.
	resp = performRequest(t, http.MethodPost, "/orders/:id/actions", "/orders/1/actions", handler.RunAction, nil, []byte(`{"action":"notify_user"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for non-manual action, got %d", resp.Code)
	}

	detached := &testhelpers.OperatorFacadeStub{RunActionFn: func(context.Context, int64, *state.Action) (bool, error) {
		return false, nil
	}}
	resp = performRequest(t, http.MethodPost, "/orders/:id/actions", "/orders/1/actions", NewOperatorHandler(detached).RunAction, nil, body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", resp.Code)
	}

	conflicted := &testhelpers.OperatorFacadeStub{RunActionFn: func(context.Context, int64, *state.Action) (bool, error) {
		return false, domainErrors.ErrInvalidTransition
	}}
	resp = performRequest(t, http.MethodPost, "/orders/:id/actions", "/orders/1/actions", NewOperatorHandler(conflicted).RunAction, nil, body)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestOrderHandlerListGroupsByFamily(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(_ context.Context, userID int64) ([]model.Order, error) {
		return []model.Order{
			{ID: 1, Number: "0000001", UserID: userID, State: state.ProposedToUser},
			{ID: 2, Number: "0000002", UserID: userID, State: state.OrderPlaced},
			{ID: 3, Number: "0000003", UserID: userID, State: state.Completed},
			{ID: 4, Number: "0000004", UserID: userID, State: state.SearchException},
		}, nil
	}})
	resp := performRequest(t, http.MethodGet, "/orders", "/orders", handler.List, asUser(1), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var grouped dto.OrderListResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(grouped.Proposed) != 1 || grouped.Proposed[0].ID != 1 {
		t.Fatalf("unexpected proposed group: %+v", grouped.Proposed)
	}
	if len(grouped.Upcoming) != 1 || grouped.Upcoming[0].ID != 2 {
		t.Fatalf("unexpected upcoming group: %+v", grouped.Upcoming)
	}
	if len(grouped.History) != 1 || grouped.History[0].ID != 3 {
		t.Fatalf("unexpected history group: %+v", grouped.History)
	}
	if len(grouped.Other) != 1 || grouped.Other[0].ID != 4 {
		t.Fatalf("unexpected other group: %+v", grouped.Other)
	}
}

func TestOperatorHandlerTriggers(t *testing.T) {
	stub := &testhelpers.OperatorFacadeStub{}
	handler := NewOperatorHandler(stub)

	resp := performRequest(t, http.MethodPost, "/triggers/dispatch", "/triggers/dispatch", handler.RunDispatch, nil, nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", resp.Code)
	}
	if stub.Dispatches != 1 {
		t.Fatalf("expected one dispatch trigger, got %d", stub.Dispatches)
	}

	resp = performRequest(t, http.MethodPost, "/triggers/sweep", "/triggers/sweep", handler.RunSweep, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if stub.Sweeps != 1 {
		t.Fatalf("expected one sweep trigger, got %d", stub.Sweeps)
	}

	failing := &testhelpers.OperatorFacadeStub{
		DispatchFn: func(context.Context) error { return errors.New("pool closed") },
		SweepFn:    func(context.Context) error { return errors.New("mail down") },
	}
	resp = performRequest(t, http.MethodPost, "/triggers/dispatch", "/triggers/dispatch", NewOperatorHandler(failing).RunDispatch, nil, nil)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodPost, "/triggers/sweep", "/triggers/sweep", NewOperatorHandler(failing).RunSweep, nil, nil)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}

func TestHealth(t *testing.T) {
	resp := performRequest(t, http.MethodGet, "/health", "/health", Health, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}
