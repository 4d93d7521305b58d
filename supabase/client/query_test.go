package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, APIKey: "anon-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestQueryBuilder_SelectEncoding(t *testing.T) {
	var got *http.Request
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`[]`))
	})

	resp, err := c.From("orders").
		Select("id,status,updated_at").
		Eq("customer_email", "ana@example.com").
		Neq("status", "cancelled").
		Order("updated_at", false).
		Limit(10).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("response: %v", err)
	}

	if got.Method != http.MethodGet {
		t.Fatalf("method = %s, want GET", got.Method)
	}
	if got.URL.Path != "/rest/v1/orders" {
		t.Fatalf("path = %s", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("select") != "id,status,updated_at" {
		t.Fatalf("select = %q", q.Get("select"))
	}
	if q.Get("customer_email") != "eq.ana@example.com" {
		t.Fatalf("filter = %q", q.Get("customer_email"))
	}
	if q.Get("status") != "neq.cancelled" {
		t.Fatalf("filter = %q", q.Get("status"))
	}
	if q.Get("order") != "updated_at.desc" {
		t.Fatalf("order = %q", q.Get("order"))
	}
	if q.Get("limit") != "10" {
		t.Fatalf("limit = %q", q.Get("limit"))
	}
	if got.Header.Get("apikey") != "anon-key" {
		t.Fatalf("apikey header missing")
	}
	if got.Header.Get("Authorization") != "Bearer anon-key" {
		t.Fatalf("authorization = %q", got.Header.Get("Authorization"))
	}
}

func TestQueryBuilder_SingleSetsAcceptHeader(t *testing.T) {
	var accept string
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	})

	if _, err := c.From("orders").Select("*").Eq("id", "o1").Single().Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if accept != "application/vnd.pgrst.object+json" {
		t.Fatalf("accept = %q", accept)
	}
}

func TestQueryBuilder_Insert(t *testing.T) {
	var got *http.Request
	var body []byte
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"code":"WELCOME10"}]`))
	})

	resp, err := c.From("coupons").Insert(context.Background(), map[string]any{"code": "WELCOME10"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("response: %v", err)
	}
	if got.Method != http.MethodPost {
		t.Fatalf("method = %s, want POST", got.Method)
	}
	if got.Header.Get("Prefer") != "return=representation" {
		t.Fatalf("prefer = %q", got.Header.Get("Prefer"))
	}
	if string(body) != `{"code":"WELCOME10"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestQueryBuilder_UpdateAppliesFilters(t *testing.T) {
	var got *http.Request
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`[]`))
	})

	if _, err := c.From("orders").Eq("id", "o1").Update(context.Background(), map[string]any{"status": "ready"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Method != http.MethodPatch {
		t.Fatalf("method = %s, want PATCH", got.Method)
	}
	if got.URL.Query().Get("id") != "eq.o1" {
		t.Fatalf("filter = %q", got.URL.Query().Get("id"))
	}
}

func TestResponse_ErrMapsBackendErrors(t *testing.T) {
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"PGRST116","message":"no rows returned"}`))
	})

	resp, err := c.From("orders").Eq("id", "missing").Single().Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	apiErr, ok := resp.Err().(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", resp.Err())
	}
	if apiErr.Code != "PGRST116" || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestWithToken_ReplacesBearer(t *testing.T) {
	var auth, apikey string
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		apikey = r.Header.Get("apikey")
		w.Write([]byte(`[]`))
	})

	user := c.WithToken("user-jwt")
	if _, err := user.From("orders").Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if auth != "Bearer user-jwt" {
		t.Fatalf("authorization = %q", auth)
	}
	if apikey != "anon-key" {
		t.Fatalf("apikey = %q", apikey)
	}
}
