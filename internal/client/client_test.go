package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/org/opsconsole/pkg/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/prod/console/api"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoginSendsCredentialsWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prod/console/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("login must not carry a token, got %q", h)
		}
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req.UserID != "alice" || req.Password != "pw" {
			t.Errorf("unexpected body %+v", req)
		}
		json.NewEncoder(w).Encode(models.LoginResponse{ //nolint:errcheck
			Token: "tok",
			User:  &models.User{UserID: "alice", Role: models.RoleUser},
		})
	})

	resp, err := c.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "tok" || resp.User.UserID != "alice" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestBearerTokenIsBoundExplicitly(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{"userId":"bob"}`)) //nolint:errcheck
	})

	ctx := context.Background()
	if _, err := c.Me(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.WithToken("abc").Me(ctx); err != nil {
		t.Fatal(err)
	}
	if seen[0] != "" || seen[1] != "Bearer abc" {
		t.Errorf("unexpected authorization headers %q", seen)
	}
	if c.Token() != "" {
		t.Error("WithToken must not mutate the original client")
	}
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid credentials"}`)) //nolint:errcheck
	})

	_, err := c.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid credentials" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if !IsAuthError(err) || !IsUnauthorized(err) {
		t.Error("401 should be an auth error")
	}
	if got := Message(err, "fallback"); got != "Invalid credentials" {
		t.Errorf("expected server message, got %q", got)
	}
}

func TestAPIErrorFallbacks(t *testing.T) {
	bodies := map[string]string{
		`{"message":"from proxy"}`:                  "from proxy",
		`{"detail":[{"loc":["body"],"msg":"bad"}]}`: "",
		`<html>bad gateway</html>`:                  "",
	}
	for body, want := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(body)) //nolint:errcheck
		})
		_, err := c.Apps(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError for %q", body)
		}
		if apiErr.Message != want {
			t.Errorf("body %q: expected message %q got %q", body, want, apiErr.Message)
		}
		if want == "" && Message(err, "fallback") != "fallback" {
			t.Errorf("body %q: expected fallback message", body)
		}
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base + "/api"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Apps(context.Background())
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %T %v", err, err)
	}
	if StatusOf(err) != 0 {
		t.Error("transport errors carry no status")
	}
	if got := Message(err, "fallback"); got != MsgUnreachable {
		t.Errorf("expected %q, got %q", MsgUnreachable, got)
	}
}

type handshakeError struct{ status int }

func (e handshakeError) Error() string { return "handshake failed" }
func (e handshakeError) HTTPStatus() int { return e.status }

func TestStatusOfOtherTransports(t *testing.T) {
	err := fmt.Errorf("dial: %w", handshakeError{status: http.StatusUnauthorized})
	if !IsUnauthorized(err) {
		t.Error("expected a wrapped 401 handshake to count as unauthorized")
	}
	if StatusOf(handshakeError{status: http.StatusForbidden}) != http.StatusForbidden {
		t.Error("expected 403")
	}
	if IsUnauthorized(errors.New("plain")) {
		t.Error("plain errors carry no status")
	}
}

func TestDeploymentPathsAreEscaped(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody models.ScaleRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck
		w.Write([]byte(`{"success":true,"replicas":3}`)) //nolint:errcheck
	})

	ref := models.DeploymentRef{Context: "kind-dev", Namespace: "web", Name: "api"}
	resp, err := c.ScaleDeployment(context.Background(), ref, 3)
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/prod/console/api/k8s/clusters/kind-dev/namespaces/web/deployments/api/scale" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotBody.Replicas != 3 || !resp.Success {
		t.Errorf("unexpected body %+v / response %+v", gotBody, resp)
	}
}

func TestAuditFilterQuery(t *testing.T) {
	var q url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Write([]byte(`{"items":[{"id":1,"action":"rollback"}],"total":1,"page":2,"pageSize":50,"totalPages":1}`)) //nolint:errcheck
	})

	page, err := c.AuditLogs(context.Background(), AuditFilter{Page: 2, PageSize: 50, Menu: "apps"})
	if err != nil {
		t.Fatal(err)
	}
	if q.Get("page") != "2" || q.Get("pageSize") != "50" || q.Get("menu") != "apps" {
		t.Errorf("unexpected query %v", q)
	}
	if q.Has("userId") || q.Has("startDate") {
		t.Errorf("zero filters must be omitted: %v", q)
	}
	if len(page.Items) != 1 || page.Items[0].Action != "rollback" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestResolveBase(t *testing.T) {
	cases := map[string]string{
		"https://ops.example.com/prod/console/apps": "https://ops.example.com/prod/console/api",
		"https://ops.example.com/prod/console":      "https://ops.example.com/prod/console/api",
		"http://localhost:5173/apps":                "http://localhost:5173/api",
		"http://localhost:5173/":                    "http://localhost:5173/api",
	}
	for page, want := range cases {
		got, err := ResolveBase(page)
		if err != nil {
			t.Errorf("%s: %v", page, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %s got %s", page, want, got)
		}
	}
	if _, err := ResolveBase("/relative/path"); err == nil {
		t.Error("relative page url should fail")
	}
}

func TestWebSocketURL(t *testing.T) {
	got, err := WebSocketURL("https://ops.example.com/api", "/ws/ssh", url.Values{"serverId": {"7"}, "token": {"a b"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "wss://ops.example.com/api/ws/ssh?serverId=7&token=a+b" {
		t.Errorf("unexpected url %s", got)
	}
	got, _ = WebSocketURL("http://127.0.0.1:8000/api/", "/k8s/ws/exec", url.Values{"pod": {"p"}})
	if got != "ws://127.0.0.1:8000/api/k8s/ws/exec?pod=p" {
		t.Errorf("unexpected url %s", got)
	}
}
