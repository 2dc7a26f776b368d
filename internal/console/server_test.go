package console

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/org/opsconsole/pkg/models"
)

// --- Fake backend ---

type fakeBackend struct {
	mu      sync.Mutex
	calls   map[string]int
	revoked bool
	users   map[string]*models.User // keyed by token
}

func (b *fakeBackend) hit(name string) {
	b.mu.Lock()
	b.calls[name]++
	b.mu.Unlock()
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) revokeAll() {
	b.mu.Lock()
	b.revoked = true
	b.mu.Unlock()
}

func (b *fakeBackend) userFor(token string) *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked {
		return nil
	}
	return b.users[token]
}

func fail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail}) //nolint:errcheck
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		calls: map[string]int{},
		users: map[string]*models.User{
			"tok-admin": {ID: 1, UserID: "admin", Role: models.RoleAdmin, IsActive: true, PasswordChanged: true},
			"tok-viewer": {ID: 2, UserID: "viewer", Role: models.RoleUser, IsActive: true, PasswordChanged: true,
				Permissions: []models.UserPermission{
					{Type: models.PermPageAccess, Target: "apps", Action: models.ActionRead},
					{Type: models.PermPageAccess, Target: "k8s", Action: models.ActionRead},
					{Type: models.PermAppDeploy, Target: "shop", Action: models.ActionWrite},
				}},
			"tok-fresh": {ID: 3, UserID: "fresh", Role: models.RoleUser, IsActive: true, PasswordChanged: false},
		},
	}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if b.userFor(token) == nil {
				fail(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req.UserID == "inactive" {
			fail(w, http.StatusForbidden, "inactive")
			return
		}
		token := "tok-" + req.UserID
		u := b.userFor(token)
		if u == nil || req.Password != "pw" {
			fail(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		json.NewEncoder(w).Encode(models.LoginResponse{Token: token, User: u}) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		json.NewEncoder(w).Encode(b.userFor(token)) //nolint:errcheck
	}))
	mux.HandleFunc("GET /api/apps", authed(func(w http.ResponseWriter, r *http.Request) {
		b.hit("apps")
		json.NewEncoder(w).Encode([]models.AppStatus{ //nolint:errcheck
			{AppName: "shop", Env: "prod", DeployVersion: "v2"},
			{AppName: "billing", Env: "prod", DeployVersion: "v7"},
		})
	}))
	mux.HandleFunc("POST /api/apps/rollback", authed(func(w http.ResponseWriter, r *http.Request) {
		b.hit("rollback")
		json.NewEncoder(w).Encode(models.Message{Message: "ok"}) //nolint:errcheck
	}))
	mux.HandleFunc("GET /api/k8s/clusters", authed(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ClusterList{ //nolint:errcheck
			Clusters: []models.ClusterInfo{{Name: "c1", Context: "c1", Status: "healthy"}},
			Total:    1,
		})
	}))
	mux.HandleFunc("GET /api/k8s/clusters/{ctx}/namespaces/{ns}/deployments", authed(func(w http.ResponseWriter, r *http.Request) {
		b.hit("deployments")
		json.NewEncoder(w).Encode([]models.DeploymentInfo{ //nolint:errcheck
			{Name: "api", Namespace: r.PathValue("ns"), Replicas: 2, ReadyReplicas: 2},
		})
	}))
	mux.HandleFunc("PATCH /api/k8s/clusters/{ctx}/namespaces/{ns}/deployments/{name}/scale", authed(func(w http.ResponseWriter, r *http.Request) {
		b.hit("scale")
		if r.PathValue("name") == "broken" {
			fail(w, http.StatusInternalServerError, "scale exploded")
			return
		}
		var req models.ScaleRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		json.NewEncoder(w).Encode(models.ScaleResponse{Success: true, Replicas: req.Replicas}) //nolint:errcheck
	}))
	mux.HandleFunc("POST /api/servers/", authed(func(w http.ResponseWriter, r *http.Request) {
		b.hit("create-server")
		var req models.CreateServerRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req.Hostname == "dup" {
			fail(w, http.StatusBadRequest, "hostname already registered")
			return
		}
		json.NewEncoder(w).Encode(models.Server{ID: 40 + b.count("create-server"), Hostname: req.Hostname}) //nolint:errcheck
	}))
	echo := websocket.Upgrader{}
	mux.HandleFunc("GET /api/k8s/ws/exec", authed(func(w http.ResponseWriter, r *http.Request) {
		conn, err := echo.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

// --- Console under test ---

type testConsole struct {
	t       *testing.T
	srv     *httptest.Server
	backend *fakeBackend
	http    *http.Client
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	backend, backendSrv := newFakeBackend(t)
	s, err := NewServer(Config{
		BackendURL:   backendSrv.URL + "/api",
		CookieSecret: bytes.Repeat([]byte("k"), 32),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.BuildRouter())
	t.Cleanup(func() {
		srv.Close()
		s.sched.Close()
	})

	jar, _ := cookiejar.New(nil)
	return &testConsole{
		t:       t,
		srv:     srv,
		backend: backend,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testConsole) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out) //nolint:errcheck
	return resp, out
}

func (c *testConsole) login(user string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/login", map[string]string{"userId": user, "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: expected 200, got %d: %v", user, resp.StatusCode, body)
	}
}

func (c *testConsole) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(c.srv.URL, "http") + path
}

func (c *testConsole) dialWS(path string) (*websocket.Conn, *http.Response, error) {
	u, _ := url.Parse(c.srv.URL)
	h := http.Header{}
	for _, ck := range c.http.Jar.Cookies(u) {
		h.Add("Cookie", ck.String())
	}
	return websocket.DefaultDialer.Dial(c.wsURL(path), h)
}

func errorsOf(body map[string]any) []any {
	errs, _ := body["errors"].([]any)
	return errs
}

// --- Tests ---

func TestHealth(t *testing.T) {
	c := newTestConsole(t)
	resp, body := c.do(http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestPageRedirectsToLoginWithoutSession(t *testing.T) {
	c := newTestConsole(t)
	for _, path := range []string{"/", "/apps", "/k8s", "/audit"} {
		resp, body := c.do(http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Errorf("%s: expected redirect to /login, got %q", path, loc)
		}
		if body["redirect"] != "/login" {
			t.Errorf("%s: unexpected body %v", path, body)
		}
	}
}

func TestActionWithoutSessionIsUnauthorized(t *testing.T) {
	c := newTestConsole(t)
	resp, _ := c.do(http.MethodPost, "/apps/rollback", map[string]any{"appName": "shop", "env": "prod"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if c.backend.count("rollback") != 0 {
		t.Error("backend must not be called")
	}
}

func TestLoginErrors(t *testing.T) {
	c := newTestConsole(t)
	cases := []struct {
		user, pw string
		code     int
		msg      string
	}{
		{"viewer", "wrong", http.StatusUnauthorized, "incorrect id/password"},
		{"nobody", "pw", http.StatusUnauthorized, "incorrect id/password"},
		{"inactive", "pw", http.StatusForbidden, "account is inactive"},
	}
	for _, tc := range cases {
		resp, body := c.do(http.MethodPost, "/login", map[string]string{"userId": tc.user, "password": tc.pw})
		if resp.StatusCode != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.user, tc.code, resp.StatusCode)
		}
		errs := errorsOf(body)
		if len(errs) != 1 || errs[0] != tc.msg {
			t.Errorf("%s: expected %q, got %v", tc.user, tc.msg, errs)
		}
		for _, ck := range resp.Cookies() {
			if ck.Name == sessionCookie && ck.Value != "" {
				t.Errorf("%s: failed login must not set a session", tc.user)
			}
		}
	}
}

func TestLoginRendersGuardedPages(t *testing.T) {
	c := newTestConsole(t)
	resp, body := c.do(http.MethodPost, "/login", map[string]string{"userId": "viewer", "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["redirect"] != "/" {
		t.Errorf("expected redirect to /, got %v", body["redirect"])
	}

	resp, body = c.do(http.MethodGet, "/apps", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	apps, _ := body["apps"].([]any)
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %v", body["apps"])
	}
	deploy := map[string]bool{}
	for _, a := range apps {
		m := a.(map[string]any)
		deploy[m["appName"].(string)] = m["canDeploy"].(bool)
	}
	if !deploy["shop"] || deploy["billing"] {
		t.Errorf("unexpected deploy flags: %v", deploy)
	}

	resp, body = c.do(http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("home: expected 200, got %d", resp.StatusCode)
	}
	menu, _ := body["menu"].([]any)
	if len(menu) != 3 {
		t.Errorf("expected home, apps and k8s in the menu, got %v", menu)
	}

	// Signed-in users are sent away from the login page.
	resp, _ = c.do(http.MethodGet, "/login", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Errorf("expected 303 to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestPageWithoutPermissionRedirectsHome(t *testing.T) {
	c := newTestConsole(t)
	c.login("viewer")
	for _, path := range []string{"/users", "/servers", "/audit"} {
		resp, _ := c.do(http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("%s: expected redirect home, got %q", path, loc)
		}
	}
}

func TestPasswordChangeRequired(t *testing.T) {
	c := newTestConsole(t)
	resp, body := c.do(http.MethodPost, "/login", map[string]string{"userId": "fresh", "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["redirect"] != "/change-password" {
		t.Errorf("expected redirect to /change-password, got %v", body["redirect"])
	}

	resp, _ = c.do(http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/change-password" {
		t.Errorf("expected 303 to /change-password, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body = c.do(http.MethodGet, "/change-password", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["required"] != true {
		t.Errorf("expected required=true, got %v", body["required"])
	}

	resp, body = c.do(http.MethodPost, "/change-password", map[string]string{
		"currentPassword": "pw", "newPassword": "abcd", "confirmPassword": "abce",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("mismatch: expected 422, got %d", resp.StatusCode)
	}
	if errs := errorsOf(body); len(errs) != 1 || errs[0] != "new passwords do not match" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestRollbackNeedsConfirmation(t *testing.T) {
	c := newTestConsole(t)
	c.login("viewer")
	req := map[string]any{"appName": "shop", "env": "prod", "currentVersion": "v2", "targetVersion": "v1"}

	resp, body := c.do(http.MethodPost, "/apps/rollback", req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if body["prompt"] == nil {
		t.Error("expected the confirmation prompt")
	}
	if c.backend.count("rollback") != 0 {
		t.Fatal("declined rollback must not reach the backend")
	}

	req["confirm"] = true
	resp, body = c.do(http.MethodPost, "/apps/rollback", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if c.backend.count("rollback") != 1 {
		t.Errorf("expected one rollback call, got %d", c.backend.count("rollback"))
	}
	toasts, _ := body["toasts"].([]any)
	if len(toasts) != 1 {
		t.Fatalf("expected one toast, got %v", body["toasts"])
	}
	toast := toasts[0].(map[string]any)
	if toast["level"] != "success" || toast["message"] != "shop prod changed to v1" {
		t.Errorf("unexpected toast: %v", toast)
	}
	if body["listing"] == nil {
		t.Error("expected the refreshed app listing")
	}
}

func TestRollbackWithoutDeployPermission(t *testing.T) {
	c := newTestConsole(t)
	c.login("viewer")
	resp, _ := c.do(http.MethodPost, "/apps/rollback", map[string]any{
		"appName": "billing", "env": "prod", "currentVersion": "v7", "targetVersion": "v6", "confirm": true,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if c.backend.count("rollback") != 0 {
		t.Error("forbidden rollback must not reach the backend")
	}
}

func TestScaleValidation(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	resp, body := c.do(http.MethodPost, "/k8s/c1/default/api/scale", map[string]any{"currentReplicas": 2, "replicas": 99})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if body["field"] != "replicas" {
		t.Errorf("expected replicas field error, got %v", body)
	}
	if c.backend.count("scale") != 0 {
		t.Error("invalid scale must not reach the backend")
	}
}

func TestScaleSuccessAndFailure(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")

	resp, body := c.do(http.MethodPost, "/k8s/c1/default/api/scale", map[string]any{"currentReplicas": 2, "replicas": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if c.backend.count("deployments") != 1 {
		t.Errorf("expected the deployment listing to be re-fetched once, got %d", c.backend.count("deployments"))
	}

	resp, body = c.do(http.MethodPost, "/k8s/c1/default/broken/scale", map[string]any{"currentReplicas": 2, "replicas": 3})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected backend status 500, got %d", resp.StatusCode)
	}
	if errs := errorsOf(body); len(errs) != 1 || errs[0] != "scale exploded" {
		t.Errorf("expected backend detail, got %v", errs)
	}
	toasts, _ := body["toasts"].([]any)
	if len(toasts) != 1 || toasts[0].(map[string]any)["level"] != "error" {
		t.Errorf("expected one error toast, got %v", body["toasts"])
	}
}

func TestScaleToZeroAsksFirst(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	resp, body := c.do(http.MethodPost, "/k8s/c1/default/api/scale", map[string]any{"currentReplicas": 2, "replicas": 0})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	prompt, _ := body["prompt"].(map[string]any)
	if prompt == nil || prompt["Danger"] != true {
		t.Errorf("expected a danger prompt, got %v", body["prompt"])
	}
}

func TestRevokedTokenEndsSession(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	if resp, _ := c.do(http.MethodGet, "/apps", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 before revocation, got %d", resp.StatusCode)
	}

	c.backend.revokeAll()
	resp, _ := c.do(http.MethodGet, "/apps", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	cleared := false
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the session cookie to be cleared")
	}
}

func TestForgedCookieIsIgnored(t *testing.T) {
	c := newTestConsole(t)
	u, _ := url.Parse(c.srv.URL)
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: "not-a-sealed-value"}})
	resp, _ := c.do(http.MethodGet, "/apps", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	resp, body := c.do(http.MethodPost, "/logout", nil)
	if resp.StatusCode != http.StatusOK || body["redirect"] != "/login" {
		t.Fatalf("unexpected logout response: %d %v", resp.StatusCode, body)
	}
	resp, _ = c.do(http.MethodGet, "/apps", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected 303 after logout, got %d", resp.StatusCode)
	}
}

func TestSidebarPreference(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	_, body := c.do(http.MethodPost, "/preferences/sidebar", nil)
	if body["collapsed"] != true {
		t.Fatalf("expected first toggle to collapse, got %v", body)
	}
	_, body = c.do(http.MethodGet, "/", nil)
	if body["sidebarCollapsed"] != true {
		t.Errorf("expected home to report a collapsed sidebar, got %v", body["sidebarCollapsed"])
	}
	_, body = c.do(http.MethodPost, "/preferences/sidebar", map[string]bool{"collapsed": true})
	if body["collapsed"] != true {
		t.Errorf("explicit value must win over toggling, got %v", body)
	}
}

func TestBulkRegister(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	text := "hostname,ip\nweb1,10.0.0.1\ndup,10.0.0.2\n,10.0.0.3\n"
	resp, body := c.do(http.MethodPost, "/servers/bulk", map[string]any{"text": text})
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %v", resp.StatusCode, body)
	}
	sum := body["summary"].(map[string]any)
	if sum["succeeded"] != float64(1) || sum["failed"] != float64(1) || sum["invalid"] != float64(1) {
		t.Errorf("unexpected summary: %v", sum)
	}
	if c.backend.count("create-server") != 2 {
		t.Errorf("expected 2 create calls, got %d", c.backend.count("create-server"))
	}
	rows := body["rows"].([]any)
	if msg := rows[1].(map[string]any)["message"]; msg != "hostname already registered" {
		t.Errorf("expected backend detail on the failed row, got %v", msg)
	}
}

func TestExecRelay(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")

	conn, _, err := c.dialWS("/ws/exec?context=c1&namespace=default&pod=api-0&container=app")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ls\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "ls\n" {
		t.Errorf("expected echo, got %q", data)
	}
}

func TestExecRelayRequiresPermission(t *testing.T) {
	c := newTestConsole(t)
	c.login("fresh")
	_, resp, err := c.dialWS("/ws/exec?context=c1&namespace=default&pod=api-0")
	if err == nil {
		t.Fatal("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestWatchStreamsListing(t *testing.T) {
	c := newTestConsole(t)
	c.login("viewer")

	conn, _, err := c.dialWS("/ws/watch?resource=deployments&context=c1&namespace=shop")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	var frame struct {
		Resource string                  `json:"resource"`
		Data     []models.DeploymentInfo `json:"data"`
		Error    string                  `json:"error"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Resource != "deployments" || frame.Error != "" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if len(frame.Data) != 1 || frame.Data[0].Namespace != "shop" {
		t.Errorf("unexpected data: %+v", frame.Data)
	}
}

func TestWatchRejectsUnknownResource(t *testing.T) {
	c := newTestConsole(t)
	c.login("admin")
	_, resp, err := c.dialWS("/ws/watch?resource=pods")
	if err == nil {
		t.Fatal("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", resp)
	}
}

func TestWatchKeyIsPerToken(t *testing.T) {
	a := watchKey("tok-a", "deployments", "dev", "shop")
	b := watchKey("tok-b", "deployments", "dev", "shop")
	if a == b {
		t.Fatal("two tokens of one user must not share a watch")
	}
	if a != watchKey("tok-a", "deployments", "dev", "shop") {
		t.Fatal("the same token must map to the same watch")
	}
	if a.Resource != "deployments" {
		t.Fatalf("expected resource deployments, got %q", a.Resource)
	}
	if strings.Contains(a.String(), "tok-a") {
		t.Fatal("the raw token must not appear in the key")
	}
}
