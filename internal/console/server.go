// Package console is the web console gateway. It serves the console's page
// routes as JSON view models behind the route guard, runs resource actions
// through the action coordinator and relays terminal and log sockets to the
// backend.
package console

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/crypto"
	"github.com/org/opsconsole/internal/poll"
)

const (
	sessionCookie = "opsconsole_session"
	sidebarCookie = "opsconsole_sidebar"

	defaultCookieTTL = 12 * time.Hour
	defaultRateLimit = 300
)

// Config holds gateway configuration.
type Config struct {
	ListenAddr   string
	TLSCertFile  string
	TLSKeyFile   string
	BackendURL   string
	CACertFile   string
	CookieSecret []byte
	CookieTTL    time.Duration
	SecureCookie bool
	// RateLimit is requests per minute per client IP. Zero uses the default.
	RateLimit int
	Bounds    action.Bounds
}

// Server is the console gateway.
type Server struct {
	api     *client.Client
	sealer  *crypto.Sealer
	sched   *poll.Scheduler
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a Server talking to the backend at cfg.BackendURL.
func NewServer(cfg Config) (*Server, error) {
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = defaultCookieTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	api, err := client.New(client.Config{BaseURL: cfg.BackendURL, CACert: cfg.CACertFile})
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	sealer, err := crypto.NewSealer(cfg.CookieSecret)
	if err != nil {
		return nil, fmt.Errorf("cookie sealer: %w", err)
	}
	return &Server{
		api:    api,
		sealer: sealer,
		sched:  poll.New(poll.Options{OnFetch: observePoll}),
		cfg:    cfg,
	}, nil
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(httprate.Limit(s.cfg.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	r.Use(s.sessionMiddleware)
	r.Use(accessLogMiddleware)

	r.Handle("/metrics", MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Get("/healthz", s.HealthHandler)
		r.Get("/login", s.LoginPageHandler)
		r.Post("/login", s.LoginHandler)
		r.Post("/logout", s.LogoutHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/change-password", s.ChangePasswordPageHandler)
		r.Post("/change-password", s.ChangePasswordHandler)
		r.Post("/preferences/sidebar", s.SidebarHandler)
	})

	r.With(guardPage(authz.PageHome)).Get("/", s.HomeHandler)

	r.Route("/apps", func(r chi.Router) {
		r.Use(guardPage(authz.PageApps))
		r.Get("/", s.AppsHandler)
		r.Get("/{app}/tags", s.AppTagsHandler)
		r.Post("/rollback", s.RollbackHandler)
		r.Post("/replica", s.ReplicaHandler)
	})

	r.With(guardPage(authz.PageUsers)).Get("/users", s.UsersHandler)
	r.With(guardPage(authz.PageAudit)).Get("/audit", s.AuditHandler)

	r.Route("/k8s", func(r chi.Router) {
		r.Use(guardPage(authz.PageK8s))
		r.Get("/", s.K8sHandler)
		r.Get("/{ctx}/{ns}/{name}/yaml", s.ManifestHandler)
		r.Post("/{ctx}/{ns}/{name}/scale", s.ScaleHandler)
		r.Post("/{ctx}/{ns}/{name}/restart", s.RestartHandler)
		r.Post("/{ctx}/{ns}/{name}/yaml", s.EditManifestHandler)
	})

	r.Route("/servers", func(r chi.Router) {
		r.Use(guardPage(authz.PageServers))
		r.Get("/", s.ServersHandler)
		r.Post("/bulk", s.BulkRegisterHandler)
	})

	r.Route("/ws", func(r chi.Router) {
		r.With(guardPage(authz.PageK8s)).Get("/exec", s.ExecRelayHandler)
		r.With(guardPage(authz.PageK8s)).Get("/watch", s.WatchHandler)
		r.With(guardPage(authz.PageServers)).Get("/ssh", s.SSHRelayHandler)
		r.With(guardPage(authz.PageServers)).Get("/ansible", s.AnsibleRelayHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	// No WriteTimeout: relays and watches hold the connection open.
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		log.Info().Str("addr", s.cfg.ListenAddr).Str("backend", s.api.BaseURL()).Msg("starting HTTPS console")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Str("backend", s.api.BaseURL()).Msg("starting HTTP console")
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops polling and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sched.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type cookieSession struct {
	Token string `json:"token"`
}

func (s *Server) readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	raw, err := s.sealer.Open(sessionCookie, c.Value)
	if err != nil {
		return "", false
	}
	var cs cookieSession
	if err := json.Unmarshal(raw, &cs); err != nil || cs.Token == "" {
		return "", false
	}
	return cs.Token, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) error {
	raw, err := json.Marshal(cookieSession{Token: token})
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(sessionCookie, raw, s.cfg.CookieTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(s.cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func sidebarCollapsed(r *http.Request) bool {
	c, err := r.Cookie(sidebarCookie)
	return err == nil && c.Value == "1"
}
