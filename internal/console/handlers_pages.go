package console

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/pkg/models"
)

// backendFailed writes a failed backend call. A rejected token ends the
// browser session as well.
func (s *Server) backendFailed(w http.ResponseWriter, err error, fallback string) {
	if client.IsUnauthorized(err) {
		s.clearSessionCookie(w)
	}
	writeBackendError(w, err, fallback)
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// HomeHandler handles GET /
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":             sess.User,
		"menu":             authz.AccessiblePages(sess.User),
		"sidebarCollapsed": sidebarCollapsed(r),
	})
}

type appRow struct {
	models.AppStatus
	CanDeploy bool `json:"canDeploy"`
}

// AppsHandler handles GET /apps
func (s *Server) AppsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	apps, err := sess.Client(s.api).Apps(r.Context())
	if err != nil {
		s.backendFailed(w, err, "failed to load applications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": appRows(sess.User, apps)})
}

func appRows(u *models.User, apps []models.AppStatus) []appRow {
	rows := make([]appRow, 0, len(apps))
	for _, a := range apps {
		rows = append(rows, appRow{AppStatus: a, CanDeploy: authz.CanDeploy(u, a.AppName)})
	}
	return rows
}

// AppTagsHandler handles GET /apps/{app}/tags?env=
func (s *Server) AppTagsHandler(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	env := r.URL.Query().Get("env")
	if env == "" {
		writeError(w, http.StatusBadRequest, "env is required")
		return
	}
	sess := sessionFromCtx(r.Context())
	tags, err := sess.Client(s.api).AppTags(r.Context(), app, env)
	if err != nil {
		s.backendFailed(w, err, "failed to load versions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"app":       app,
		"env":       env,
		"tags":      tags,
		"canDeploy": authz.CanDeploy(sess.User, app),
	})
}

// UsersHandler handles GET /users
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	api := sessionFromCtx(r.Context()).Client(s.api)
	var (
		users  []models.User
		groups []models.Group
		perms  []models.Permission
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { users, err = api.Users(ctx); return })
	g.Go(func() (err error) { groups, err = api.Groups(ctx); return })
	g.Go(func() (err error) { perms, err = api.Permissions(ctx); return })
	if err := g.Wait(); err != nil {
		s.backendFailed(w, err, "failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":       users,
		"groups":      groups,
		"permissions": perms,
	})
}

// K8sHandler handles GET /k8s. With ?context= it adds the cluster's nodes
// and namespaces; with ?namespace= as well it adds the deployments.
func (s *Server) K8sHandler(w http.ResponseWriter, r *http.Request) {
	api := sessionFromCtx(r.Context()).Client(s.api)
	kctx := r.URL.Query().Get("context")
	ns := r.URL.Query().Get("namespace")

	view := map[string]any{"context": kctx, "namespace": ns}
	var (
		clusters    *models.ClusterList
		nodes       []models.NodeInfo
		namespaces  []models.NamespaceInfo
		deployments []models.DeploymentInfo
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { clusters, err = api.Clusters(ctx); return })
	if kctx != "" {
		g.Go(func() (err error) { nodes, err = api.Nodes(ctx, kctx); return })
		g.Go(func() (err error) { namespaces, err = api.Namespaces(ctx, kctx); return })
		if ns != "" {
			g.Go(func() (err error) { deployments, err = api.Deployments(ctx, kctx, ns); return })
		}
	}
	if err := g.Wait(); err != nil {
		s.backendFailed(w, err, "failed to load cluster data")
		return
	}
	view["clusters"] = clusters
	if kctx != "" {
		view["nodes"] = nodes
		view["namespaces"] = namespaces
		if ns != "" {
			view["deployments"] = deployments
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// ManifestHandler handles GET /k8s/{ctx}/{ns}/{name}/yaml
func (s *Server) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ref := deploymentRef(r)
	manifest, err := sessionFromCtx(r.Context()).Client(s.api).DeploymentYAML(r.Context(), ref)
	if err != nil {
		s.backendFailed(w, err, "failed to load manifest")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployment": ref.String(), "yaml": manifest})
}

// ServersHandler handles GET /servers
func (s *Server) ServersHandler(w http.ResponseWriter, r *http.Request) {
	api := sessionFromCtx(r.Context()).Client(s.api)
	f := models.ServerFilter{
		GroupID: queryInt(r, "groupId"),
		Status:  r.URL.Query().Get("status"),
		Search:  r.URL.Query().Get("search"),
	}
	var (
		servers []models.Server
		groups  []models.ServerGroup
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) { servers, err = api.Servers(ctx, f); return })
	g.Go(func() (err error) { groups, err = api.ServerGroups(ctx); return })
	if err := g.Wait(); err != nil {
		s.backendFailed(w, err, "failed to load servers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": servers, "groups": groups})
}

// AuditHandler handles GET /audit
func (s *Server) AuditHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := client.AuditFilter{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		UserID:    queryInt(r, "userId"),
		Menu:      q.Get("menu"),
		Action:    q.Get("action"),
		Page:      queryInt(r, "page"),
		PageSize:  queryInt(r, "pageSize"),
	}
	page, err := sessionFromCtx(r.Context()).Client(s.api).AuditLogs(r.Context(), f)
	if err != nil {
		s.backendFailed(w, err, "failed to load audit logs")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
