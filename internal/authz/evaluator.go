// Package authz decides what a console user may see and do.
//
// Every page and action check in the console goes through this package so the
// admin bypass and the home-page exemption live in exactly one place.
package authz

import "github.com/org/opsconsole/pkg/models"

// Page ids. PageHome is reachable by every authenticated user.
const (
	PageHome    = "home"
	PageApps    = "apps"
	PageUsers   = "users"
	PageK8s     = "k8s"
	PageServers = "servers"
	PageAudit   = "audit"
)

// Page is a top-level console page.
type Page struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Pages lists the console's top-level pages in menu order.
var Pages = []Page{
	{ID: PageHome, Label: "Home", Path: "/"},
	{ID: PageApps, Label: "Applications", Path: "/apps"},
	{ID: PageUsers, Label: "Users & Permissions", Path: "/users"},
	{ID: PageK8s, Label: "Kubernetes Clusters", Path: "/k8s"},
	{ID: PageServers, Label: "Servers", Path: "/servers"},
	{ID: PageAudit, Label: "Audit Log", Path: "/audit"},
}

// CanAccessPage returns true if the user may open the given page.
func CanAccessPage(user *models.User, page string) bool {
	if user == nil {
		return false
	}
	if page == PageHome {
		return true
	}
	return HasPermission(user, models.PermPageAccess, page, models.ActionRead)
}

// HasPermission returns true if the user's resolved permission list contains the
// exact (type, target, action) tuple. Admins pass without a list walk.
func HasPermission(user *models.User, typ, target, action string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	for _, p := range user.Permissions {
		if p.Matches(typ, target, action) {
			return true
		}
	}
	return false
}

// CanDeploy returns true if the user may roll back or rescale the named application.
func CanDeploy(user *models.User, app string) bool {
	return HasPermission(user, models.PermAppDeploy, app, models.ActionWrite)
}

// AccessiblePages returns the pages the user may open, in menu order.
func AccessiblePages(user *models.User) []Page {
	var out []Page
	for _, p := range Pages {
		if CanAccessPage(user, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// PageByPath returns the page served at path.
func PageByPath(path string) (Page, bool) {
	for _, p := range Pages {
		if p.Path == path {
			return p, true
		}
	}
	return Page{}, false
}
