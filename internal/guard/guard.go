// Package guard decides whether a navigation renders the requested page or
// redirects somewhere else.
package guard

import (
	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/pkg/models"
)

// Fixed routes the guard redirects to.
const (
	LoginPath          = "/login"
	ChangePasswordPath = "/change-password"
	HomePath           = "/"
)

// Phase is the state of session restoration.
type Phase int

const (
	Loading Phase = iota
	Authenticated
	Unauthenticated
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Kind is what the caller should do with a navigation.
type Kind int

const (
	// Wait renders a placeholder while the session is restored.
	Wait Kind = iota
	Render
	Redirect
)

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Kind     Kind
	Location string // set when Kind == Redirect
	Reason   string
}

// Allowed returns true if the requested page should render.
func (d Decision) Allowed() bool { return d.Kind == Render }

// Evaluate resolves a navigation to page for the given session phase and user.
// The requested location is never preserved for after login.
func Evaluate(phase Phase, user *models.User, page string) Decision {
	switch {
	case phase == Loading:
		return Decision{Kind: Wait, Reason: "session restore in progress"}
	case phase == Unauthenticated || user == nil:
		return Decision{Kind: Redirect, Location: LoginPath, Reason: "not authenticated"}
	case !user.PasswordChanged:
		return Decision{Kind: Redirect, Location: ChangePasswordPath, Reason: "password change required"}
	case !authz.CanAccessPage(user, page):
		return Decision{Kind: Redirect, Location: HomePath, Reason: "no page_access permission for " + page}
	}
	return Decision{Kind: Render}
}

// EvaluatePath is Evaluate for a request path. Unknown paths redirect home.
func EvaluatePath(phase Phase, user *models.User, path string) Decision {
	page, ok := authz.PageByPath(path)
	if !ok {
		d := Evaluate(phase, user, authz.PageHome)
		if d.Kind == Render {
			return Decision{Kind: Redirect, Location: HomePath, Reason: "unknown route"}
		}
		return d
	}
	return Evaluate(phase, user, page.ID)
}
