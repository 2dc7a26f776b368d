package console

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/bulk"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/notify"
	"github.com/org/opsconsole/internal/poll"
	"github.com/org/opsconsole/pkg/models"
)

// actionRun collects what one action request produced.
type actionRun struct {
	coord   *action.Coordinator
	toasts  *notify.Recorder
	prompt  *action.Prompt
	listing any
	expired bool
}

// newActionRun builds a coordinator for the request's user. confirm is the
// request's explicit confirmation; when it is false the first prompt is
// recorded and declined. ref scopes the deployments re-fetch.
func (s *Server) newActionRun(r *http.Request, confirm bool, ref models.DeploymentRef) *actionRun {
	sess := sessionFromCtx(r.Context())
	api := sess.Client(s.api)
	run := &actionRun{toasts: &notify.Recorder{}}

	confirmer := action.ConfirmFunc(func(_ context.Context, p action.Prompt) (bool, error) {
		if confirm {
			return true, nil
		}
		run.prompt = &p
		return false, nil
	})
	refresh := func(ctx context.Context, l action.Listing) error {
		var err error
		switch l {
		case action.ListApps:
			var apps []models.AppStatus
			apps, err = api.Apps(ctx)
			if err == nil {
				run.listing = appRows(sess.User, apps)
			}
		case action.ListDeployments:
			run.listing, err = api.Deployments(ctx, ref.Context, ref.Namespace)
			if rerr := s.sched.RefreshResource(ctx, poll.Deployments); rerr != nil && err == nil {
				err = rerr
			}
		}
		return err
	}

	run.coord = action.New(api, sess.User, run.toasts, confirmer, refresh, action.Options{
		Bounds:         s.cfg.Bounds,
		OnUnauthorized: func() { run.expired = true },
		Observe:        observeAction,
	})
	return run
}

// finish writes the result of an action.
func (s *Server) finish(w http.ResponseWriter, run *actionRun, out action.Outcome, err error) {
	body := map[string]any{"outcome": out, "toasts": run.toasts.Toasts()}
	if run.expired {
		s.clearSessionCookie(w)
	}

	var verr *action.ValidationError
	switch {
	case errors.As(err, &verr):
		body["errors"] = []string{err.Error()}
		body["field"] = verr.Field
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, action.ErrForbidden):
		body["errors"] = []string{err.Error()}
		writeJSON(w, http.StatusForbidden, body)
	case err != nil:
		code := http.StatusBadGateway
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			code = apiErr.Status
		}
		body["errors"] = []string{client.Message(err, out.Message)}
		writeJSON(w, code, body)
	case out.Cancelled:
		body["prompt"] = run.prompt
		writeJSON(w, http.StatusConflict, body)
	default:
		if run.listing != nil {
			body["listing"] = run.listing
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func deploymentRef(r *http.Request) models.DeploymentRef {
	return models.DeploymentRef{
		Context:   chi.URLParam(r, "ctx"),
		Namespace: chi.URLParam(r, "ns"),
		Name:      chi.URLParam(r, "name"),
	}
}

// decodeOptional decodes the body if there is one.
func decodeOptional(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, dst)
}

// RollbackHandler handles POST /apps/rollback
func (s *Server) RollbackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppName        string `json:"appName"`
		Env            string `json:"env"`
		CurrentVersion string `json:"currentVersion"`
		TargetVersion  string `json:"targetVersion"`
		Confirm        bool   `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppName == "" || req.Env == "" {
		writeError(w, http.StatusBadRequest, "appName and env are required")
		return
	}
	run := s.newActionRun(r, req.Confirm, models.DeploymentRef{})
	out, err := run.coord.Rollback(r.Context(), action.RollbackForm{
		App:     req.AppName,
		Env:     req.Env,
		Current: req.CurrentVersion,
		Target:  req.TargetVersion,
	})
	s.finish(w, run, out, err)
}

// ReplicaHandler handles POST /apps/replica
func (s *Server) ReplicaHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppName         string `json:"appName"`
		Env             string `json:"env"`
		ComponentName   string `json:"componentName"`
		CurrentReplicas int    `json:"currentReplicas"`
		Replicas        int    `json:"replicas"`
		Confirm         bool   `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AppName == "" || req.Env == "" {
		writeError(w, http.StatusBadRequest, "appName and env are required")
		return
	}
	run := s.newActionRun(r, req.Confirm, models.DeploymentRef{})
	out, err := run.coord.ChangeReplica(r.Context(), action.ReplicaForm{
		App:       req.AppName,
		Env:       req.Env,
		Component: req.ComponentName,
		Current:   req.CurrentReplicas,
		Desired:   req.Replicas,
	})
	s.finish(w, run, out, err)
}

// ScaleHandler handles POST /k8s/{ctx}/{ns}/{name}/scale
func (s *Server) ScaleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentReplicas int  `json:"currentReplicas"`
		Replicas        int  `json:"replicas"`
		Confirm         bool `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref := deploymentRef(r)
	run := s.newActionRun(r, req.Confirm, ref)
	out, err := run.coord.Scale(r.Context(), action.ScaleForm{Ref: ref, Current: req.CurrentReplicas, Desired: req.Replicas})
	s.finish(w, run, out, err)
}

// RestartHandler handles POST /k8s/{ctx}/{ns}/{name}/restart
func (s *Server) RestartHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref := deploymentRef(r)
	run := s.newActionRun(r, req.Confirm, ref)
	out, err := run.coord.Restart(r.Context(), ref)
	s.finish(w, run, out, err)
}

// EditManifestHandler handles POST /k8s/{ctx}/{ns}/{name}/yaml
func (s *Server) EditManifestHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YAML string `json:"yaml"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ref := deploymentRef(r)
	run := s.newActionRun(r, true, ref)
	out, err := run.coord.EditManifest(r.Context(), action.ManifestForm{Ref: ref, Content: req.YAML})
	s.finish(w, run, out, err)
}

// BulkRegisterHandler handles POST /servers/bulk. Rows are parsed from the
// pasted text and registered one at a time.
func (s *Server) BulkRegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string `json:"text"`
		GroupID *int   `json:"groupId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "no rows to register")
		return
	}

	batch := bulk.NewBatch(req.Text, req.GroupID)
	if len(batch.Rows) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no rows could be parsed")
		return
	}
	sess := sessionFromCtx(r.Context())
	sum, err := batch.Submit(r.Context(), sess.Client(s.api), nil)
	if err != nil {
		writeError(w, http.StatusRequestTimeout, "registration cancelled")
		return
	}
	observeAction("bulk_register", resultOf(sum.Done()))

	code := http.StatusOK
	if !sum.Done() {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, map[string]any{"rows": batch.Rows, "summary": sum})
}

func resultOf(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
