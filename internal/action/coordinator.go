// Package action runs the console's mutating operations: validate, confirm,
// call the backend, report a toast and re-fetch the affected listing.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/notify"
	"github.com/org/opsconsole/pkg/models"
)

// ErrForbidden is returned when the user lacks deploy rights on an app.
var ErrForbidden = errors.New("no deploy permission for this application")

// API is the subset of the backend client the coordinator calls.
type API interface {
	ScaleDeployment(ctx context.Context, ref models.DeploymentRef, replicas int) (*models.ScaleResponse, error)
	RestartDeployment(ctx context.Context, ref models.DeploymentRef) (*models.Message, error)
	UpdateDeploymentYAML(ctx context.Context, ref models.DeploymentRef, manifest string) (*models.Message, error)
	Rollback(ctx context.Context, req models.RollbackRequest) (*models.Message, error)
	ChangeReplica(ctx context.Context, req models.ReplicaRequest) (*models.Message, error)
}

// Prompt is shown before a destructive or state-changing operation.
type Prompt struct {
	Title   string
	Message string
	Danger  bool
}

// Confirmer asks the user to confirm a Prompt.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Preconfirmed answers every prompt with a fixed value. The console gateway
// uses it with the request's explicit confirm flag.
type Preconfirmed bool

func (p Preconfirmed) Confirm(context.Context, Prompt) (bool, error) { return bool(p), nil }

// Listing names what must be re-fetched after a successful action.
type Listing string

const (
	ListApps        Listing = "apps"
	ListDeployments Listing = "deployments"
)

// Refresher re-fetches a listing.
type Refresher func(ctx context.Context, l Listing) error

// Outcome is what happened to an action.
type Outcome struct {
	Done      bool   `json:"done"`
	Cancelled bool   `json:"cancelled"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	Bounds Bounds
	// OnUnauthorized runs when the backend rejects the token.
	OnUnauthorized func()
	// Observe is called once per attempted request with the operation name
	// and "ok" or "error".
	Observe func(op, result string)
}

// Coordinator runs actions on behalf of one user.
type Coordinator struct {
	api     API
	user    *models.User
	notify  notify.Notifier
	confirm Confirmer
	refresh Refresher
	opts    Options
}

// New returns a Coordinator. refresh may be nil.
func New(api API, user *models.User, n notify.Notifier, c Confirmer, refresh Refresher, opts Options) *Coordinator {
	opts.Bounds = opts.Bounds.withDefaults()
	return &Coordinator{api: api, user: user, notify: n, confirm: c, refresh: refresh, opts: opts}
}

// Bounds returns the replica limits in effect.
func (c *Coordinator) Bounds() Bounds { return c.opts.Bounds }

type plan struct {
	op       string
	validate func() error
	app      string
	prompt   *Prompt
	call     func(ctx context.Context) error
	success  string
	fallback string
	refresh  Listing
}

// Scale sets a deployment's replica count. Scaling to zero asks first.
func (c *Coordinator) Scale(ctx context.Context, f ScaleForm) (Outcome, error) {
	p := plan{
		op:       "scale",
		validate: func() error { return f.Validate(c.opts.Bounds) },
		call: func(ctx context.Context) error {
			_, err := c.api.ScaleDeployment(ctx, f.Ref, f.Desired)
			return err
		},
		success:  fmt.Sprintf("%s scaled to %d replicas", f.Ref.Name, f.Desired),
		fallback: "scale failed",
		refresh:  ListDeployments,
	}
	if f.Desired == 0 {
		p.prompt = &Prompt{
			Title:   "Scale to zero",
			Message: fmt.Sprintf("Scaling %s to 0 terminates every pod. Continue?", f.Ref.Name),
			Danger:  true,
		}
	}
	return c.run(ctx, p)
}

// Restart triggers a rolling restart.
func (c *Coordinator) Restart(ctx context.Context, ref models.DeploymentRef) (Outcome, error) {
	return c.run(ctx, plan{
		op: "restart",
		prompt: &Prompt{
			Title:   "Restart deployment",
			Message: fmt.Sprintf("Restart %s. Continue?", ref.Name),
		},
		call: func(ctx context.Context) error {
			_, err := c.api.RestartDeployment(ctx, ref)
			return err
		},
		success:  fmt.Sprintf("%s restart requested", ref.Name),
		fallback: "restart failed",
		refresh:  ListDeployments,
	})
}

// EditManifest replaces a deployment's manifest.
func (c *Coordinator) EditManifest(ctx context.Context, f ManifestForm) (Outcome, error) {
	return c.run(ctx, plan{
		op:       "edit",
		validate: f.Validate,
		call: func(ctx context.Context) error {
			_, err := c.api.UpdateDeploymentYAML(ctx, f.Ref, f.Content)
			return err
		},
		success:  fmt.Sprintf("%s updated", f.Ref.Name),
		fallback: "update failed",
		refresh:  ListDeployments,
	})
}

// Rollback deploys another version of an application.
func (c *Coordinator) Rollback(ctx context.Context, f RollbackForm) (Outcome, error) {
	return c.run(ctx, plan{
		op:       "rollback",
		validate: f.Validate,
		app:      f.App,
		prompt: &Prompt{
			Title:   "Change version",
			Message: fmt.Sprintf("Change %s %s from %s to %s?", f.App, f.Env, f.Current, f.Target),
			Danger:  true,
		},
		call: func(ctx context.Context) error {
			_, err := c.api.Rollback(ctx, models.RollbackRequest{AppName: f.App, Env: f.Env, TargetVersion: f.Target})
			return err
		},
		success:  fmt.Sprintf("%s %s changed to %s", f.App, f.Env, f.Target),
		fallback: "version change failed",
		refresh:  ListApps,
	})
}

// ChangeReplica sets an application's replica count.
func (c *Coordinator) ChangeReplica(ctx context.Context, f ReplicaForm) (Outcome, error) {
	return c.run(ctx, plan{
		op:       "replica",
		validate: func() error { return f.Validate(c.opts.Bounds) },
		app:      f.App,
		prompt: &Prompt{
			Title:   "Change replicas",
			Message: fmt.Sprintf("Change %s %s replicas from %d to %d?", f.App, f.Env, f.Current, f.Desired),
		},
		call: func(ctx context.Context) error {
			_, err := c.api.ChangeReplica(ctx, models.ReplicaRequest{
				AppName:       f.App,
				Env:           f.Env,
				ComponentName: f.Component,
				Replicas:      f.Desired,
			})
			return err
		},
		success:  fmt.Sprintf("%s %s replicas changed to %d", f.App, f.Env, f.Desired),
		fallback: "replica change failed",
		refresh:  ListApps,
	})
}

func (c *Coordinator) run(ctx context.Context, p plan) (Outcome, error) {
	if p.validate != nil {
		if err := p.validate(); err != nil {
			return Outcome{Retryable: true, Message: err.Error()}, err
		}
	}
	if p.app != "" && !authz.CanDeploy(c.user, p.app) {
		return Outcome{Message: ErrForbidden.Error()}, ErrForbidden
	}
	if p.prompt != nil {
		ok, err := c.confirm.Confirm(ctx, *p.prompt)
		if err != nil {
			return Outcome{Retryable: true}, fmt.Errorf("confirming %s: %w", p.op, err)
		}
		if !ok {
			return Outcome{Cancelled: true}, nil
		}
	}

	if err := p.call(ctx); err != nil {
		c.observe(p.op, "error")
		msg := client.Message(err, p.fallback)
		c.notify.Error(msg)
		log.Warn().Err(err).Str("op", p.op).Msg("action failed")
		if client.IsUnauthorized(err) && c.opts.OnUnauthorized != nil {
			c.opts.OnUnauthorized()
		}
		return Outcome{Retryable: true, Message: msg}, err
	}

	c.observe(p.op, "ok")
	c.notify.Success(p.success)
	log.Info().Str("op", p.op).Str("user", c.userID()).Msg(p.success)
	if c.refresh != nil {
		if err := c.refresh(ctx, p.refresh); err != nil {
			log.Warn().Err(err).Str("listing", string(p.refresh)).Msg("refresh after action failed")
		}
	}
	return Outcome{Done: true, Message: p.success}, nil
}

func (c *Coordinator) observe(op, result string) {
	if c.opts.Observe != nil {
		c.opts.Observe(op, result)
	}
}

func (c *Coordinator) userID() string {
	if c.user == nil {
		return ""
	}
	return c.user.UserID
}
