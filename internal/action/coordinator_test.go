package action

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/notify"
	"github.com/org/opsconsole/pkg/models"
)

type fakeAPI struct {
	calls []string
	err   error
	last  any
}

func (f *fakeAPI) ScaleDeployment(_ context.Context, ref models.DeploymentRef, replicas int) (*models.ScaleResponse, error) {
	f.calls = append(f.calls, "scale "+ref.String())
	f.last = replicas
	return &models.ScaleResponse{Success: f.err == nil, Replicas: replicas}, f.err
}

func (f *fakeAPI) RestartDeployment(_ context.Context, ref models.DeploymentRef) (*models.Message, error) {
	f.calls = append(f.calls, "restart "+ref.String())
	return &models.Message{}, f.err
}

func (f *fakeAPI) UpdateDeploymentYAML(_ context.Context, ref models.DeploymentRef, manifest string) (*models.Message, error) {
	f.calls = append(f.calls, "edit "+ref.String())
	f.last = manifest
	return &models.Message{}, f.err
}

func (f *fakeAPI) Rollback(_ context.Context, req models.RollbackRequest) (*models.Message, error) {
	f.calls = append(f.calls, "rollback "+req.AppName)
	f.last = req
	return &models.Message{}, f.err
}

func (f *fakeAPI) ChangeReplica(_ context.Context, req models.ReplicaRequest) (*models.Message, error) {
	f.calls = append(f.calls, "replica "+req.AppName)
	f.last = req
	return &models.Message{}, f.err
}

var (
	ref      = models.DeploymentRef{Context: "dev", Namespace: "web", Name: "api"}
	admin    = &models.User{UserID: "root", Role: models.RoleAdmin}
	deployer = &models.User{UserID: "dev", Role: models.RoleUser, Permissions: []models.UserPermission{
		{Type: models.PermAppDeploy, Target: "shop", Action: models.ActionWrite},
	}}
)

type harness struct {
	api       *fakeAPI
	toasts    *notify.Recorder
	prompts   []Prompt
	answer    bool
	refreshed []Listing
	observed  []string
	expired   int
}

func newHarness(t *testing.T, user *models.User) (*harness, *Coordinator) {
	t.Helper()
	h := &harness{api: &fakeAPI{}, toasts: &notify.Recorder{}, answer: true}
	confirm := ConfirmFunc(func(_ context.Context, p Prompt) (bool, error) {
		h.prompts = append(h.prompts, p)
		return h.answer, nil
	})
	refresh := func(_ context.Context, l Listing) error {
		h.refreshed = append(h.refreshed, l)
		return nil
	}
	c := New(h.api, user, h.toasts, confirm, refresh, Options{
		OnUnauthorized: func() { h.expired++ },
		Observe:        func(op, result string) { h.observed = append(h.observed, op+":"+result) },
	})
	return h, c
}

func TestScaleValidation(t *testing.T) {
	h, c := newHarness(t, admin)
	ctx := context.Background()

	for _, desired := range []int{-1, 21, 3} {
		out, err := c.Scale(ctx, ScaleForm{Ref: ref, Current: 3, Desired: desired})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "desired=%d", desired)
		assert.False(t, out.Done)
	}
	assert.Empty(t, h.api.calls, "invalid input must not reach the backend")
	assert.Empty(t, h.toasts.Toasts())

	assert.True(t, ScaleForm{Current: 3, Desired: 20}.Submittable(DefaultBounds))
	assert.False(t, ScaleForm{Current: 3, Desired: 3}.Submittable(DefaultBounds))
}

func TestScaleSuccessToastsAndRefreshes(t *testing.T) {
	h, c := newHarness(t, admin)

	out, err := c.Scale(context.Background(), ScaleForm{Ref: ref, Current: 1, Desired: 3})
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Empty(t, h.prompts, "scaling up needs no confirmation")
	assert.Equal(t, []string{"scale dev/web/api"}, h.api.calls)
	assert.Equal(t, []Listing{ListDeployments}, h.refreshed)
	assert.Equal(t, []string{"scale:ok"}, h.observed)

	toasts := h.toasts.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Success, toasts[0].Level)
	assert.Contains(t, toasts[0].Message, "api")
	assert.Contains(t, toasts[0].Message, "3")
}

func TestScaleToZeroDeclined(t *testing.T) {
	h, c := newHarness(t, admin)
	h.answer = false

	out, err := c.Scale(context.Background(), ScaleForm{Ref: ref, Current: 2, Desired: 0})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	require.Len(t, h.prompts, 1)
	assert.True(t, h.prompts[0].Danger)
	assert.Empty(t, h.api.calls)
	assert.Empty(t, h.refreshed)
}

func TestRollbackRequiresDeployPermission(t *testing.T) {
	h, c := newHarness(t, &models.User{UserID: "viewer", Role: models.RoleUser})

	_, err := c.Rollback(context.Background(), RollbackForm{App: "shop", Env: "prod", Current: "v1", Target: "v2"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, h.prompts)
	assert.Empty(t, h.api.calls)
}

func TestRollbackValidation(t *testing.T) {
	assert.False(t, RollbackForm{Current: "v1", Target: ""}.Submittable())
	assert.False(t, RollbackForm{Current: "v1", Target: "v1"}.Submittable())
	assert.True(t, RollbackForm{Current: "v1", Target: "v2"}.Submittable())
}

func TestRollbackConfirmedAndSent(t *testing.T) {
	h, c := newHarness(t, deployer)

	out, err := c.Rollback(context.Background(), RollbackForm{App: "shop", Env: "prod", Current: "v1", Target: "v2"})
	require.NoError(t, err)
	assert.True(t, out.Done)
	require.Len(t, h.prompts, 1)
	assert.Equal(t, models.RollbackRequest{AppName: "shop", Env: "prod", TargetVersion: "v2"}, h.api.last)
	assert.Equal(t, []Listing{ListApps}, h.refreshed)
	assert.Equal(t, "shop prod changed to v2", out.Message)
}

func TestReplicaBoundsAndComponent(t *testing.T) {
	h, c := newHarness(t, deployer)
	ctx := context.Background()

	_, err := c.ChangeReplica(ctx, ReplicaForm{App: "shop", Env: "prod", Current: 2, Desired: 11})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	out, err := c.ChangeReplica(ctx, ReplicaForm{App: "shop", Env: "prod", Component: "worker", Current: 2, Desired: 4})
	require.NoError(t, err)
	assert.True(t, out.Done)
	req := h.api.last.(models.ReplicaRequest)
	assert.Equal(t, "worker", req.ComponentName)
	assert.Equal(t, 4, req.Replicas)
}

func TestCustomBounds(t *testing.T) {
	f := ReplicaForm{Current: 0, Desired: 15}
	assert.False(t, f.Submittable(DefaultBounds))
	assert.True(t, f.Submittable(Bounds{ReplicaMax: 20}))
}

func TestFailureKeepsDialogRetryable(t *testing.T) {
	h, c := newHarness(t, admin)
	h.api.err = &client.APIError{Status: http.StatusConflict, Message: "rollout in progress"}

	out, err := c.Restart(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, out.Retryable)
	assert.Equal(t, "rollout in progress", out.Message)
	assert.Empty(t, h.refreshed, "no re-fetch after a failure")
	assert.Equal(t, []string{"restart:error"}, h.observed)

	toasts := h.toasts.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Error, toasts[0].Level)
	assert.Equal(t, "rollout in progress", toasts[0].Message)
	assert.Equal(t, 0, h.expired)
}

func TestFailureFallbackAndExpiry(t *testing.T) {
	h, c := newHarness(t, admin)
	h.api.err = &client.APIError{Status: http.StatusUnauthorized}

	out, err := c.EditManifest(context.Background(), ManifestForm{Ref: ref, Content: "kind: Deployment\n"})
	require.Error(t, err)
	assert.Equal(t, "update failed", out.Message)
	assert.Equal(t, 1, h.expired)

	h.api.err = &client.TransportError{Op: "PUT", Err: errors.New("refused")}
	out, _ = c.EditManifest(context.Background(), ManifestForm{Ref: ref, Content: "kind: Deployment\n"})
	assert.Equal(t, client.MsgUnreachable, out.Message)
}

func TestManifestValidation(t *testing.T) {
	assert.False(t, ManifestForm{Content: "   \n"}.Submittable())
	assert.False(t, ManifestForm{Content: "kind: [unclosed"}.Submittable())
	assert.False(t, ManifestForm{Content: "~"}.Submittable())
	assert.True(t, ManifestForm{Content: "apiVersion: apps/v1\nkind: Deployment\n"}.Submittable())
}

func TestPreconfirmed(t *testing.T) {
	api := &fakeAPI{}
	c := New(api, admin, &notify.Recorder{}, Preconfirmed(false), nil, Options{})
	out, err := c.Restart(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Empty(t, api.calls)

	c = New(api, admin, &notify.Recorder{}, Preconfirmed(true), nil, Options{})
	out, err = c.Restart(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, out.Done)
}
