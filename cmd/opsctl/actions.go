package main

import (
	"errors"

	"github.com/org/opsconsole/internal/action"
)

func newCoordinator(refresh action.Refresher) *action.Coordinator {
	return action.New(mgr.Client(), mgr.User(), toasts, confirmer(), refresh, action.Options{
		Bounds:         cfg.Bounds,
		OnUnauthorized: mgr.Expire,
	})
}

// finishAction maps an action result to the command's error. Backend
// failures were already printed as toasts.
func finishAction(out action.Outcome, err error) error {
	var verr *action.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, action.ErrForbidden):
		return err
	case err != nil && out.Message != "":
		return errReported
	case err != nil:
		return err
	case out.Cancelled:
		printSuccess("cancelled")
	}
	return nil
}
