package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/action"
)

// mutate runs a create, update or delete call and reports the result as a
// toast. call returns the success message.
func mutate(ctx context.Context, fallback string, call func(context.Context) (string, error)) error {
	msg, err := call(ctx)
	if err != nil {
		toasts.Error(failed(err, fallback).Error())
		return errReported
	}
	toasts.Success(msg)
	return nil
}

// confirmDelete asks before a delete. A declined prompt prints "cancelled".
func confirmDelete(ctx context.Context, what string) (bool, error) {
	ok, err := confirmer().Confirm(ctx, action.Prompt{
		Title:   "Delete",
		Message: fmt.Sprintf("Delete %s? This cannot be undone.", what),
		Danger:  true,
	})
	if err == nil && !ok {
		printSuccess("cancelled")
	}
	return ok, err
}

func argID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

// parseIDs reads a comma-separated id list. An empty string is an empty list.
func parseIDs(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// The *Flag helpers return nil for flags that were not given, so update
// requests only carry what the user changed.

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

// requireChange fails unless at least one of names was given.
func requireChange(cmd *cobra.Command, names ...string) error {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return nil
		}
	}
	return fmt.Errorf("nothing to change, use one of --%s", strings.Join(names, ", --"))
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
