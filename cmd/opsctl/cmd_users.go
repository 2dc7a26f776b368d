package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/pkg/models"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Users, groups and permissions", Annotations: pageAnn(authz.PageUsers)}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := mgr.Client().Users(cmd.Context())
			if err != nil {
				return failed(err, "failed to load users")
			}
			printResult(users, func(w io.Writer) {
				row(w, "ID", "USER", "DEPARTMENT", "ROLE", "ACTIVE", "GROUPS")
				for _, u := range users {
					row(w, u.ID, u.UserID, u.Department, u.Role, u.IsActive, joinInts(u.Groups))
				}
			})
			return nil
		},
	}

	permsCmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the permission catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := mgr.Client().Permissions(cmd.Context())
			if err != nil {
				return failed(err, "failed to load permissions")
			}
			printResult(perms, func(w io.Writer) {
				row(w, "ID", "TYPE", "TARGET", "ACTION")
				for _, p := range perms {
					row(w, p.ID, p.Type, p.Target, p.Action)
				}
			})
			return nil
		},
	}

	cmd.AddCommand(listCmd, userCreateCmd(), userUpdateCmd(), userDeleteCmd(), groupsCmd(), permsCmd)
	return cmd
}

func validRole(role string) error {
	if role != models.RoleAdmin && role != models.RoleUser {
		return fmt.Errorf("role must be %s or %s", models.RoleAdmin, models.RoleUser)
	}
	return nil
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Add a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CreateUserRequest{UserID: args[0]}
			req.Department, _ = cmd.Flags().GetString("department")
			req.Role, _ = cmd.Flags().GetString("role")
			if err := validRole(req.Role); err != nil {
				return err
			}
			groups, _ := cmd.Flags().GetString("groups")
			ids, err := parseIDs(groups)
			if err != nil {
				return err
			}
			req.Groups = ids
			if req.Password, err = readPassword("Initial password: "); err != nil {
				return err
			}
			if req.Password == "" {
				return errors.New("password is required")
			}
			return mutate(cmd.Context(), "failed to add user", func(ctx context.Context) (string, error) {
				u, err := mgr.Client().CreateUser(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("user %s added (id %d)", u.UserID, u.ID), nil
			})
		},
	}
	cmd.Flags().String("department", "", "Department")
	cmd.Flags().String("role", models.RoleUser, "Role: admin or user")
	cmd.Flags().String("groups", "", "Comma-separated permission group ids")
	return cmd
}

func userUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's department, role, active flag or groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "user")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "department", "role", "active", "groups"); err != nil {
				return err
			}
			req := models.UpdateUserRequest{
				Department: stringFlag(cmd, "department"),
				Role:       stringFlag(cmd, "role"),
				IsActive:   boolFlag(cmd, "active"),
			}
			if req.Role != nil {
				if err := validRole(*req.Role); err != nil {
					return err
				}
			}
			if g := stringFlag(cmd, "groups"); g != nil {
				if req.Groups, err = parseIDs(*g); err != nil {
					return err
				}
			}
			return mutate(cmd.Context(), "failed to update user", func(ctx context.Context) (string, error) {
				u, err := mgr.Client().UpdateUser(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("user %s updated", u.UserID), nil
			})
		},
	}
	cmd.Flags().String("department", "", "Department")
	cmd.Flags().String("role", "", "Role: admin or user")
	cmd.Flags().Bool("active", true, "Whether the account may sign in")
	cmd.Flags().String("groups", "", "Comma-separated permission group ids")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "user")
			if err != nil {
				return err
			}
			if u := mgr.User(); u != nil && u.ID == id {
				return errors.New("you cannot delete your own account")
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("user %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete user", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("user %d deleted", id), mgr.Client().DeleteUser(ctx, id)
			})
		},
	}
}

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Permission groups"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List permission groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := mgr.Client().Groups(cmd.Context())
			if err != nil {
				return failed(err, "failed to load groups")
			}
			printResult(groups, func(w io.Writer) {
				row(w, "ID", "NAME", "PERMISSIONS", "MEMBERS", "DESCRIPTION")
				for _, g := range groups {
					row(w, g.ID, g.Name, joinInts(g.Permissions), len(g.Members), g.Description)
				}
			})
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a permission group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.GroupRequest{Name: args[0]}
			req.Description, _ = cmd.Flags().GetString("description")
			perms, _ := cmd.Flags().GetString("permissions")
			ids, err := parseIDs(perms)
			if err != nil {
				return err
			}
			req.Permissions = ids
			return mutate(cmd.Context(), "failed to add group", func(ctx context.Context) (string, error) {
				g, err := mgr.Client().CreateGroup(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("group %s added (id %d)", g.Name, g.ID), nil
			})
		},
	}
	createCmd.Flags().String("description", "", "Description")
	createCmd.Flags().String("permissions", "", "Comma-separated permission ids")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a permission group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "group")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "name", "description", "permissions"); err != nil {
				return err
			}
			req := models.GroupRequest{
				Name:        orEmpty(stringFlag(cmd, "name")),
				Description: orEmpty(stringFlag(cmd, "description")),
			}
			if p := stringFlag(cmd, "permissions"); p != nil {
				if req.Permissions, err = parseIDs(*p); err != nil {
					return err
				}
			}
			return mutate(cmd.Context(), "failed to update group", func(ctx context.Context) (string, error) {
				g, err := mgr.Client().UpdateGroup(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("group %s updated", g.Name), nil
			})
		},
	}
	updateCmd.Flags().String("name", "", "Name")
	updateCmd.Flags().String("description", "", "Description")
	updateCmd.Flags().String("permissions", "", "Comma-separated permission ids, replacing the current set")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a permission group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "group")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("group %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete group", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("group %d deleted", id), mgr.Client().DeleteGroup(ctx, id)
			})
		},
	}

	cmd.AddCommand(listCmd, createCmd, updateCmd, deleteCmd)
	return cmd
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "audit",
		Short:       "Browse the audit log",
		Annotations: pageAnn(authz.PageAudit),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := client.AuditFilter{}
			f.StartDate, _ = cmd.Flags().GetString("from")
			f.EndDate, _ = cmd.Flags().GetString("to")
			f.UserID, _ = cmd.Flags().GetInt("user")
			f.Menu, _ = cmd.Flags().GetString("menu")
			f.Action, _ = cmd.Flags().GetString("action")
			f.Page, _ = cmd.Flags().GetInt("page")
			f.PageSize, _ = cmd.Flags().GetInt("page-size")

			page, err := mgr.Client().AuditLogs(cmd.Context(), f)
			if err != nil {
				return failed(err, "failed to load audit logs")
			}
			printResult(page, func(w io.Writer) {
				row(w, "TIME", "USER", "MENU", "ACTION", "TARGET", "RESULT", "IP")
				for _, l := range page.Items {
					row(w, l.CreatedAt, l.UserName, l.Menu, l.Action, l.TargetType+"/"+l.TargetName, l.Result, l.IPAddress)
				}
				fmt.Fprintf(w, "\npage %d of %d (%d entries)\n", page.Page, page.TotalPages, page.Total)
			})
			return nil
		},
	}
	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().Int("user", 0, "User id")
	cmd.Flags().String("menu", "", "Menu")
	cmd.Flags().String("action", "", "Action")
	cmd.Flags().Int("page", 1, "Page")
	cmd.Flags().Int("page-size", 20, "Entries per page")
	return cmd
}
