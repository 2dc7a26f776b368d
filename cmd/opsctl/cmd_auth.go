package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/session"
)

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Show or change CLI settings", Annotations: accessAnn(accessPublic)}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := client.ResolveBase(cfg.Address)
			if err != nil {
				return err
			}
			printResult(map[string]any{"address": cfg.Address, "api": base, "config": configPath(), "state": session.DefaultPath()}, func(w io.Writer) {
				row(w, "address", cfg.Address)
				row(w, "api", base)
				row(w, "config", configPath())
				row(w, "state", session.DefaultPath())
			})
			return nil
		},
	}

	setAddrCmd := &cobra.Command{
		Use:   "set-address <console-url>",
		Short: "Set the console URL, e.g. https://ops.example.com/prod/console/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.ResolveBase(args[0]); err != nil {
				return err
			}
			cfg.Address = args[0]
			if err := saveConfig(); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			printSuccess("address set to " + args[0])
			return nil
		},
	}

	cmd.AddCommand(showCmd, setAddrCmd)
	return cmd
}

// --- login / logout / passwd ---

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "login [id]",
		Short:       "Sign in",
		Args:        cobra.MaximumNArgs(1),
		Annotations: accessAnn(accessPublic),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) > 0 {
				id = args[0]
			} else {
				var err error
				if id, err = readLine("ID: "); err != nil {
					return err
				}
			}
			pw, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if id == "" || pw == "" {
				return errors.New("id and password are required")
			}

			s, err := mgr.Login(cmd.Context(), id, pw)
			if err != nil {
				if s.Authenticated() {
					// Signed in, but the token could not be stored.
					printError("could not save session: " + err.Error())
				} else {
					return errors.New(client.Message(err, "login failed"))
				}
			}
			printSuccess("signed in as " + s.User.UserID)
			if !s.User.PasswordChanged {
				printSuccess("a password change is required, run `opsctl passwd`")
			}
			return nil
		},
	}
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out and forget the stored token",
		Annotations: accessAnn(accessPublic),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.Logout(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			printSuccess("signed out")
			return nil
		},
	}
}

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "passwd",
		Short:       "Change your password",
		Annotations: accessAnn(accessSession),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := readPassword("Current password: ")
			if err != nil {
				return err
			}
			next, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm new password: ")
			if err != nil {
				return err
			}
			if _, err := mgr.ChangePassword(cmd.Context(), current, next, confirm); err != nil {
				return failed(err, "password change failed")
			}
			printSuccess("password changed")
			return nil
		},
	}
}

// --- home ---

func homeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "home",
		Aliases:     []string{"whoami"},
		Short:       "Show the signed-in user and the pages they can open",
		Annotations: pageAnn(authz.PageHome),
		RunE: func(cmd *cobra.Command, args []string) error {
			if toggle, _ := cmd.Flags().GetBool("toggle-compact"); toggle {
				if _, err := mgr.ToggleSidebar(); err != nil {
					return fmt.Errorf("saving preference: %w", err)
				}
			}
			u := mgr.User()
			pages := authz.AccessiblePages(u)
			compact := mgr.SidebarCollapsed()
			printResult(map[string]any{"user": u, "menu": pages, "compact": compact}, func(w io.Writer) {
				row(w, "USER", u.UserID)
				row(w, "DEPARTMENT", u.Department)
				row(w, "ROLE", u.Role)
				fmt.Fprintln(w)
				if compact {
					for _, p := range pages {
						row(w, p.ID)
					}
					return
				}
				row(w, "PAGE", "TITLE", "COMMAND")
				for _, p := range pages {
					row(w, p.ID, p.Label, "opsctl "+p.ID)
				}
			})
			return nil
		},
	}
	cmd.Flags().Bool("toggle-compact", false, "Toggle the compact menu preference")
	return cmd
}
