package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/live"
	"github.com/org/opsconsole/pkg/models"
)

func ansibleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ansible", Short: "Playbooks, inventories and executions", Annotations: pageAnn(authz.PageServers)}

	generateCmd := &cobra.Command{
		Use:   "generate-inventory <group-id>",
		Short: "Print an inventory generated from a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid group id %q", args[0])
			}
			content, err := mgr.Client().GenerateInventory(cmd.Context(), gid)
			if err != nil {
				return failed(err, "failed to generate inventory")
			}
			fmt.Fprint(stdout, content)
			return nil
		},
	}

	executionsCmd := &cobra.Command{
		Use:   "executions",
		Short: "List playbook executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			size, _ := cmd.Flags().GetInt("page-size")
			res, err := mgr.Client().Executions(cmd.Context(), page, size)
			if err != nil {
				return failed(err, "failed to load executions")
			}
			printResult(res, func(w io.Writer) {
				row(w, "ID", "PLAYBOOK", "STATUS", "BY", "STARTED", "FINISHED")
				for _, e := range res.Items {
					row(w, e.ID, e.PlaybookName, e.Status, e.StartedByName, e.StartedAt, orDash(e.FinishedAt))
				}
				fmt.Fprintf(w, "\npage %d of %d (%d total)\n", res.Page, res.TotalPages, res.Total)
			})
			return nil
		},
	}
	executionsCmd.Flags().Int("page", 1, "Page number")
	executionsCmd.Flags().Int("page-size", 20, "Page size")

	runCmd := &cobra.Command{
		Use:   "run <playbook-id>",
		Short: "Execute a playbook against an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid playbook id %q", args[0])
			}
			inv, _ := cmd.Flags().GetInt("inventory")
			if inv == 0 {
				return fmt.Errorf("--inventory is required")
			}
			extra, _ := cmd.Flags().GetString("extra-vars")
			exec, err := mgr.Client().ExecutePlaybook(cmd.Context(), pid, models.ExecuteRequest{InventoryID: inv, ExtraVars: extra})
			if err != nil {
				toasts.Error(failed(err, "failed to start playbook").Error())
				return errReported
			}
			toasts.Success(fmt.Sprintf("execution %d started", exec.ID))
			if follow, _ := cmd.Flags().GetBool("follow"); follow {
				return tailExecution(cmd.Context(), exec.ID)
			}
			return nil
		},
	}
	runCmd.Flags().Int("inventory", 0, "Inventory id")
	runCmd.Flags().String("extra-vars", "", "Extra variables passed to ansible-playbook")
	runCmd.Flags().BoolP("follow", "f", false, "Stream the execution log")

	tailCmd := &cobra.Command{
		Use:   "tail <execution-id>",
		Short: "Stream an execution's log until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id %q", args[0])
			}
			return tailExecution(cmd.Context(), id)
		},
	}

	cmd.AddCommand(playbooksCmd(), inventoriesCmd(), generateCmd, executionsCmd, runCmd, tailCmd)
	return cmd
}

// contentFlag reads --file, or returns nil when it was not given.
func contentFlag(cmd *cobra.Command) (*string, error) {
	name := stringFlag(cmd, "file")
	if name == nil {
		return nil, nil
	}
	text, err := readInput(*name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s is empty", *name)
	}
	return &text, nil
}

func playbooksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "playbooks", Short: "Stored playbooks"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List playbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			pbs, err := mgr.Client().Playbooks(cmd.Context())
			if err != nil {
				return failed(err, "failed to load playbooks")
			}
			printResult(pbs, func(w io.Writer) {
				row(w, "ID", "NAME", "DESCRIPTION", "UPDATED")
				for _, p := range pbs {
					row(w, p.ID, p.Name, p.Description, p.UpdatedAt)
				}
			})
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "playbook")
			if err != nil {
				return err
			}
			pb, err := mgr.Client().Playbook(cmd.Context(), id)
			if err != nil {
				return failed(err, "failed to load playbook")
			}
			printResult(pb, func(w io.Writer) { fmt.Fprint(w, pb.Content) })
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := contentFlag(cmd)
			if err != nil {
				return err
			}
			if content == nil {
				return fmt.Errorf("--file is required")
			}
			req := models.PlaybookRequest{Name: args[0], Content: *content}
			req.Description, _ = cmd.Flags().GetString("description")
			return mutate(cmd.Context(), "failed to add playbook", func(ctx context.Context) (string, error) {
				pb, err := mgr.Client().CreatePlaybook(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("playbook %s added (id %d)", pb.Name, pb.ID), nil
			})
		},
	}
	addCmd.Flags().String("file", "", "Playbook YAML file, or - for stdin")
	addCmd.Flags().String("description", "", "Description")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "playbook")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "name", "description", "file"); err != nil {
				return err
			}
			content, err := contentFlag(cmd)
			if err != nil {
				return err
			}
			req := models.PlaybookRequest{
				Name:        orEmpty(stringFlag(cmd, "name")),
				Description: orEmpty(stringFlag(cmd, "description")),
				Content:     orEmpty(content),
			}
			return mutate(cmd.Context(), "failed to update playbook", func(ctx context.Context) (string, error) {
				pb, err := mgr.Client().UpdatePlaybook(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("playbook %s updated", pb.Name), nil
			})
		},
	}
	updateCmd.Flags().String("name", "", "Name")
	updateCmd.Flags().String("description", "", "Description")
	updateCmd.Flags().String("file", "", "Replacement playbook YAML file, or - for stdin")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a playbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "playbook")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("playbook %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete playbook", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("playbook %d deleted", id), mgr.Client().DeletePlaybook(ctx, id)
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, updateCmd, deleteCmd)
	return cmd
}

func inventoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "inventories", Short: "Stored inventories"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List inventories",
		RunE: func(cmd *cobra.Command, args []string) error {
			invs, err := mgr.Client().Inventories(cmd.Context())
			if err != nil {
				return failed(err, "failed to load inventories")
			}
			printResult(invs, func(w io.Writer) {
				row(w, "ID", "NAME", "GROUP", "UPDATED")
				for _, inv := range invs {
					row(w, inv.ID, inv.Name, orDash(inv.GroupName), inv.UpdatedAt)
				}
			})
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "inventory")
			if err != nil {
				return err
			}
			inv, err := mgr.Client().Inventory(cmd.Context(), id)
			if err != nil {
				return failed(err, "failed to load inventory")
			}
			printResult(inv, func(w io.Writer) { fmt.Fprint(w, inv.Content) })
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Store an inventory from a file or generated from a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := contentFlag(cmd)
			if err != nil {
				return err
			}
			group := intFlag(cmd, "group")
			if content == nil && group == nil {
				return fmt.Errorf("one of --file or --group is required")
			}
			return mutate(cmd.Context(), "failed to add inventory", func(ctx context.Context) (string, error) {
				req := models.InventoryRequest{Name: args[0], GroupID: group, Content: orEmpty(content)}
				if content == nil {
					generated, err := mgr.Client().GenerateInventory(ctx, *group)
					if err != nil {
						return "", err
					}
					req.Content = generated
				}
				inv, err := mgr.Client().CreateInventory(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("inventory %s added (id %d)", inv.Name, inv.ID), nil
			})
		},
	}
	addCmd.Flags().String("file", "", "Inventory file, or - for stdin")
	addCmd.Flags().Int("group", 0, "Server group the inventory is generated from")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "inventory")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "name", "file", "group"); err != nil {
				return err
			}
			content, err := contentFlag(cmd)
			if err != nil {
				return err
			}
			req := models.InventoryRequest{
				Name:    orEmpty(stringFlag(cmd, "name")),
				GroupID: intFlag(cmd, "group"),
				Content: orEmpty(content),
			}
			return mutate(cmd.Context(), "failed to update inventory", func(ctx context.Context) (string, error) {
				inv, err := mgr.Client().UpdateInventory(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("inventory %s updated", inv.Name), nil
			})
		},
	}
	updateCmd.Flags().String("name", "", "Name")
	updateCmd.Flags().String("file", "", "Replacement inventory file, or - for stdin")
	updateCmd.Flags().Int("group", 0, "Server group id")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "inventory")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("inventory %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete inventory", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("inventory %d deleted", id), mgr.Client().DeleteInventory(ctx, id)
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, updateCmd, deleteCmd)
	return cmd
}

// tailExecution streams the log and reports the final status once the
// backend closes the stream.
func tailExecution(ctx context.Context, id int) error {
	var status string
	final := func(ctx context.Context) error {
		exec, err := mgr.Client().Execution(ctx, id)
		if err != nil {
			return err
		}
		status = exec.Status
		return nil
	}
	if err := live.Tail(ctx, live.NewDialer(mgr.Client()), live.AnsibleTarget{ExecutionID: id}, stdout, final); err != nil {
		return failed(err, "log stream failed")
	}
	switch status {
	case models.ExecSuccess:
		toasts.Success(fmt.Sprintf("execution %d succeeded", id))
	case "":
	default:
		toasts.Error(fmt.Sprintf("execution %d %s", id, status))
		return errReported
	}
	return nil
}
