package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/pkg/models"
)

func appsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apps", Short: "Deployed applications", Annotations: pageAnn(authz.PageApps)}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List applications and their deployed versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := mgr.Client().Apps(cmd.Context())
			if err != nil {
				return failed(err, "failed to load applications")
			}
			printApps(apps)
			return nil
		},
	}

	tagsCmd := &cobra.Command{
		Use:   "tags <app>",
		Short: "List deployable versions of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			tags, err := mgr.Client().AppTags(cmd.Context(), args[0], env)
			if err != nil {
				return failed(err, "failed to load versions")
			}
			printResult(tags, func(w io.Writer) {
				row(w, "TAG", "CREATED")
				for _, t := range tags {
					row(w, t.Tag, t.CreatedAt)
				}
			})
			return nil
		},
	}
	tagsCmd.Flags().String("env", "", "Environment")
	tagsCmd.MarkFlagRequired("env") //nolint:errcheck

	rollbackCmd := &cobra.Command{
		Use:   "rollback <app>",
		Short: "Deploy another version of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			to, _ := cmd.Flags().GetString("to")
			cur, err := findApp(cmd.Context(), args[0], env)
			if err != nil {
				return err
			}
			return finishAction(newCoordinator(refreshApps).Rollback(cmd.Context(), action.RollbackForm{
				App:     cur.AppName,
				Env:     cur.Env,
				Current: cur.DeployVersion,
				Target:  to,
			}))
		},
	}
	rollbackCmd.Flags().String("env", "", "Environment")
	rollbackCmd.Flags().String("to", "", "Target version")
	rollbackCmd.MarkFlagRequired("env") //nolint:errcheck
	rollbackCmd.MarkFlagRequired("to")  //nolint:errcheck

	replicaCmd := &cobra.Command{
		Use:   "replica <app>",
		Short: "Change the replica count of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			n, _ := cmd.Flags().GetInt("replicas")
			component, _ := cmd.Flags().GetString("component")
			cur, err := findApp(cmd.Context(), args[0], env)
			if err != nil {
				return err
			}
			return finishAction(newCoordinator(refreshApps).ChangeReplica(cmd.Context(), action.ReplicaForm{
				App:       cur.AppName,
				Env:       cur.Env,
				Component: component,
				Current:   cur.ReplicaDesired,
				Desired:   n,
			}))
		},
	}
	replicaCmd.Flags().String("env", "", "Environment")
	replicaCmd.Flags().Int("replicas", 0, "Desired replica count")
	replicaCmd.Flags().String("component", "", "Component name (all components when empty)")
	replicaCmd.MarkFlagRequired("env")      //nolint:errcheck
	replicaCmd.MarkFlagRequired("replicas") //nolint:errcheck

	cmd.AddCommand(listCmd, tagsCmd, rollbackCmd, replicaCmd)
	return cmd
}

func findApp(ctx context.Context, app, env string) (*models.AppStatus, error) {
	apps, err := mgr.Client().Apps(ctx)
	if err != nil {
		return nil, failed(err, "failed to load applications")
	}
	for i := range apps {
		if apps[i].AppName == app && apps[i].Env == env {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("application %s not found in %s", app, env)
}

func refreshApps(ctx context.Context, _ action.Listing) error {
	apps, err := mgr.Client().Apps(ctx)
	if err != nil {
		return err
	}
	printApps(apps)
	return nil
}

func printApps(apps []models.AppStatus) {
	u := mgr.User()
	printResult(apps, func(w io.Writer) {
		row(w, "APP", "ENV", "VERSION", "K8S VERSION", "SYNC", "REPLICAS", "DEPLOY")
		for _, a := range apps {
			deploy := ""
			if authz.CanDeploy(u, a.AppName) {
				deploy = "yes"
			}
			row(w, a.AppName, a.Env, a.DeployVersion, a.K8sVersion, a.SyncStatus,
				fmt.Sprintf("%d/%d", a.ReplicaCurrent, a.ReplicaDesired), deploy)
		}
	})
}
