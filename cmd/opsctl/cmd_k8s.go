package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/live"
	"github.com/org/opsconsole/internal/poll"
	"github.com/org/opsconsole/pkg/models"
)

func k8sCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "k8s", Short: "Kubernetes clusters", Annotations: pageAnn(authz.PageK8s)}
	cmd.PersistentFlags().Bool("watch", false, "Re-fetch on the listing's polling interval until interrupted")

	clustersCmd := &cobra.Command{
		Use:   "clusters",
		Short: "List clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrWatch(cmd, poll.NewKey(poll.Clusters),
				func(ctx context.Context) (*models.ClusterList, error) { return mgr.Client().Clusters(ctx) },
				printClusters)
		},
	}

	nodesCmd := &cobra.Command{
		Use:   "nodes <context>",
		Short: "List the nodes of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrWatch(cmd, poll.NewKey(poll.Nodes, args[0]),
				func(ctx context.Context) ([]models.NodeInfo, error) { return mgr.Client().Nodes(ctx, args[0]) },
				printNodes)
		},
	}

	namespacesCmd := &cobra.Command{
		Use:   "namespaces <context>",
		Short: "List the namespaces of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrWatch(cmd, poll.NewKey(poll.Namespaces, args[0]),
				func(ctx context.Context) ([]models.NamespaceInfo, error) { return mgr.Client().Namespaces(ctx, args[0]) },
				printNamespaces)
		},
	}

	deploymentsCmd := &cobra.Command{
		Use:   "deployments <context> <namespace>",
		Short: "List the deployments of a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOrWatch(cmd, poll.NewKey(poll.Deployments, args[0], args[1]),
				func(ctx context.Context) ([]models.DeploymentInfo, error) {
					return mgr.Client().Deployments(ctx, args[0], args[1])
				},
				printDeployments)
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe <context> <namespace> <deployment>",
		Short: "Describe a deployment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := mgr.Client().DescribeDeployment(cmd.Context(), refOf(args))
			if err != nil {
				return failed(err, "failed to describe deployment")
			}
			fmt.Fprintln(stdout, out)
			return nil
		},
	}

	podsCmd := &cobra.Command{
		Use:   "pods <context> <namespace> <deployment>",
		Short: "List a deployment's pods",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pods, err := mgr.Client().DeploymentPods(cmd.Context(), refOf(args))
			if err != nil {
				return failed(err, "failed to load pods")
			}
			printResult(pods, func(w io.Writer) {
				row(w, "POD", "STATUS", "CONTAINERS")
				for _, p := range pods {
					names := make([]string, len(p.Containers))
					for i, c := range p.Containers {
						names[i] = c.Name
					}
					row(w, p.Name, p.Status, strings.Join(names, ","))
				}
			})
			return nil
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs <context> <namespace> <deployment>",
		Short: "Print recent logs of every pod in a deployment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tail, _ := cmd.Flags().GetInt("tail")
			logs, err := mgr.Client().DeploymentLogs(cmd.Context(), refOf(args), tail)
			if err != nil {
				return failed(err, "failed to load logs")
			}
			if outputFormat == "json" {
				printResult(logs, nil)
				return nil
			}
			for _, p := range logs.Pods {
				fmt.Fprintf(stdout, "==> %s/%s (%s) <==\n%s\n", p.PodName, p.ContainerName, p.Status, p.Logs)
			}
			return nil
		},
	}
	logsCmd.Flags().Int("tail", 100, "Lines per pod")

	scaleCmd := &cobra.Command{
		Use:   "scale <context> <namespace> <deployment>",
		Short: "Set a deployment's replica count",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("replicas")
			ref := refOf(args)
			d, err := mgr.Client().Deployment(cmd.Context(), ref)
			if err != nil {
				return failed(err, "failed to load deployment")
			}
			return finishAction(newCoordinator(refreshDeployments(ref)).Scale(cmd.Context(), action.ScaleForm{
				Ref:     ref,
				Current: d.Replicas,
				Desired: n,
			}))
		},
	}
	scaleCmd.Flags().Int("replicas", 0, "Desired replica count")
	scaleCmd.MarkFlagRequired("replicas") //nolint:errcheck

	restartCmd := &cobra.Command{
		Use:   "restart <context> <namespace> <deployment>",
		Short: "Trigger a rolling restart",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := refOf(args)
			return finishAction(newCoordinator(refreshDeployments(ref)).Restart(cmd.Context(), ref))
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit <context> <namespace> <deployment>",
		Short: "Edit a deployment manifest in $EDITOR",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := refOf(args)
			manifest, err := mgr.Client().DeploymentYAML(cmd.Context(), ref)
			if err != nil {
				return failed(err, "failed to load manifest")
			}
			edited, err := editInEditor(ref.Name, manifest)
			if err != nil {
				return err
			}
			if edited == manifest {
				printSuccess("no changes")
				return nil
			}
			return finishAction(newCoordinator(refreshDeployments(ref)).EditManifest(cmd.Context(), action.ManifestForm{
				Ref:     ref,
				Content: edited,
			}))
		},
	}

	execCmd := &cobra.Command{
		Use:   "exec <context> <namespace> <pod>",
		Short: "Open a shell in a pod",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _ := cmd.Flags().GetString("container")
			return runInteractive(cmd.Context(), live.ExecTarget{
				Context:   args[0],
				Namespace: args[1],
				Pod:       args[2],
				Container: container,
			})
		},
	}
	execCmd.Flags().StringP("container", "c", "", "Container name")

	cmd.AddCommand(clustersCmd, nodesCmd, namespacesCmd, deploymentsCmd, describeCmd, podsCmd,
		logsCmd, scaleCmd, restartCmd, editCmd, execCmd)
	return cmd
}

func refOf(args []string) models.DeploymentRef {
	return models.DeploymentRef{Context: args[0], Namespace: args[1], Name: args[2]}
}

func refreshDeployments(ref models.DeploymentRef) action.Refresher {
	return func(ctx context.Context, _ action.Listing) error {
		ds, err := mgr.Client().Deployments(ctx, ref.Context, ref.Namespace)
		if err != nil {
			return err
		}
		printDeployments(ds)
		return nil
	}
}

// listOrWatch prints one listing, or with --watch keeps re-printing it on
// the resource's interval until the command is interrupted.
func listOrWatch[T any](cmd *cobra.Command, key poll.Key, fetch func(context.Context) (T, error), render func(T)) error {
	if watch, _ := cmd.Flags().GetBool("watch"); !watch {
		v, err := fetch(cmd.Context())
		if err != nil {
			return failed(err, "failed to load "+key.Resource)
		}
		render(v)
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sched := poll.New(poll.Options{})
	defer sched.Close()

	var fatal error
	stop := poll.Watch(sched, key, 0, fetch, func(v T, err error) {
		if outputFormat != "json" {
			fmt.Fprint(stdout, "\x1b[H\x1b[2J")
		}
		if err != nil {
			printError(client.Message(err, "failed to load "+key.Resource))
			if client.IsUnauthorized(err) {
				fatal = failed(err, "session expired")
				cancel()
			}
			return
		}
		render(v)
	})
	defer stop()

	<-ctx.Done()
	return fatal
}

func editInEditor(name, content string) (string, error) {
	f, err := os.CreateTemp("", "opsctl-"+filepath.Base(name)+"-*.yaml")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	f.Close()

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	var stderr bytes.Buffer
	c := exec.Command(editor, f.Name())
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, &stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("running %s: %w: %s", editor, err, strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func usage(u *models.ResourceUsage) string {
	if u == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", u.Percentage)
}

func printClusters(l *models.ClusterList) {
	printResult(l, func(w io.Writer) {
		row(w, "NAME", "CONTEXT", "STATUS", "NODES", "CPU", "MEMORY")
		for _, c := range l.Clusters {
			nodes := "-"
			if c.Nodes != nil {
				nodes = fmt.Sprintf("%d/%d", c.Nodes.Ready, c.Nodes.Total)
			}
			row(w, c.Name, c.Context, c.Status, nodes, usage(c.CPU), usage(c.Memory))
		}
	})
}

func printNodes(nodes []models.NodeInfo) {
	printResult(nodes, func(w io.Writer) {
		row(w, "NAME", "STATUS", "ROLES", "CPU", "MEMORY", "CREATED")
		for _, n := range nodes {
			row(w, n.Name, n.Status, strings.Join(n.Roles, ","), usage(n.CPU), usage(n.Memory), orDash(n.CreatedAt))
		}
	})
}

func printNamespaces(nss []models.NamespaceInfo) {
	printResult(nss, func(w io.Writer) {
		row(w, "NAME", "STATUS", "PODS", "CPU", "MEMORY", "CREATED")
		for _, n := range nss {
			row(w, n.Name, n.Status, n.PodCount, n.CPUUsage, n.MemoryUsage, orDash(n.CreatedAt))
		}
	})
}

func printDeployments(ds []models.DeploymentInfo) {
	printResult(ds, func(w io.Writer) {
		row(w, "NAME", "READY", "AVAILABLE", "STATUS", "IMAGE", "UPDATED")
		for _, d := range ds {
			row(w, d.Name, fmt.Sprintf("%d/%d", d.ReadyReplicas, d.Replicas), d.AvailableReplicas,
				d.Status, orDash(d.Image), orDash(d.UpdatedAt))
		}
	})
}
