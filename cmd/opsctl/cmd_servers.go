package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/org/opsconsole/internal/action"
	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/bulk"
	"github.com/org/opsconsole/internal/live"
	"github.com/org/opsconsole/pkg/models"
)

func serversCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "servers", Short: "Registered servers", Annotations: pageAnn(authz.PageServers)}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := models.ServerFilter{}
			f.GroupID, _ = cmd.Flags().GetInt("group")
			f.Status, _ = cmd.Flags().GetString("status")
			f.Search, _ = cmd.Flags().GetString("search")
			servers, err := mgr.Client().Servers(cmd.Context(), f)
			if err != nil {
				return failed(err, "failed to load servers")
			}
			printResult(servers, func(w io.Writer) {
				row(w, "ID", "HOSTNAME", "IP", "PORT", "USER", "GROUP", "STATUS", "CHECKED")
				for _, s := range servers {
					row(w, s.ID, s.Hostname, s.IPAddress, s.SSHPort, s.SSHUsername, orDash(s.GroupName), s.Status, orDash(s.LastCheckedAt))
				}
			})
			return nil
		},
	}
	listCmd.Flags().Int("group", 0, "Group id")
	listCmd.Flags().String("status", "", "Status")
	listCmd.Flags().String("search", "", "Hostname or IP substring")

	bulkCmd := &cobra.Command{
		Use:   "bulk <file|->",
		Short: "Register servers from a pasted CSV or TSV table",
		Long: "Register servers from comma- or tab-separated text. A header row naming\n" +
			"hostname, ip, port, user and password columns is optional; without one the\n" +
			"columns are taken in that order. Port defaults to 22 and user to root.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			var groupID *int
			if cmd.Flags().Changed("group") {
				g, _ := cmd.Flags().GetInt("group")
				groupID = &g
			}
			batch := bulk.NewBatch(text, groupID)
			if len(batch.Rows) == 0 {
				return errors.New("no rows could be parsed")
			}
			printBulkRows(batch.Rows)

			ok, err := confirmer().Confirm(cmd.Context(), action.Prompt{
				Title:   "Register servers",
				Message: fmt.Sprintf("Register %d of %d rows?", batch.ValidCount(), len(batch.Rows)),
			})
			if err != nil {
				return err
			}
			if !ok {
				printSuccess("cancelled")
				return nil
			}

			sum, err := batch.Submit(cmd.Context(), mgr.Client(), func(i int, r *bulk.Row) {
				switch r.Status {
				case bulk.Success:
					fmt.Fprintf(os.Stderr, "[%d] %s registered (id %d)\n", i+1, r.Hostname, r.ServerID)
				case bulk.Error:
					fmt.Fprintf(os.Stderr, "[%d] %s failed: %s\n", i+1, r.Hostname, r.Message)
				}
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%d registered, %d failed, %d invalid", sum.Succeeded, sum.Failed, sum.Invalid))
			if !sum.Done() {
				return errReported
			}
			return nil
		},
	}
	bulkCmd.Flags().Int("group", 0, "Add the servers to this group")

	sshCmd := &cobra.Command{
		Use:   "ssh <server-id>",
		Short: "Open an SSH shell on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid server id %q", args[0])
			}
			return runInteractive(cmd.Context(), live.SSHTarget{ServerID: id})
		},
	}

	testCmd := &cobra.Command{
		Use:   "test <server-id>...",
		Short: "Check SSH connectivity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := atois(args)
			if err != nil {
				return err
			}
			var results []models.SSHTestResult
			if len(ids) == 1 {
				r, err := mgr.Client().TestSSH(cmd.Context(), ids[0])
				if err != nil {
					return failed(err, "ssh test failed")
				}
				results = append(results, *r)
			} else {
				results, err = mgr.Client().TestSSHBulk(cmd.Context(), ids)
				if err != nil {
					return failed(err, "ssh test failed")
				}
			}
			printResult(results, func(w io.Writer) {
				row(w, "ID", "HOSTNAME", "IP", "OK", "MESSAGE")
				for _, r := range results {
					row(w, r.ServerID, r.Hostname, r.IPAddress, r.Success, r.Message)
				}
			})
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <group-id> <command>",
		Short: "Run a command on every server in a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid group id %q", args[0])
			}
			ok, err := confirmer().Confirm(cmd.Context(), action.Prompt{
				Title:   "Run command",
				Message: fmt.Sprintf("Run %q on every server in group %d?", args[1], gid),
				Danger:  true,
			})
			if err != nil {
				return err
			}
			if !ok {
				printSuccess("cancelled")
				return nil
			}
			results, err := mgr.Client().ExecuteOnGroup(cmd.Context(), gid, args[1])
			if err != nil {
				return failed(err, "command failed")
			}
			if outputFormat == "json" {
				printResult(results, nil)
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(stdout, "==> %s (%s) exit %d <==\n%s%s\n", r.Hostname, r.IPAddress, r.ExitCode, r.Stdout, r.Stderr)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, serverAddCmd(), serverUpdateCmd(), serverDeleteCmd(), importCmd(),
		serverGroupsCmd(), bulkCmd, sshCmd, testCmd, runCmd, metricsCmd())
	return cmd
}

func serverAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <hostname> <ip>",
		Short: "Register a server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CreateServerRequest{Hostname: args[0], IPAddress: args[1]}
			req.SSHPort, _ = cmd.Flags().GetInt("port")
			req.SSHUsername, _ = cmd.Flags().GetString("user")
			req.OSInfo, _ = cmd.Flags().GetString("os")
			req.Description, _ = cmd.Flags().GetString("description")
			req.GroupID = intFlag(cmd, "group")
			var err error
			if req.SSHPassword, err = readPassword("SSH password: "); err != nil {
				return err
			}
			if req.SSHPassword == "" {
				return errors.New("ssh password is required")
			}
			return mutate(cmd.Context(), "failed to register server", func(ctx context.Context) (string, error) {
				srv, err := mgr.Client().CreateServer(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("server %s registered (id %d)", srv.Hostname, srv.ID), nil
			})
		},
	}
	cmd.Flags().Int("port", models.DefaultSSHPort, "SSH port")
	cmd.Flags().String("user", models.DefaultSSHUser, "SSH user")
	cmd.Flags().String("os", "", "OS description")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("group", 0, "Server group id")
	return cmd
}

func serverUpdateCmd() *cobra.Command {
	fields := []string{"hostname", "ip", "port", "user", "password", "os", "description", "group"}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a server's connection details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "server")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, fields...); err != nil {
				return err
			}
			req := models.UpdateServerRequest{
				Hostname:    stringFlag(cmd, "hostname"),
				IPAddress:   stringFlag(cmd, "ip"),
				SSHPort:     intFlag(cmd, "port"),
				SSHUsername: stringFlag(cmd, "user"),
				OSInfo:      stringFlag(cmd, "os"),
				Description: stringFlag(cmd, "description"),
				GroupID:     intFlag(cmd, "group"),
			}
			if change, _ := cmd.Flags().GetBool("password"); change {
				pw, err := readPassword("New SSH password: ")
				if err != nil {
					return err
				}
				if pw != "" {
					req.SSHPassword = &pw
				}
			}
			return mutate(cmd.Context(), "failed to update server", func(ctx context.Context) (string, error) {
				srv, err := mgr.Client().UpdateServer(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("server %s updated", srv.Hostname), nil
			})
		},
	}
	cmd.Flags().String("hostname", "", "Hostname")
	cmd.Flags().String("ip", "", "IP address")
	cmd.Flags().Int("port", 0, "SSH port")
	cmd.Flags().String("user", "", "SSH user")
	cmd.Flags().Bool("password", false, "Prompt for a new SSH password")
	cmd.Flags().String("os", "", "OS description")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().Int("group", 0, "Server group id")
	return cmd
}

func serverDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "server")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("server %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete server", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("server %d deleted", id), mgr.Client().DeleteServer(ctx, id)
			})
		},
	}
}

// importEntry is one server in an import file.
type importEntry struct {
	Hostname    string `yaml:"hostname"`
	IP          string `yaml:"ip"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	OS          string `yaml:"os"`
	Description string `yaml:"description"`
}

// parseImport reads a YAML list of servers and applies the port and user
// defaults. Every entry needs a hostname and an IP.
func parseImport(data []byte, groupID *int) ([]models.CreateServerRequest, error) {
	var entries []importEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	reqs := make([]models.CreateServerRequest, 0, len(entries))
	for i, e := range entries {
		if e.Hostname == "" || e.IP == "" {
			return nil, fmt.Errorf("entry %d: %w", i+1, bulk.ErrMissingHost)
		}
		if e.Port == 0 {
			e.Port = models.DefaultSSHPort
		}
		if e.User == "" {
			e.User = models.DefaultSSHUser
		}
		reqs = append(reqs, models.CreateServerRequest{
			Hostname:    e.Hostname,
			IPAddress:   e.IP,
			SSHPort:     e.Port,
			SSHUsername: e.User,
			SSHPassword: e.Password,
			OSInfo:      e.OS,
			Description: e.Description,
			GroupID:     groupID,
		})
	}
	return reqs, nil
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Register servers from a YAML list in one request",
		Long: "Register every server in a YAML list in a single backend call. Each entry takes\n" +
			"hostname, ip, port, user, password, os and description; port defaults to 22\n" +
			"and user to root. Unlike bulk, the backend accepts or rejects the list as a whole.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			reqs, err := parseImport([]byte(text), intFlag(cmd, "group"))
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return errors.New("import file lists no servers")
			}
			var created []models.Server
			err = mutate(cmd.Context(), "import failed", func(ctx context.Context) (string, error) {
				created, err = mgr.Client().BulkCreateServers(ctx, reqs)
				return fmt.Sprintf("%d servers registered", len(created)), err
			})
			if err != nil {
				return err
			}
			printResult(created, func(w io.Writer) {
				row(w, "ID", "HOSTNAME", "IP")
				for _, s := range created {
					row(w, s.ID, s.Hostname, s.IPAddress)
				}
			})
			return nil
		},
	}
	cmd.Flags().Int("group", 0, "Add the servers to this group")
	return cmd
}

func serverGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Server groups"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List server groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := mgr.Client().ServerGroups(cmd.Context())
			if err != nil {
				return failed(err, "failed to load server groups")
			}
			printResult(groups, func(w io.Writer) {
				row(w, "ID", "NAME", "SERVERS", "DESCRIPTION")
				for _, g := range groups {
					row(w, g.ID, g.Name, g.ServerCount, g.Description)
				}
			})
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.ServerGroupRequest{Name: args[0]}
			req.Description, _ = cmd.Flags().GetString("description")
			return mutate(cmd.Context(), "failed to add server group", func(ctx context.Context) (string, error) {
				g, err := mgr.Client().CreateServerGroup(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("server group %s added (id %d)", g.Name, g.ID), nil
			})
		},
	}
	createCmd.Flags().String("description", "", "Description")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or describe a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "server group")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "name", "description"); err != nil {
				return err
			}
			req := models.ServerGroupRequest{
				Name:        orEmpty(stringFlag(cmd, "name")),
				Description: orEmpty(stringFlag(cmd, "description")),
			}
			return mutate(cmd.Context(), "failed to update server group", func(ctx context.Context) (string, error) {
				g, err := mgr.Client().UpdateServerGroup(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("server group %s updated", g.Name), nil
			})
		},
	}
	updateCmd.Flags().String("name", "", "Name")
	updateCmd.Flags().String("description", "", "Description")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a server group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "server group")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("server group %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete server group", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("server group %d deleted", id), mgr.Client().DeleteServerGroup(ctx, id)
			})
		},
	}

	cmd.AddCommand(listCmd, createCmd, updateCmd, deleteCmd)
	return cmd
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "metrics", Short: "Prometheus sources and server metrics"}

	targetsCmd := &cobra.Command{
		Use:   "targets <source-id>",
		Short: "List a source's scrape targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			targets, err := mgr.Client().MetricTargets(cmd.Context(), id)
			if err != nil {
				return failed(err, "failed to load targets")
			}
			printResult(targets, func(w io.Writer) {
				row(w, "INSTANCE", "JOB", "HEALTH", "SERVER")
				for _, t := range targets {
					row(w, t.Instance, t.Job, t.Health, orDash(t.MatchedHostname))
				}
			})
			return nil
		},
	}

	testCmd := &cobra.Command{
		Use:   "test <source-id>",
		Short: "Check that a metric source answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			msg, err := mgr.Client().TestMetricSource(cmd.Context(), id)
			if err != nil {
				toasts.Error(failed(err, "connection test failed").Error())
				return errReported
			}
			toasts.Success(msg.Message)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <source-id> <ip>",
		Short: "Print the latest CPU, memory and disk values for a host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			rng, _ := cmd.Flags().GetString("range")
			m, err := mgr.Client().ServerMetrics(cmd.Context(), id, args[1], rng)
			if err != nil {
				return failed(err, "failed to load metrics")
			}
			printResult(m, func(w io.Writer) {
				row(w, "METRIC", "LATEST", "SAMPLES")
				row(w, "cpu", latest(m.CPU), len(m.CPU))
				row(w, "memory", latest(m.Memory), len(m.Memory))
				row(w, "disk", latest(m.Disk), len(m.Disk))
			})
			return nil
		},
	}
	showCmd.Flags().String("range", "1h", "Range, e.g. 1h, 6h, 24h")

	cmd.AddCommand(metricSourcesCmd(), targetsCmd, testCmd, showCmd)
	return cmd
}

func metricSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sources", Short: "Metric sources"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List metric sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := mgr.Client().MetricSources(cmd.Context())
			if err != nil {
				return failed(err, "failed to load metric sources")
			}
			printResult(srcs, func(w io.Writer) {
				row(w, "ID", "NAME", "URL", "ACTIVE")
				for _, s := range srcs {
					row(w, s.ID, s.Name, s.URL, s.IsActive)
				}
			})
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Register a Prometheus endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSourceURL(args[1]); err != nil {
				return err
			}
			active := true
			req := models.MetricSourceRequest{Name: args[0], URL: args[1], IsActive: &active}
			req.Description, _ = cmd.Flags().GetString("description")
			return mutate(cmd.Context(), "failed to add metric source", func(ctx context.Context) (string, error) {
				src, err := mgr.Client().CreateMetricSource(ctx, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("metric source %s added (id %d)", src.Name, src.ID), nil
			})
		},
	}
	addCmd.Flags().String("description", "", "Description")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a metric source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "source")
			if err != nil {
				return err
			}
			if err := requireChange(cmd, "name", "url", "description", "active"); err != nil {
				return err
			}
			req := models.MetricSourceRequest{
				Name:        orEmpty(stringFlag(cmd, "name")),
				URL:         orEmpty(stringFlag(cmd, "url")),
				Description: orEmpty(stringFlag(cmd, "description")),
				IsActive:    boolFlag(cmd, "active"),
			}
			if req.URL != "" {
				if err := checkSourceURL(req.URL); err != nil {
					return err
				}
			}
			return mutate(cmd.Context(), "failed to update metric source", func(ctx context.Context) (string, error) {
				src, err := mgr.Client().UpdateMetricSource(ctx, id, req)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("metric source %s updated", src.Name), nil
			})
		},
	}
	updateCmd.Flags().String("name", "", "Name")
	updateCmd.Flags().String("url", "", "Prometheus URL")
	updateCmd.Flags().String("description", "", "Description")
	updateCmd.Flags().Bool("active", true, "Whether the source is queried")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a metric source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argID(args[0], "source")
			if err != nil {
				return err
			}
			if ok, err := confirmDelete(cmd.Context(), fmt.Sprintf("metric source %d", id)); err != nil || !ok {
				return err
			}
			return mutate(cmd.Context(), "failed to delete metric source", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("metric source %d deleted", id), mgr.Client().DeleteMetricSource(ctx, id)
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, updateCmd, deleteCmd)
	return cmd
}

func checkSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid source url %q, expected e.g. http://prometheus:9090", raw)
	}
	return nil
}

func latest(series []models.Sample) string {
	if len(series) == 0 {
		return "-"
	}
	return fmt.Sprint(series[len(series)-1][1])
}

func printBulkRows(rows []*bulk.Row) {
	printResult(rows, func(w io.Writer) {
		row(w, "#", "HOSTNAME", "IP", "PORT", "USER", "PASSWORD")
		for i, r := range rows {
			pw := ""
			if r.SSHPassword != "" {
				pw = "set"
			}
			row(w, i+1, r.Hostname, r.IPAddress, r.SSHPort, r.SSHUsername, pw)
		}
	})
}

func readInput(name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(name)
	return string(data), err
}

func atois(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		out[i] = n
	}
	return out, nil
}
