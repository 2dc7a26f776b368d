package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/org/opsconsole/internal/authz"
	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/internal/notify"
	"github.com/org/opsconsole/internal/session"
)

// Command annotations. annPage names the console page a command belongs
// to; annAccess marks commands that skip the page guard.
const (
	annPage   = "page"
	annAccess = "access"

	accessPublic  = "public"  // no session needed
	accessSession = "session" // signed in, password change not yet required
)

// errReported is returned when the failure was already shown as a toast.
var errReported = errors.New("reported")

var (
	api       *client.Client
	mgr       *session.Manager
	toasts    *notify.Center
	assumeYes bool
	logLevel  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operations console CLI",
		Long:          "A command-line console for applications, Kubernetes clusters, servers and audit logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadConfig()
			setupLogging()
			return startSession(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if toasts != nil {
				toasts.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
	root.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	root.AddCommand(configCmd())
	root.AddCommand(loginCmd(), logoutCmd(), passwdCmd(), homeCmd())
	root.AddCommand(appsCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(k8sCmd())
	root.AddCommand(serversCmd())
	root.AddCommand(ansibleCmd())
	root.AddCommand(auditCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			printError(err.Error())
		}
		stop()
		os.Exit(1)
	}
}

func setupLogging() {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// startSession builds the client, restores the stored session and runs the
// route guard for the command's page.
func startSession(cmd *cobra.Command) error {
	base, err := client.ResolveBase(cfg.Address)
	if err != nil {
		return err
	}
	api, err = client.New(client.Config{BaseURL: base, CACert: cfg.TLSCACert})
	if err != nil {
		return err
	}

	var store session.Store = session.FileStore{Path: session.DefaultPath()}
	if tok := os.Getenv("OPSCTL_TOKEN"); tok != "" {
		ms := &session.MemoryStore{}
		ms.Save(session.State{Token: tok}) //nolint:errcheck
		store = ms
	}
	mgr = session.NewManager(api, store)
	mgr.OnExpire(func() { printError("session expired, run `opsctl login`") })

	toasts = notify.NewCenter(0)
	toasts.Subscribe(notify.Printer(os.Stderr))

	access := annotation(cmd, annAccess)
	if access == accessPublic {
		return nil
	}
	if _, err := mgr.Restore(cmd.Context()); err != nil {
		var tErr *client.TransportError
		if errors.As(err, &tErr) {
			return errors.New(client.MsgUnreachable)
		}
	}
	if access == accessSession {
		if !mgr.Current().Authenticated() {
			return errors.New("not signed in, run `opsctl login`")
		}
		return nil
	}
	return guardCommand(annotation(cmd, annPage))
}

// guardCommand turns a guard redirect into an error that says what to do.
func guardCommand(page string) error {
	if page == "" {
		page = authz.PageHome
	}
	d := guard.Evaluate(mgr.Phase(), mgr.User(), page)
	if d.Allowed() {
		return nil
	}
	switch d.Location {
	case guard.LoginPath:
		return errors.New("not signed in, run `opsctl login`")
	case guard.ChangePasswordPath:
		return errors.New("password change required, run `opsctl passwd`")
	default:
		return fmt.Errorf("no access to %s", page)
	}
}

// annotation finds key on cmd or its nearest ancestor.
func annotation(cmd *cobra.Command, key string) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v, ok := c.Annotations[key]; ok {
			return v
		}
	}
	return ""
}

func pageAnn(page string) map[string]string { return map[string]string{annPage: page} }

func accessAnn(access string) map[string]string { return map[string]string{annAccess: access} }
