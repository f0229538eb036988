// Command nodemapctl edits graphs on a nodemap server from the terminal.
//
// Usage:
//
//	nodemapctl [-config file] <command> [args]
//
// Commands:
//
//	register <username> <email>      create an account (password from -password or NODEMAP_PASSWORD)
//	login <username-or-email>        sign in and store the token
//	logout                           discard the stored token
//	status                           check the server
//	ls                               list graphs, favorites first
//	create <name> <goal> <desc>      create a graph
//	show <graph>                     print a graph's nodes and edges
//	drop <graph> <agent> <x> <y>     place an agent on a graph
//	connect <graph> <source> <target>
//	fav <graph>                      toggle a graph's favorite flag
//	agents                           list agent definitions
//	agent <name> <type> <model> <prompt>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
	"github.com/randalmurphal/nodemap/pkg/nodemap/config"
	"github.com/randalmurphal/nodemap/pkg/nodemap/credential"
	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
	"github.com/randalmurphal/nodemap/pkg/nodemap/remote"
)

type app struct {
	settings config.Settings
	logger   *zap.Logger
	creds    *credential.Store
	client   *remote.Client
	password string
}

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	password := flag.String("password", os.Getenv("NODEMAP_PASSWORD"), "password for login and register")
	verbose := flag.Bool("v", false, "log requests")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(*configPath, *verbose)
	if err != nil {
		fail(err)
	}
	a.password = *password
	defer func() { _ = a.logger.Sync() }()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fail(err)
	}
}

func newApp(configPath string, verbose bool) (*app, error) {
	settings, err := config.Load(configPath, ".env")
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(observability.LoggerConfig{Level: level, File: settings.Log.File})
	if err != nil {
		return nil, err
	}

	creds := credential.NewStore()
	if err := creds.LoadFile(settings.Session.CredentialFile); err != nil && !errors.Is(err, credential.ErrExpired) {
		return nil, err
	}
	client := remote.New(settings.Remote.BaseURL,
		remote.WithTimeout(settings.Remote.Timeout),
		remote.WithCredentials(creds),
		remote.WithLogger(logger),
	)
	return &app{settings: settings, logger: logger, creds: creds, client: client}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	handlers := map[string]struct {
		nargs int
		fn    func(context.Context, []string) error
	}{
		"register": {2, a.register},
		"login":    {1, a.login},
		"logout":   {0, a.logout},
		"status":   {0, a.status},
		"ls":       {0, a.list},
		"create":   {3, a.create},
		"show":     {1, a.show},
		"drop":     {4, a.drop},
		"connect":  {3, a.connect},
		"fav":      {1, a.favorite},
		"agents":   {0, a.agents},
		"agent":    {4, a.createAgent},
	}
	h, ok := handlers[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}
	if len(args) != h.nargs {
		return fmt.Errorf("%s: expected %d arguments, got %d", cmd, h.nargs, len(args))
	}
	return h.fn(ctx, args)
}

// session opens a Session and loads the graph list. Saves are immediate, so
// the debounce delay is irrelevant here.
func (a *app) session(ctx context.Context) (*nodemap.Session, error) {
	sess := nodemap.NewSession(ctx, a.client,
		nodemap.WithLogger(a.logger),
		nodemap.WithAutosaveDelay(a.settings.Canvas.AutosaveDelay),
		nodemap.WithFeedbackDuration(a.settings.Canvas.FeedbackDuration),
	)
	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	if sess.Selection().View() == nodemap.ViewAuthentication {
		sess.Close()
		return nil, errors.New("not signed in, run: nodemapctl login <user>")
	}
	return sess, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: nodemapctl [-config file] [-password pw] [-v] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands: register login logout status ls create show drop connect fav agents agent")
	flag.PrintDefaults()
}

func fail(err error) {
	msg := err.Error()
	switch remote.Categorize(err) {
	case remote.CategorySession:
		msg += " (sign in with: nodemapctl login <user>)"
	case remote.CategoryNetwork:
		msg += " (is the server running?)"
	}
	color.Red("error: %s", msg)
	os.Exit(1)
}
