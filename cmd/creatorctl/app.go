package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/session"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const (
	defaultServer      = "http://localhost:8080"
	defaultSessionFile = ".creatorctl/session.yml"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "creatorctl",
		Usage: "drive a creator dashboard session from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "base URL of the dashboard server",
				Value:   defaultServer,
				EnvVars: []string{"CREATOR_SERVER"},
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "file the session tokens are kept in (default ~/" + defaultSessionFile + ")",
				EnvVars: []string{"CREATORCTL_SESSION"},
			},
			&cli.BoolFlag{
				Name:  "secure",
				Usage: "mark stored tokens as secure",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: session.DefaultRequestTimeout,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log background failures",
			},
		},
		Commands: []*cli.Command{
			signupCommand(),
			otpCommand(),
			loginCommand(),
			profileCommand(),
			couponsCommand(),
			ordersCommand(),
			summaryCommand(),
			gateCommand(),
			logoutCommand(),
		},
	}
}

// env is the per-invocation session: one manager over the file token store.
type env struct {
	api     *session.APIClient
	store   *session.FileStore
	manager *session.Manager
	out     io.Writer
}

func sessionPath(c *cli.Context) (string, error) {
	if p := c.String("session"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, defaultSessionFile), nil
}

func newEnv(c *cli.Context) (*env, error) {
	path, err := sessionPath(c)
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if !c.Bool("verbose") {
		level = zerolog.Disabled
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter, TimeFormat: time.Kitchen}).Level(level)

	store := session.NewFileStore(path, c.Bool("secure"))
	api := session.NewAPIClient(c.String("server"), store, session.WithRequestTimeout(c.Duration("timeout")))

	out := c.App.Writer
	manager := session.NewManager(api, store,
		session.WithLogger(log),
		session.WithNavigator(session.NavigatorFunc(func(path string) {
			fmt.Fprintf(out, "signed out, continue at %s\n", path)
		})),
	)

	return &env{api: api, store: store, manager: manager, out: out}, nil
}

// run builds the env, runs fn and waits for background work to settle.
func run(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.manager.Close()
		return fn(c, e)
	}
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
