// Package main provides the entry point for oauth-precommit, a command line client that
// signs a developer in through the OAuth 2.0 Authorization Code flow with PKCE and keeps
// the issued tokens in a private local file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/buildinfo"
	"github.com/antman-dev/oauth-precommit/internal/cmd"
	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/logging"
	"github.com/antman-dev/oauth-precommit/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

type rootOptions struct {
	configPath string
	envFile    string
	debug      bool

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logging.CloseLogOutputs()

	if err == nil {
		return
	}
	if exitErr, ok := errors.AsType[*cmd.ExitError](err); ok {
		os.Exit(exitErr.Code)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "oauth-precommit",
		Short:         "Sign in with OAuth 2.0 + PKCE and keep the tokens locally",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return opts.load()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "optional YAML config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment (ignored when missing)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(opts),
		newStatusCmd(opts),
		newLogoutCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() error {
	cfg, err := config.LoadConfig(o.configPath, o.envFile)
	if err != nil {
		return err
	}
	if o.debug {
		cfg.Debug = true
	}
	util.SetLogLevel(cfg)
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Warnf("falling back to stderr logging: %v", err)
	}
	o.cfg = cfg
	return nil
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	var (
		opts    cmd.LoginOptions
		timeout time.Duration
	)
	c := &cobra.Command{
		Use:   "login",
		Short: "Authorize in the browser and store the issued tokens",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			opts.Timeout = timeout
			opts.Out = c.OutOrStdout()
			return cmd.DoLogin(c.Context(), root.cfg, &opts)
		},
	}
	fs := c.Flags()
	fs.BoolVar(&opts.NoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	fs.IntVar(&opts.CallbackPort, "callback-port", 0, "override the loopback callback port")
	fs.DurationVar(&timeout, "timeout", 0, "how long to wait for the browser redirect (default from config)")
	fs.BoolVar(&opts.Manual, "manual", false, "offer to paste the callback URL if the redirect cannot reach this machine")
	fs.BoolVar(&opts.CopyURL, "copy-url", false, "copy the authorization URL to the clipboard")
	return c
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a token record is stored (exit 1 when not logged in)",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.DoStatus(c.Context(), root.cfg, c.OutOrStdout())
		},
	}
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored token record",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.DoLogout(c.Context(), root.cfg, c.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(c *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(c.OutOrStdout(), "oauth-precommit Version: %s, Commit: %s, BuiltAt: %s\n",
				buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		},
	}
}
