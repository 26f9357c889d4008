package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/melih/containerpilot/internal/adapters/builder"
	"github.com/melih/containerpilot/internal/adapters/docker"
	"github.com/melih/containerpilot/internal/adapters/ssh"
	"github.com/melih/containerpilot/internal/config"
	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
	"github.com/melih/containerpilot/internal/core/services"
	"github.com/melih/containerpilot/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var (
	configFile string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "containerpilot",
	Short: "Provision SSH containers on a remote docker host",
	Long: `containerpilot creates and removes SSH-accessible containers on a single
remote host by running the docker CLI over SSH. It can serve an HTTP API or be
driven directly from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(v, configFile); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "set log level (e.g. info, debug, warn)")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey).(*config.Config)
}

// stack is the wired object graph shared by serve and the one-shot commands.
type stack struct {
	cfg         *config.Config
	logger      zerolog.Logger
	session     *ssh.Session
	provisioner *services.Provisioner
	builder     *builder.Adapter
}

// newStack wires the object graph. Logs go to logOut, never to the command's
// stdout.
func newStack(cfg *config.Config, views ports.ViewRevalidator, logOut io.Writer) *stack {
	log := logger.SetupLogger(&cfg.Logging, logOut)
	session := ssh.NewSession(cfg.SSH, log)
	runtime := docker.NewAdapter(session, cfg.Docker.Image, log)

	return &stack{
		cfg:     cfg,
		logger:  log,
		session: session,
		provisioner: services.NewProvisioner(runtime, views, services.Options{
			BasePort:       cfg.Docker.BasePort,
			LogsTail:       cfg.Docker.LogsTail,
			Username:       cfg.SSH.Username,
			InstallTimeout: cfg.SSH.InstallTimeout,
		}, log),
		builder: builder.NewBuilderAdapter(session, views, log),
	}
}

func (s *stack) Close() {
	if err := s.session.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("closing session")
	}
}

// noViews is used by one-shot commands, which keep no cached listings.
type noViews struct{}

func (noViews) Revalidate(...domain.View) {}
