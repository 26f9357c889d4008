package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melih/containerpilot/internal/core/domain"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List containers on the remote host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		containers, err := s.provisioner.ListContainers(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderContainers(containers, s.cfg.SSH.Host))
		return nil
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List images on the remote host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		images, err := s.provisioner.ListImages(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderImages(images))
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an SSH container on the next free port",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		res, err := s.provisioner.CreateContainer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := reportResult(cmd, res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n  ssh -p %d root@%s\n",
			res.Name, shortID(res.ID), res.Port, s.cfg.SSH.Host)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <container>",
	Short: "Force-remove a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		res, err := s.provisioner.DeleteContainer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := reportResult(cmd, res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var rmiCmd = &cobra.Command{
	Use:   "rmi <image>",
	Short: "Force-remove an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		res, err := s.provisioner.DeleteImage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := reportResult(cmd, res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var logsTail int

var logsCmd = &cobra.Command{
	Use:   "logs <container>",
	Short: "Show the last log lines of a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		out, err := s.provisioner.GetContainerLogs(cmd.Context(), args[0], logsTail)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var (
	buildRef   string
	buildImage string
)

var buildCmd = &cobra.Command{
	Use:   "build <repo-url>",
	Short: "Build an image on the remote host from a git repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		image, err := s.builder.BuildImage(cmd.Context(), args[0], buildRef, buildImage)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Built %s\n", image)
		return nil
	},
}

var installDockerCmd = &cobra.Command{
	Use:   "install-docker",
	Short: "Install Docker on the remote host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStack(configFrom(cmd), noViews{}, cmd.ErrOrStderr())
		defer s.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Installing Docker on %s, this can take several minutes...\n", s.cfg.SSH.Host)
		res, err := s.provisioner.InstallDocker(cmd.Context())
		if err != nil {
			return err
		}
		if err := reportResult(cmd, res); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Docker installed")
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 0, "number of lines to show (default from docker.logs_tail)")
	buildCmd.Flags().StringVar(&buildRef, "ref", "", "branch, tag or commit to build (default: remote HEAD)")
	buildCmd.Flags().StringVar(&buildImage, "image", "", "image name, optionally with tag (default: repository name)")

	rootCmd.AddCommand(psCmd, imagesCmd, createCmd, rmCmd, rmiCmd, logsCmd, buildCmd, installDockerCmd)
}

// reportResult prints a warning for successful results and turns failed ones into an error.
func reportResult(cmd *cobra.Command, res domain.ActionResult) error {
	if !res.Success {
		return errors.New(res.Error)
	}
	if res.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("warning: "+res.Warning))
	}
	return nil
}
