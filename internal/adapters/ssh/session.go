// Package ssh holds the single connection to the managed host and runs shell
// commands over it.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	"github.com/melih/containerpilot/internal/config"
	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

const (
	ptyTerm = "xterm"
	ptyRows = 40
	ptyCols = 80
)

type dialFunc func(network, addr string, cfg *gossh.ClientConfig) (*gossh.Client, error)

// Session implements ports.RemoteExecutor on top of one lazily dialed SSH client.
type Session struct {
	cfg    config.SSHConfig
	logger zerolog.Logger
	dial   dialFunc

	mu     sync.Mutex
	client *gossh.Client
	group  singleflight.Group
}

var _ ports.RemoteExecutor = (*Session)(nil)

// NewSession creates a disconnected session. Nothing is validated or dialed
// until the first command.
func NewSession(cfg config.SSHConfig, logger zerolog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger.With().Str("component", "ssh").Logger(),
		dial:   gossh.Dial,
	}
}

// Connected reports whether a live client is held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// EnsureConnected dials the host unless a connection is already held.
// Concurrent callers share a single dial.
func (s *Session) EnsureConnected(ctx context.Context) error {
	_, err := s.connect(ctx)
	return err
}

func (s *Session) connect(ctx context.Context) (*gossh.Client, error) {
	s.mu.Lock()
	if c := s.client; c != nil {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan("connect", func() (any, error) {
		s.mu.Lock()
		if c := s.client; c != nil {
			s.mu.Unlock()
			return c, nil
		}
		s.mu.Unlock()

		c, err := s.dialHost()
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.client = c
		s.mu.Unlock()

		go s.watch(c)
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gossh.Client), nil
	}
}

func (s *Session) dialHost() (*gossh.Client, error) {
	clientCfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.port()))
	s.logger.Debug().Str("addr", addr).Str("user", s.cfg.Username).Msg("dialing")

	c, err := s.dial("tcp", addr, clientCfg)
	if err != nil {
		if isAuthFailure(err) {
			return nil, domain.NewAuthenticationError(err)
		}
		return nil, err
	}

	s.logger.Info().Str("addr", addr).Msg("connected")
	return c, nil
}

// watch drops the client once the connection is gone so the next call redials.
func (s *Session) watch(c *gossh.Client) {
	err := c.Wait()
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
	s.logger.Info().Err(err).Msg("connection closed")
}

func (s *Session) port() int {
	if s.cfg.Port == 0 {
		return 22
	}
	return s.cfg.Port
}

// Run executes cmd on the managed host.
func (s *Session) Run(ctx context.Context, cmd string) (domain.CommandResult, error) {
	return s.run(ctx, cmd, false)
}

// RunTTY executes cmd with a pseudo-terminal attached.
func (s *Session) RunTTY(ctx context.Context, cmd string) (domain.CommandResult, error) {
	return s.run(ctx, cmd, true)
}

func (s *Session) run(ctx context.Context, cmd string, tty bool) (domain.CommandResult, error) {
	if _, ok := ctx.Deadline(); !ok && s.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}

	client, err := s.connect(ctx)
	if err != nil {
		return domain.CommandResult{}, err
	}

	sess, err := client.NewSession()
	if err != nil {
		s.drop(client)
		return domain.CommandResult{}, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	if tty {
		modes := gossh.TerminalModes{
			gossh.ECHO:          0,
			gossh.TTY_OP_ISPEED: 14400,
			gossh.TTY_OP_OSPEED: 14400,
		}
		if err := sess.RequestPty(ptyTerm, ptyRows, ptyCols, modes); err != nil {
			return domain.CommandResult{}, fmt.Errorf("failed to request pty: %w", err)
		}
	}

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(gossh.SIGKILL)
		_ = sess.Close()
		s.logger.Warn().Str("cmd", cmd).Dur("elapsed", time.Since(start)).Msg("command cancelled")
		return domain.CommandResult{}, ctx.Err()
	case err = <-done:
	}

	res := domain.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *gossh.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("remote command failed: %w", err)
		}
		res.ExitCode = exitErr.ExitStatus()
	}

	s.logger.Debug().
		Str("cmd", cmd).
		Bool("tty", tty).
		Int("exit_code", res.ExitCode).
		Dur("elapsed", time.Since(start)).
		Msg("command finished")
	return res, nil
}

func (s *Session) drop(c *gossh.Client) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
	_ = c.Close()
}

// Close closes the connection, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
