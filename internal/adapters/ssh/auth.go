package ssh

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/skeema/knownhosts"
	gossh "golang.org/x/crypto/ssh"

	"github.com/melih/containerpilot/internal/core/domain"
)

const missingDetails = "Missing SSH connection details. Please set SSH_HOST, SSH_USERNAME, " +
	"and either SSH_PASSWORD or SSH_PRIVATE_KEY_PATH."

// clientConfig validates the configured credentials and turns them into an
// ssh.ClientConfig. The key is offered before the password when both are set.
func (s *Session) clientConfig() (*gossh.ClientConfig, error) {
	cfg := s.cfg
	if cfg.Host == "" || cfg.Username == "" || (cfg.Password == "" && cfg.PrivateKeyPath == "") {
		return nil, domain.NewConfigurationError(missingDetails)
	}

	var auth []gossh.AuthMethod
	if cfg.PrivateKeyPath != "" {
		signer, err := loadSigner(cfg.PrivateKeyPath, cfg.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, gossh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, gossh.Password(cfg.Password))
	}

	clientCfg := &gossh.ClientConfig{
		User:    cfg.Username,
		Auth:    auth,
		Timeout: cfg.ConnectTimeout,
	}

	if cfg.KnownHostsPath != "" {
		path, err := homedir.Expand(cfg.KnownHostsPath)
		if err != nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("invalid known hosts path %q: %v", cfg.KnownHostsPath, err))
		}
		db, err := knownhosts.NewDB(path)
		if err != nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("cannot read known hosts file %s: %v", path, err))
		}
		clientCfg.HostKeyCallback = db.HostKeyCallback()
		clientCfg.HostKeyAlgorithms = db.HostKeyAlgorithms(net.JoinHostPort(cfg.Host, strconv.Itoa(s.port())))
	} else {
		s.logger.Warn().Str("host", cfg.Host).Msg("host key verification disabled; set SSH_KNOWN_HOSTS_PATH to enable it")
		clientCfg.HostKeyCallback = gossh.InsecureIgnoreHostKey()
	}

	return clientCfg, nil
}

// loadSigner reads a private key, expanding a leading "~". Unreadable or
// missing files are reported with the resolved path.
func loadSigner(keyPath, passphrase string) (gossh.Signer, error) {
	resolved, err := homedir.Expand(keyPath)
	if err != nil {
		return nil, domain.NewKeyNotFoundError(keyPath, err)
	}

	pemBytes, err := os.ReadFile(resolved)
	if err != nil {
		return nil, domain.NewKeyNotFoundError(resolved, err)
	}

	var signer gossh.Signer
	if passphrase != "" {
		signer, err = gossh.ParsePrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	} else {
		signer, err = gossh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, domain.NewConfigurationError(fmt.Sprintf("cannot parse private key %s: %v", resolved, err))
	}
	return signer, nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}
