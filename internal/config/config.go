package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SSHConfig holds the connection details of the managed host.
type SSHConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	KeyPassphrase  string        `mapstructure:"key_passphrase"`
	KnownHostsPath string        `mapstructure:"known_hosts_path"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	InstallTimeout time.Duration `mapstructure:"install_timeout"`
}

// DockerConfig holds settings for containers created on the managed host.
type DockerConfig struct {
	Image    string `mapstructure:"image"`
	BasePort int    `mapstructure:"base_port"`
	LogsTail int    `mapstructure:"logs_tail"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Listen   string        `mapstructure:"listen"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the top-level configuration struct.
type Config struct {
	SSH     SSHConfig     `mapstructure:"ssh"`
	Docker  DockerConfig  `mapstructure:"docker"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"log"`
}

// EnvFiles are loaded in order before the environment is read. Variables that
// are already set are never overridden, so earlier files win.
var EnvFiles = []string{".env.local", ".env"}

// InitConfig sets defaults, loads dotenv files and reads the optional config file.
// An empty configFile means config.yaml in the working directory, if present.
func InitConfig(v *viper.Viper, configFile string) error {
	for _, f := range EnvFiles {
		// Missing files are fine; everything can come from the real environment.
		_ = godotenv.Load(f)
	}

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// ssh.host -> SSH_HOST, docker.base_port -> DOCKER_BASE_PORT, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ssh.host", "")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.username", "")
	v.SetDefault("ssh.password", "")
	v.SetDefault("ssh.private_key_path", "")
	v.SetDefault("ssh.key_passphrase", "")
	v.SetDefault("ssh.known_hosts_path", "")
	v.SetDefault("ssh.connect_timeout", 10*time.Second)
	v.SetDefault("ssh.command_timeout", 2*time.Minute)
	v.SetDefault("ssh.install_timeout", 15*time.Minute)
	v.SetDefault("docker.image", "rastasheep/ubuntu-sshd:18.04")
	v.SetDefault("docker.base_port", 2200)
	v.SetDefault("docker.logs_tail", 200)
	v.SetDefault("http.listen", ":3000")
	v.SetDefault("http.cache_ttl", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load unmarshals the configuration into the Config struct.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that must be sound before the process starts.
// SSH credentials are checked by the session on first use.
func (c *Config) Validate() error {
	if c.Docker.Image == "" {
		return errors.New("docker.image must not be empty")
	}
	if _, err := reference.ParseNormalizedNamed(c.Docker.Image); err != nil {
		return fmt.Errorf("docker.image %q: %w", c.Docker.Image, err)
	}
	if c.Docker.BasePort <= 0 || c.Docker.BasePort >= 65535 {
		return fmt.Errorf("docker.base_port %d out of range", c.Docker.BasePort)
	}
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port %d out of range", c.SSH.Port)
	}
	if c.Docker.LogsTail <= 0 {
		c.Docker.LogsTail = 200
	}
	return nil
}
