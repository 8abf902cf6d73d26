// Package config reads the service settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultPort is used when HTTP_PORT is not set or is not a valid port number
const DefaultPort = 4000

type Config struct {
	// Port is kept as text since an invalid value is not an error - see ListenPort
	Port            string        `env:"HTTP_PORT"`
	Host            string        `env:"HTTP_HOST"`
	Path            string        `env:"GRAPHQL_PATH" envDefault:"/graphql"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Introspection   bool          `env:"GRAPHQL_INTROSPECTION" envDefault:"true"`

	// Websocket timings
	WSInitTimeout   time.Duration `env:"WS_INIT_TIMEOUT" envDefault:"10s"`
	WSPingFrequency time.Duration `env:"WS_PING_FREQUENCY" envDefault:"20s"`
	WSPongTimeout   time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"5s"`
}

// Load reads variables from the .env files (if any) into the environment then parses the config.
// A missing file is not an error.
func Load(filenames ...string) (*Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		log.Println("[Config] No .env file found, using the environment")
	}
	return Parse()
}

// Parse gets the config from environment variables, using defaults for any not set
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("GRAPHQL_PATH cannot be empty")
	}
	// braces are wildcards in a ServeMux pattern
	if strings.ContainsAny(c.Path, " ?#{}") {
		return fmt.Errorf("GRAPHQL_PATH %q is not a valid path", c.Path)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"WS_INIT_TIMEOUT", c.WSInitTimeout},
		{"WS_PING_FREQUENCY", c.WSPingFrequency},
		{"WS_PONG_TIMEOUT", c.WSPongTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.value)
		}
	}
	return nil
}

// ListenPort returns the port number, or DefaultPort if HTTP_PORT is missing, not a number, zero or out of range
func (c *Config) ListenPort() int {
	port, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || port <= 0 || port > 65535 {
		return DefaultPort
	}
	return port
}

// Addr is the address to listen on (host may be empty for all interfaces)
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ListenPort()))
}

// URL is where clients can send queries (as shown in the startup message)
func (c *Config) URL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.ListenPort())) + c.Path
}
