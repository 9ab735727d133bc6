package statusserver

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/lab-assistant/internal/config"
	"github.com/kingrea/lab-assistant/internal/validation"
)

const (
	// DefaultHost keeps the endpoint on loopback unless configured otherwise.
	DefaultHost = "127.0.0.1"
	// DefaultPort is used when neither config.yaml nor the environment gives one.
	DefaultPort = 8765
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Environment variables read by ResolveSettings.
const (
	EnabledEnv = "LABASSISTANT_STATUS_ENABLED"
	HostEnv    = "LABASSISTANT_STATUS_HOST"
	PortEnv    = "LABASSISTANT_STATUS_PORT"
)

const (
	hostRule = "hostname_rfc1123|ip"
	portRule = "gte=1,lte=65535"
)

// Settings captures runtime configuration for the status server.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LookupFunc reads an environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// SettingsFromConfig is ResolveSettings against the process environment with
// rejected values dropped silently.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings, _ := ResolveSettings(cfg, os.LookupEnv)
	return settings
}

// ResolveSettings layers defaults, the status_server block of config.yaml and
// the LABASSISTANT_STATUS_* variables, in that order. A value that fails
// validation is skipped and the previous layer's value kept; each skip is
// reported in the returned slice.
func ResolveSettings(cfg *config.Config, lookup LookupFunc) (Settings, []error) {
	settings := Settings{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	var problems []error
	if cfg != nil {
		raw := cfg.File.StatusServer
		settings.Enabled = raw.Enabled
		if host := strings.TrimSpace(raw.Host); host != "" {
			problems = settings.setHost("status_server.host", host, problems)
		}
		if raw.Port != 0 {
			problems = settings.setPort("status_server.port", raw.Port, problems)
		}
	}
	if lookup == nil {
		return settings, problems
	}
	if value, ok := env(lookup, EnabledEnv); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %q is not a boolean", EnabledEnv, value))
		} else {
			settings.Enabled = enabled
		}
	}
	if value, ok := env(lookup, HostEnv); ok {
		problems = settings.setHost(HostEnv, value, problems)
	}
	if value, ok := env(lookup, PortEnv); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %q is not a number", PortEnv, value))
		} else {
			problems = settings.setPort(PortEnv, port, problems)
		}
	}
	return settings, problems
}

func env(lookup LookupFunc, key string) (string, bool) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (s *Settings) setHost(source, host string, problems []error) []error {
	if err := validation.Var(source, host, hostRule); err != nil {
		return append(problems, err)
	}
	s.Host = host
	return problems
}

func (s *Settings) setPort(source string, port int, problems []error) []error {
	if err := validation.Var(source, port, portRule); err != nil {
		return append(problems, err)
	}
	s.Port = port
	return problems
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
