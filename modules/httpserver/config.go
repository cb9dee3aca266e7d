// Package httpserver provides an HTTP server module serving a chi router.
//
// The module starts asynchronously: completion is signalled once the
// listener is bound, so a port conflict fails the bootstrap instead of
// surfacing later from a background goroutine.
package httpserver

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/GoCodeAlone/modboot"
)

// DefaultTimeout is used for every server timeout left unset.
const DefaultTimeout = 15 * time.Second

// Config defines the configuration of the HTTP server module.
//
// Example YAML configuration:
//
//	config:
//	  host: 127.0.0.1
//	  port: 8080
//	  readTimeout: 5s
//	  metricsId: metrics
type Config struct {
	// Host is the hostname or IP address to bind to.
	Host string

	// Port is the port to listen on. Zero picks a free port.
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ConfigFrom reads and validates the module config.
func ConfigFrom(cfg modboot.Config) (Config, error) {
	c := Config{
		Host:            cfg.String("host", ""),
		Port:            cfg.Int("port", 0),
		ReadTimeout:     cfg.Duration("readTimeout", 0),
		WriteTimeout:    cfg.Duration("writeTimeout", 0),
		IdleTimeout:     cfg.Duration("idleTimeout", 0),
		ShutdownTimeout: cfg.Duration("shutdownTimeout", 0),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the port range and sets default timeouts.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}

	for _, timeout := range []*time.Duration{&c.ReadTimeout, &c.WriteTimeout, &c.IdleTimeout, &c.ShutdownTimeout} {
		if *timeout <= 0 {
			*timeout = DefaultTimeout
		}
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
