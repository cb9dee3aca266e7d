// Package cache provides a Redis-backed cache module. The module connects
// asynchronously: the bootstrap continues once the server answers a PING, and
// fails when it does not within the module start timeout.
package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/modboot"
)

// Defaults.
const (
	DefaultURL         = "redis://localhost:6379/0"
	DefaultTTL         = 5 * time.Minute
	DefaultKeyPrefix   = "modboot:"
	DefaultPoolSize    = 10
	DefaultDialTimeout = 2 * time.Second
)

// Config defines the configuration of the cache module.
//
//	config:
//	  url: redis://cache:6379/0
//	  password: secret
//	  keyPrefix: "shop:"
//	  defaultTTL: 10m
//	  announce: true
type Config struct {
	URL         string
	Password    string
	DB          int
	PoolSize    int
	KeyPrefix   string
	DefaultTTL  time.Duration
	DialTimeout time.Duration

	// Announce records the bootstrap (id, env, started modules) under
	// <keyPrefix>app:<id> when app.started is published.
	Announce bool
}

// ConfigFrom reads the module config.
func ConfigFrom(cfg modboot.Config) Config {
	return Config{
		URL:         cfg.String("url", DefaultURL),
		Password:    cfg.String("password", ""),
		DB:          cfg.Int("db", -1),
		PoolSize:    cfg.Int("poolSize", DefaultPoolSize),
		KeyPrefix:   cfg.String("keyPrefix", DefaultKeyPrefix),
		DefaultTTL:  cfg.Duration("defaultTTL", DefaultTTL),
		DialTimeout: cfg.Duration("dialTimeout", DefaultDialTimeout),
		Announce:    cfg.Bool("announce", false),
	}
}

// RedisOptions builds the client options: the URL first, explicit settings
// on top.
func (c Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if c.DB >= 0 {
		opts.DB = c.DB
	}
	if c.Password != "" {
		opts.Password = c.Password
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	return opts, nil
}
