package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/modboot"
	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// Module is a Redis cache shared with other modules through required or
// optional dependencies.
type Module struct {
	mu       sync.RWMutex
	config   Config
	client   *redis.Client
	logger   modboot.Logger
	announce *eventbus.Subscription
}

// NewModule creates a cache module.
func NewModule() *Module {
	return &Module{}
}

// DefaultConfig returns the module defaults.
func (m *Module) DefaultConfig() modboot.Config {
	return modboot.Config{
		"url":        DefaultURL,
		"keyPrefix":  DefaultKeyPrefix,
		"defaultTTL": DefaultTTL.String(),
		"announce":   false,
	}
}

// SetUp creates the client. No connection is made until Start.
func (m *Module) SetUp(app *modboot.Application, d *modboot.Descriptor) error {
	config := ConfigFrom(d.Config())
	opts, err := config.RedisOptions()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = config
	m.client = redis.NewClient(opts)
	m.logger = d.Logger()
	m.mu.Unlock()

	if config.Announce {
		sub, err := app.Subscribe(lifecycle.TopicAppStarted, func(_ string, payload any) error {
			event, ok := payload.(lifecycle.AppStartedEvent)
			if !ok {
				return nil
			}
			return m.announceBootstrap(event, app.StartedModules())
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", lifecycle.TopicAppStarted, err)
		}
		m.announce = sub
	}
	return nil
}

// Start pings the server; completion is signalled once it answers.
func (m *Module) Start() modboot.Starter {
	return modboot.AsyncStart(func(app *modboot.Application, _ *modboot.Descriptor, done func(error)) {
		ctx, cancel := context.WithTimeout(context.Background(), app.Options().ModuleStartTimeout)
		defer cancel()

		client := m.Client()
		if err := client.Ping(ctx).Err(); err != nil {
			done(fmt.Errorf("failed to connect to Redis: %w", err))
			return
		}
		m.logger.Info("Connected to Redis", "addr", client.Options().Addr, "db", client.Options().DB)
		done(nil)
	})
}

// Client returns the underlying Redis client.
func (m *Module) Client() *redis.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Key returns key with the configured prefix.
func (m *Module) Key(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.KeyPrefix + key
}

// Set stores value as JSON. A non-positive ttl uses the default TTL.
func (m *Module) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	client, err := m.connected(key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := client.Set(ctx, m.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Get decodes the JSON value stored under key into dest. It reports false
// when the key does not exist.
func (m *Module) Get(ctx context.Context, key string, dest any) (bool, error) {
	client, err := m.connected(key)
	if err != nil {
		return false, err
	}

	data, err := client.Get(ctx, m.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Delete removes keys.
func (m *Module) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	client, err := m.connected(keys...)
	if err != nil {
		return err
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = m.Key(key)
	}
	if err := client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", strings.Join(keys, ", "), err)
	}
	return nil
}

// Stop closes the client.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	client, sub := m.client, m.announce
	m.client, m.announce = nil, nil
	m.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	return nil
}

func (m *Module) connected(keys ...string) (*redis.Client, error) {
	for _, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
	}
	client := m.Client()
	if client == nil {
		return nil, ErrNotConnected
	}
	return client, nil
}

func (m *Module) announceBootstrap(event lifecycle.AppStartedEvent, modules []string) error {
	client := m.Client()
	if client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
	defer cancel()

	key := m.Key("app:" + event.ID)
	err := client.HSet(ctx, key,
		"env", event.Env,
		"modules", strings.Join(modules, " "),
		"startupMs", event.Time.Milliseconds(),
		"startedAt", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to announce bootstrap: %w", err)
	}
	m.logger.Debug("Announced bootstrap", "key", key)
	return nil
}
