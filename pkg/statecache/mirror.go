// Package statecache mirrors the latest focus state and mood into Redis so
// other processes can read them without talking to the daemon.
package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teslashibe/go-focuspet/pkg/focus"
	"github.com/teslashibe/go-focuspet/pkg/mood"
)

// Keys
const (
	StateKey = "focuspet:state"
	MoodKey  = "focuspet:mood"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string        `json:"addr" mapstructure:"addr"`
	Password string        `json:"password" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

// DefaultConfig returns a local Redis with a short TTL, so a dead daemon's
// state expires on its own.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  30 * time.Second,
	}
}

// Mirror writes the latest values to Redis.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New creates a mirror. It does not connect until first use.
func New(cfg Config) *Mirror {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Mirror{client: client, ttl: cfg.TTL}
}

// Ping checks the connection.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *Mirror) key(k string) string {
	return m.prefix + k
}

// PublishState stores s as JSON.
func (m *Mirror) PublishState(ctx context.Context, s focus.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key(StateKey), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", StateKey, err)
	}
	return nil
}

// PublishMood stores the mood name.
func (m *Mirror) PublishMood(ctx context.Context, md mood.Mood) error {
	if err := m.client.Set(ctx, m.key(MoodKey), md.String(), m.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", MoodKey, err)
	}
	return nil
}

// Latest reads both keys. Missing keys yield zero values.
func (m *Mirror) Latest(ctx context.Context) (focus.State, mood.Mood, error) {
	var (
		state focus.State
		md    mood.Mood
	)

	data, err := m.client.Get(ctx, m.key(StateKey)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return state, md, err
	default:
		if err := json.Unmarshal(data, &state); err != nil {
			return state, md, fmt.Errorf("decode %s: %w", StateKey, err)
		}
	}

	name, err := m.client.Get(ctx, m.key(MoodKey)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return state, md, err
	default:
		if md, err = mood.ParseMood(name); err != nil {
			return state, md, fmt.Errorf("decode %s: %w", MoodKey, err)
		}
	}

	return state, md, nil
}

// Close closes the Redis client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
