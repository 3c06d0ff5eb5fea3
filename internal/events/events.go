// Package events announces processed turns to other processes over Redis
// pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/tutor"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "lessonloop:turns"

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, tutor.TurnEvent) error { return nil }

// RedisPublisher publishes turn events as JSON on a Redis channel.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to addr and checks the connection.
func NewRedisPublisher(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisPublisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     logger.OrNop(log).With("component", "events"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Publish sends ev on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev tutor.TurnEvent) error {
	raw, err := Encode(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Watch calls onEvent for every event on the channel until ctx is done.
// Payloads that do not decode are logged and skipped.
func (p *RedisPublisher) Watch(ctx context.Context, onEvent func(tutor.TurnEvent)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := Decode([]byte(m.Payload))
			if err != nil {
				p.log.Warn("bad turn event payload", "error", err)
				continue
			}
			onEvent(ev)
		}
	}
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Encode serializes an event for the wire.
func Encode(ev tutor.TurnEvent) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode turn event: %w", err)
	}
	return raw, nil
}

// Decode parses an event published by Encode.
func Decode(raw []byte) (tutor.TurnEvent, error) {
	var ev tutor.TurnEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return tutor.TurnEvent{}, fmt.Errorf("decode turn event: %w", err)
	}
	return ev, nil
}
