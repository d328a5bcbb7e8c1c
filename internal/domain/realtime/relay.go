package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	opDeliver   = "deliver"
	opBroadcast = "broadcast"
	opJoin      = "join"
	opLeave     = "leave"

	publishTimeout = 2 * time.Second
)

// Envelope carries one hub operation between instances.
type Envelope struct {
	Op      string `json:"op"`
	Origin  string `json:"origin"`
	Target  string `json:"target"`
	Payer   string `json:"payer,omitempty"`
	Exclude string `json:"exclude,omitempty"`
	Event   *Event `json:"event,omitempty"`
}

type Relay interface {
	Publish(env Envelope) error
}

// RedisRelay fans hub operations out over a redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, log *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRelay) Publish(env Envelope) error {
	env.Origin = r.origin
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run applies envelopes published by other instances until ctx ends.
func (r *RedisRelay) Run(ctx context.Context, apply func(Envelope)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, skip, err := r.decode([]byte(msg.Payload))
			if err != nil {
				r.log.Warn("relay decode failed", zap.Error(err))
				continue
			}
			if !skip {
				apply(env)
			}
		}
	}
}

// decode parses a relayed envelope and reports whether it came from this
// instance.
func (r *RedisRelay) decode(payload []byte) (Envelope, bool, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, false, err
	}
	return env, env.Origin == r.origin, nil
}
