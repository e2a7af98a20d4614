package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

// SSEBus fans SSE messages out across server instances over Redis pub/sub.
// The hub stays authoritative for local subscribers; the bus only forwards.
// Each entity channel ("article:<id>", "keyword_research:<id>") maps to its
// own Redis topic under a shared prefix, and every instance tags its
// publishes with an origin id so the forwarder can drop its own echoes: the
// progress broadcaster already delivered those to the local hub directly.
type SSEBus interface {
	Publish(ctx context.Context, msg sse.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error
	Close() error
}

// busEnvelope is the wire form of one forwarded SSE message.
type busEnvelope struct {
	Origin  string         `json:"origin"`
	Message sse.SSEMessage `json:"message"`
}

type sseBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	origin string
}

func NewSSEBus(log *logger.Logger) (SSEBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := envutil.Str("REDIS_SSE_PREFIX", "rankforge:sse")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &sseBus{
		log:    log.With("service", "RedisSSEBus"),
		rdb:    rdb,
		prefix: prefix,
		origin: uuid.NewString(),
	}, nil
}

func (b *sseBus) topic(channel string) string {
	return b.prefix + ":" + channel
}

func (b *sseBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	raw, err := json.Marshal(busEnvelope{Origin: b.origin, Message: msg})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.topic(msg.Channel), raw).Err()
}

func (b *sseBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.PSubscribe(ctx, b.topic("*"))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var env busEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad redis SSE payload", "error", err)
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				onMsg(env.Message)
			}
		}
	}()

	return nil
}

func (b *sseBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
