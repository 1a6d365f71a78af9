package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHub reads hub state that an external bridge mirrors into Redis and
// relays the bridge's events from a pub/sub channel into a local Broadcaster.
//
// Keys, for prefix "flichub":
//
//	flichub:buttons  hash, field = bdaddr, value = button JSON
//	flichub:network  string, network JSON
//	flichub:events   pub/sub channel, redisEventPayload JSON
type RedisHub struct {
	*Broadcaster

	client *redis.Client
	prefix string
	logger *slog.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// RedisOptions configures NewRedisHub.
type RedisOptions struct {
	URL      string // redis://host:port/db
	Password string // overrides the URL password when set
	DB       int    // overrides the URL database when > 0
	Prefix   string
}

// redisEventPayload is the wire shape published by the bridge. Button is
// either a full button object or a bare bdaddr string.
type redisEventPayload struct {
	Event  string          `json:"event"`
	Button json.RawMessage `json:"button"`
	ClickFlags
}

// NewRedisHub parses opts.URL and pings the server before returning.
func NewRedisHub(ctx context.Context, opts RedisOptions) (*RedisHub, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.Password != "" {
		redisOpts.Password = opts.Password
	}
	if opts.DB > 0 {
		redisOpts.DB = opts.DB
	}
	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(redisOpts)

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisHubWithClient(rdb, opts.Prefix), nil
}

// NewRedisHubWithClient wraps an existing client.
func NewRedisHubWithClient(client *redis.Client, prefix string) *RedisHub {
	if prefix == "" {
		prefix = "flichub"
	}
	return &RedisHub{
		Broadcaster: NewBroadcaster(),
		client:      client,
		prefix:      prefix,
		logger:      slog.Default().With("component", "redis_hub"),
	}
}

func (r *RedisHub) buttonsKey() string { return r.prefix + ":buttons" }
func (r *RedisHub) networkKey() string { return r.prefix + ":network" }
func (r *RedisHub) eventsKey() string  { return r.prefix + ":events" }

// Start subscribes to the events channel and relays until ctx is done or Close is called.
func (r *RedisHub) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.eventsKey())
	// wait for the subscription confirmation so no event published after Start returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.eventsKey(), err)
	}
	r.pubsub = pubsub

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for msg := range pubsub.Channel() {
			ev, err := r.decodeEvent(ctx, []byte(msg.Payload))
			if err != nil {
				r.logger.Warn("invalid_hub_event",
					"channel", msg.Channel,
					"error", err.Error(),
				)
				continue
			}
			r.Publish(ev)
		}
	}()
	r.logger.Info("redis_hub_subscribed", "channel", r.eventsKey())
	return nil
}

// Close stops the relay goroutine and closes the client.
func (r *RedisHub) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	r.wg.Wait()
	return r.client.Close()
}

func (r *RedisHub) decodeEvent(ctx context.Context, data []byte) (Event, error) {
	var p redisEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	kind, ok := ParseEventKind(p.Event)
	if !ok {
		return Event{}, fmt.Errorf("unknown event %q", p.Event)
	}

	raw := bytes.TrimSpace(p.Button)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Event{}, errors.New("event has no button")
	}

	var btn Button
	if raw[0] == '"' {
		var addr string
		if err := json.Unmarshal(raw, &addr); err != nil {
			return Event{}, fmt.Errorf("decode button address: %w", err)
		}
		found, err := r.GetButton(ctx, addr)
		if err != nil {
			if !errors.Is(err, ErrButtonNotFound) {
				return Event{}, err
			}
			found = Button{BdAddr: addr}
		}
		return Event{Kind: kind, Button: found, Click: p.ClickFlags}, nil
	}
	if err := json.Unmarshal(raw, &btn); err != nil {
		return Event{}, fmt.Errorf("decode button: %w", err)
	}
	return Event{Kind: kind, Button: btn, Click: p.ClickFlags}, nil
}

// ListButtons returns all mirrored buttons ordered by address.
func (r *RedisHub) ListButtons(ctx context.Context) ([]Button, error) {
	values, err := r.client.HGetAll(ctx, r.buttonsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list buttons: %w", err)
	}
	out := make([]Button, 0, len(values))
	for field, v := range values {
		var b Button
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			r.logger.Warn("invalid_button_record",
				"bdaddr", field,
				"error", err.Error(),
			)
			continue
		}
		if b.BdAddr == "" {
			b.BdAddr = field
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BdAddr < out[j].BdAddr })
	return out, nil
}

// GetButton fetches one mirrored button.
func (r *RedisHub) GetButton(ctx context.Context, bdaddr string) (Button, error) {
	v, err := r.client.HGet(ctx, r.buttonsKey(), bdaddr).Result()
	if errors.Is(err, redis.Nil) {
		return Button{}, fmt.Errorf("%s: %w", bdaddr, ErrButtonNotFound)
	}
	if err != nil {
		return Button{}, fmt.Errorf("failed to get button %s: %w", bdaddr, err)
	}
	var b Button
	if err := json.Unmarshal([]byte(v), &b); err != nil {
		return Button{}, fmt.Errorf("invalid button record %s: %w", bdaddr, err)
	}
	if b.BdAddr == "" {
		b.BdAddr = bdaddr
	}
	return b, nil
}

// GetState returns the mirrored network state, empty when none is stored.
func (r *RedisHub) GetState(ctx context.Context) (NetworkInfo, error) {
	v, err := r.client.Get(ctx, r.networkKey()).Result()
	if errors.Is(err, redis.Nil) {
		return NetworkInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get network state: %w", err)
	}
	info := NetworkInfo{}
	if err := json.Unmarshal([]byte(v), &info); err != nil {
		return nil, fmt.Errorf("invalid network record: %w", err)
	}
	return info, nil
}

// Emit publishes an event on the events channel; it comes back to this hub
// (and any other relay on the same prefix) through the subscription.
func (r *RedisHub) Emit(ctx context.Context, kind EventKind, bdaddr string, flags ClickFlags) error {
	addr, err := json.Marshal(bdaddr)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(redisEventPayload{
		Event:      string(kind),
		Button:     addr,
		ClickFlags: flags,
	})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.eventsKey(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}
