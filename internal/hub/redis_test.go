package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestRedisHub_DecodeEmbeddedButton(t *testing.T) {
	// the client is never used: an embedded button needs no lookup
	r := NewRedisHubWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "")
	defer r.client.Close()

	ev, err := r.decodeEvent(context.Background(), []byte(
		`{"event":"buttonSingleOrDoubleClickOrHold","button":{"bdaddr":"aa","name":"desk"},"isSingleClick":true,"isDoubleClick":true}`,
	))
	require.NoError(t, err)
	assert.Equal(t, EventButtonSingleOrDoubleClickOrHold, ev.Kind)
	assert.Equal(t, "desk", ev.Button.Name)
	assert.Equal(t, "single", ev.Click.Action())
}

func TestRedisHub_DecodeRejectsBadPayloads(t *testing.T) {
	r := NewRedisHubWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "")
	defer r.client.Close()

	for _, payload := range []string{
		`not json`,
		`{"event":"buttonRemoved","button":{"bdaddr":"aa"}}`,
		`{"event":"buttonDown"}`,
		`{"event":"buttonDown","button":null}`,
	} {
		_, err := r.decodeEvent(context.Background(), []byte(payload))
		assert.Error(t, err, payload)
	}
}

// RedisHubTestSuite runs against a real Redis and is skipped when none is reachable.
type RedisHubTestSuite struct {
	suite.Suite
	client *redis.Client
	hub    *RedisHub
	prefix string
}

func (s *RedisHubTestSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // separate DB for tests
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.T().Skip("Redis not available, skipping integration tests")
	}
}

func (s *RedisHubTestSuite) SetupTest() {
	s.prefix = "flichubtest"
	ctx := context.Background()
	s.client.Del(ctx, s.prefix+":buttons", s.prefix+":network")

	s.hub = NewRedisHubWithClient(redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1}), s.prefix)
	s.Require().NoError(s.hub.Start(ctx))
}

func (s *RedisHubTestSuite) TearDownTest() {
	if s.hub != nil {
		s.hub.Close()
	}
}

func (s *RedisHubTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RedisHubTestSuite) seedButton(b Button) {
	data, err := json.Marshal(b)
	s.Require().NoError(err)
	s.Require().NoError(s.client.HSet(context.Background(), s.prefix+":buttons", b.BdAddr, data).Err())
}

func (s *RedisHubTestSuite) TestButtonsAndNetwork() {
	ctx := context.Background()
	s.seedButton(Button{BdAddr: "bb", Name: "second", BatteryStatus: 40})
	s.seedButton(Button{BdAddr: "aa", Name: "first", BatteryStatus: 90})
	s.Require().NoError(s.client.Set(ctx, s.prefix+":network", `{"dhcp":{"ethernet":{"connected":true}}}`, 0).Err())

	buttons, err := s.hub.ListButtons(ctx)
	s.Require().NoError(err)
	s.Require().Len(buttons, 2)
	s.Equal("aa", buttons[0].BdAddr)

	b, err := s.hub.GetButton(ctx, "bb")
	s.Require().NoError(err)
	s.Equal(40, b.BatteryStatus)

	_, err = s.hub.GetButton(ctx, "zz")
	s.ErrorIs(err, ErrButtonNotFound)

	state, err := s.hub.GetState(ctx)
	s.Require().NoError(err)
	s.Contains(state, "dhcp")
}

func (s *RedisHubTestSuite) TestEmitRoundTrip() {
	ctx := context.Background()
	s.seedButton(Button{BdAddr: "aa", Name: "first"})

	got := make(chan Event, 1)
	s.hub.Subscribe(EventButtonSingleOrDoubleClickOrHold, func(ev Event) { got <- ev })

	s.Require().NoError(s.hub.Emit(ctx, EventButtonSingleOrDoubleClickOrHold, "aa", ClickFlags{IsHold: true}))

	select {
	case ev := <-got:
		s.Equal("first", ev.Button.Name)
		s.Equal("hold", ev.Click.Action())
	case <-time.After(2 * time.Second):
		s.Fail("event not relayed from redis")
	}
}

func TestRedisHubTestSuite(t *testing.T) {
	suite.Run(t, new(RedisHubTestSuite))
}
