//go:build integration

package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	store     *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	client, err := NewRedisClient(ctx, url)
	s.Require().NoError(err)
	s.client = client
	s.store = NewRedisStore(client, WithKeyPrefix("test:"))
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisStoreSuite) TestAllowUntilLimit() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, "k", 3, time.Minute)
		s.Require().NoError(err)
		s.False(res.WasRejected)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "k", 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.WasRejected)
	s.WithinDuration(time.Now().Add(time.Minute), res.ResetAt, 5*time.Second)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "slide", 1, 200*time.Millisecond)
	s.Require().NoError(err)

	res, err := s.store.Allow(ctx, "slide", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.WasRejected)

	time.Sleep(300 * time.Millisecond)
	res, err = s.store.Allow(ctx, "slide", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.False(res.WasRejected)
}

func (s *RedisStoreSuite) TestReset() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "r", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "r"))

	res, err := s.store.Allow(ctx, "r", 1, time.Minute)
	s.Require().NoError(err)
	s.False(res.WasRejected)
}

func (s *RedisStoreSuite) TestLimitOrThrowOverRedis() {
	ctx := context.Background()
	l, err := NewWindowLimiter(s.store, Policy{MaxRequests: 1, Window: time.Minute})
	s.Require().NoError(err)

	s.Require().NoError(LimitOrThrow(ctx, l, login{User: "eve"}))
	s.Error(LimitOrThrow(ctx, l, login{User: "eve"}))
}
