package secrets

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStore keeps secrets in Redis with no expiry; a token bundle is
// superseded in place on every refresh, never deleted.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	addr := config.Host + ":" + strconv.Itoa(config.Port)
	if config.Port == 0 {
		addr = config.Host + ":6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, prefix: "secret:"}, nil
}

func (s *RedisStore) GetSecret(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) SetSecret(ctx context.Context, name, value string) error {
	return s.client.Set(ctx, s.prefix+name, value, 0).Err()
}

// Client exposes the underlying connection for callers that need raw Redis
// primitives, like the email dedup marker.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
