package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const keyPrefix = "brandguard:session:"

// RedisOptions locate the Redis server.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// RedisStore keeps sessions in Redis so several web processes can share them.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// OpenRedis connects to Redis, retrying the initial ping with Fibonacci backoff.
func OpenRedis(ctx context.Context, ro RedisOptions, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     ro.Address,
		Password: ro.Password,
		DB:       ro.DB,
	})

	b := retry.WithMaxRetries(4, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", ro.Address, err)
	}
	return NewRedisStore(client, opts), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts}
}

func sessionKey(token string) string { return keyPrefix + token }

func historyKey(token string) string { return keyPrefix + token + ":history" }

func (s *RedisStore) Create(ctx context.Context, username string) (Session, error) {
	sess := Session{Token: newToken(), Username: username, CreatedAt: time.Now()}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), data, s.opts.TTL).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if s.opts.TTL > 0 {
		_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Expire(ctx, sessionKey(token), s.opts.TTL)
			p.Expire(ctx, historyKey(token), s.opts.TTL)
			return nil
		})
		if err != nil {
			return Session{}, fmt.Errorf("refresh session: %w", err)
		}
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token), historyKey(token)).Err()
}

func (s *RedisStore) AppendHistory(ctx context.Context, token string, e Entry) error {
	if _, err := s.Get(ctx, token); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, historyKey(token), data)
		p.LTrim(ctx, historyKey(token), -int64(s.opts.historySize()), -1)
		if s.opts.TTL > 0 {
			p.Expire(ctx, historyKey(token), s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, token string) ([]Entry, error) {
	if _, err := s.Get(ctx, token); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, historyKey(token), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
