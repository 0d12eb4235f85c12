package flash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const SessionCookieName = "notice_session"

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewRedisClient(config *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

// RedisStore keeps notices in a Redis list keyed by an opaque session id that
// lives in a cookie. Calls run through a Breaker so an outage degrades to
// "no notices" instead of slow pages.
type RedisStore struct {
	client  *redis.Client
	breaker *Breaker
	options CookieOptions
	logger  *slog.Logger
}

func NewRedisStore(client *redis.Client, breaker *Breaker, options CookieOptions) *RedisStore {
	if breaker == nil {
		breaker = NewBreaker(nil)
	}
	if options.TTL <= 0 {
		options.TTL = 5 * time.Minute
	}
	return &RedisStore{
		client:  client,
		breaker: breaker,
		options: options,
		logger:  slog.Default(),
	}
}

func noticeKey(session string) string {
	return fmt.Sprintf("notices:%s", session)
}

func (s *RedisStore) Add(w http.ResponseWriter, r *http.Request, notices ...models.Notice) error {
	if len(notices) == 0 {
		return nil
	}

	session := sessionID(r)
	if session == uuid.Nil {
		var err error
		session, err = uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to create notice session: %w", err)
		}
	}

	values := make([]interface{}, 0, len(notices))
	for _, notice := range notices {
		data, err := json.Marshal(notice)
		if err != nil {
			return fmt.Errorf("failed to marshal notice: %w", err)
		}
		values = append(values, data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := noticeKey(session.String())
	err := s.breaker.Execute(func() error {
		pipe := s.client.Pipeline()
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, s.options.TTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	http.SetCookie(w, s.options.cookie(SessionCookieName, session.String()))
	return nil
}

func (s *RedisStore) Pop(w http.ResponseWriter, r *http.Request) ([]models.Notice, error) {
	session := sessionID(r)
	if session == uuid.Nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := noticeKey(session.String())
	var raw []string
	err := s.breaker.Execute(func() error {
		pipe := s.client.TxPipeline()
		lrange := pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		raw = lrange.Val()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	notices := make([]models.Notice, 0, len(raw))
	for _, item := range raw {
		var notice models.Notice
		if err := json.Unmarshal([]byte(item), &notice); err != nil {
			s.logger.Warn("skipping malformed notice", "session", session, "error", err)
			continue
		}
		notices = append(notices, notice)
	}
	return notices, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Stats() map[string]interface{} {
	poolStats := s.client.PoolStats()

	return map[string]interface{}{
		"breaker":       s.breaker.Stats(),
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
		"pool_stale":    poolStats.StaleConns,
	}
}

// Close releases the store's Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionID(r *http.Request) uuid.UUID {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return uuid.Nil
	}
	return uuid.FromStringOrNil(cookie.Value)
}
