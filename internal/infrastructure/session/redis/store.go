package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const (
	fieldAccessToken  = "google_access_token"
	fieldRootFolderID = "root_folder_id"
	fieldUserEmail    = "user_email"
	fieldCreatedAt    = "created_at"
)

// Store keeps one hash per session id. Every save refreshes the TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type Options struct {
	Prefix string
	TTL    time.Duration
}

func New(redisURL string, options Options) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, options), nil
}

func NewWithClient(client *redis.Client, options Options) *Store {
	prefix := options.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	return &Store{client: client, prefix: prefix, ttl: options.TTL}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save session", errors.New("session id is required"))
	}
	key := s.key(session.ID)

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldAccessToken:  session.AccessToken,
		fieldRootFolderID: session.RootFolderID,
		fieldUserEmail:    session.UserEmail,
		fieldCreatedAt:    createdAt.Format(time.RFC3339Nano),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (domain.Session, error) {
	values, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	// HGETALL on a missing key yields an empty map rather than redis.Nil.
	if len(values) == 0 {
		return domain.Session{}, domain.WrapError(domain.ErrNotFound, "load session", fmt.Errorf("session %s not found or expired", sessionID))
	}

	session := domain.Session{
		ID:           sessionID,
		AccessToken:  values[fieldAccessToken],
		RootFolderID: values[fieldRootFolderID],
		UserEmail:    values[fieldUserEmail],
	}
	if raw := values[fieldCreatedAt]; raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			session.CreatedAt = parsed
		}
	}
	return session, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
