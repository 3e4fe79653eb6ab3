package gamestore

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

const currentKey = "robochess:game:current"

type RedisStore struct {
    rdb *redis.Client
    ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
    return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis connects to REDIS_URL style addresses (redis://[:pass@]host:port/db) and pings the server.
func OpenRedis(ctx context.Context, rawURL string, ttl time.Duration) (*RedisStore, error) {
    opts, err := ParseRedisURL(rawURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return NewRedisStore(rdb, ttl), nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        n, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("invalid redis db %q", p) }
        db = n
    }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
    raw, err := s.rdb.Get(ctx, currentKey).Bytes()
    if errors.Is(err, redis.Nil) { return nil, ErrNoSnapshot }
    if err != nil { return nil, fmt.Errorf("load snapshot: %w", err) }
    var snap Snapshot
    if err := json.Unmarshal(raw, &snap); err != nil { return nil, fmt.Errorf("decode snapshot: %w", err) }
    return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
    if snap == nil { return fmt.Errorf("cannot save nil snapshot") }
    raw, err := json.Marshal(snap)
    if err != nil { return err }
    if err := s.rdb.Set(ctx, currentKey, raw, s.ttl).Err(); err != nil {
        return fmt.Errorf("save snapshot: %w", err)
    }
    return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
    return s.rdb.Del(ctx, currentKey).Err()
}

func (s *RedisStore) Close() error {
    if s == nil || s.rdb == nil { return nil }
    return s.rdb.Close()
}
