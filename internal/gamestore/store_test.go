package gamestore

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"

    "github.com/paga2004/robochess/internal/domain"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(mr.Close)
    store, err := OpenRedis(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
    if err != nil { t.Fatalf("OpenRedis: %v", err) }
    t.Cleanup(func() { _ = store.Close() })
    return store, mr
}

func sampleSnapshot() *Snapshot {
    now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    return &Snapshot{
        ID:        NewID(),
        StartFEN:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
        FEN:       "rnbqkbnr/ppp1pppp/8/3P4/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2",
        MovesUCI:  []string{"e2e4", "d7d5", "e4d5"},
        MovesSAN:  []string{"e4", "d5", "exd5"},
        BlackBin:  []domain.Piece{{Color: domain.Black, Type: domain.Pawn}},
        WhiteBin:  []domain.Piece{domain.NoPiece},
        StartedAt: now,
        UpdatedAt: now.Add(time.Minute),
    }
}

func exerciseStore(t *testing.T, s Store) {
    t.Helper()
    ctx := context.Background()

    if _, err := s.Load(ctx); !errors.Is(err, ErrNoSnapshot) { t.Fatalf("empty Load err = %v", err) }

    snap := sampleSnapshot()
    if err := s.Save(ctx, snap); err != nil { t.Fatalf("Save: %v", err) }
    snap.MovesUCI[0] = "mutated"

    got, err := s.Load(ctx)
    if err != nil { t.Fatalf("Load: %v", err) }
    if got.ID != snap.ID || got.FEN != snap.FEN || len(got.MovesUCI) != 3 || got.MovesUCI[0] != "e2e4" {
        t.Fatalf("round trip mismatch: %+v", got)
    }
    if len(got.BlackBin) != 1 || got.BlackBin[0].Type != domain.Pawn || !got.WhiteBin[0].IsEmpty() {
        t.Fatalf("bins mismatch: %+v / %+v", got.WhiteBin, got.BlackBin)
    }
    if !got.StartedAt.Equal(snap.StartedAt) { t.Fatalf("started_at = %s", got.StartedAt) }

    if err := s.Clear(ctx); err != nil { t.Fatalf("Clear: %v", err) }
    if _, err := s.Load(ctx); !errors.Is(err, ErrNoSnapshot) { t.Fatalf("Load after Clear err = %v", err) }
}

func TestMemoryStore(t *testing.T) {
    exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
    store, _ := newTestRedisStore(t)
    exerciseStore(t, store)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
    store, mr := newTestRedisStore(t)
    if err := store.Save(context.Background(), sampleSnapshot()); err != nil { t.Fatal(err) }

    if ttl := mr.TTL(currentKey); ttl != time.Hour { t.Fatalf("ttl = %s, want 1h", ttl) }
    mr.FastForward(2 * time.Hour)
    if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) { t.Fatalf("expired Load err = %v", err) }
}

func TestRedisStoreCorruptPayload(t *testing.T) {
    store, mr := newTestRedisStore(t)
    if err := mr.Set(currentKey, "{not json"); err != nil { t.Fatal(err) }
    if _, err := store.Load(context.Background()); err == nil || errors.Is(err, ErrNoSnapshot) {
        t.Fatalf("err = %v, want decode error", err)
    }
}

func TestParseRedisURL(t *testing.T) {
    opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
    if err != nil { t.Fatal(err) }
    if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
        t.Fatalf("opts = %+v", opts)
    }
    for _, bad := range []string{"http://localhost", "redis://localhost/x"} {
        if _, err := ParseRedisURL(bad); err == nil { t.Errorf("ParseRedisURL(%q) accepted", bad) }
    }
}

func TestNewRedisStoreWithClient(t *testing.T) {
    mr, err := miniredis.Run()
    if err != nil { t.Fatal(err) }
    defer mr.Close()
    store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
    defer store.Close()
    exerciseStore(t, store)
}
