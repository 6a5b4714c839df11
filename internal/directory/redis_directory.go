package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/pkg/log"
)

// Entries expire on their own so a crashed node does not leave ghost
// streams in the index. The live node rewrites its entries on every
// viewer-count update.
const entryTTL = 2 * time.Minute

type RedisDirectory struct {
	client *redis.Client
	prefix string
}

func NewRedisDirectory(cfg config.RedisConfig) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisDirectory{client: client, prefix: cfg.Prefix}, nil
}

func (d *RedisDirectory) keyFor(streamID string) string {
	return fmt.Sprintf("%s:live:%s", d.prefix, streamID)
}

type liveEntry struct {
	StreamID    string `json:"stream_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	UpdatedAt   int64  `json:"updated_at"`
}

func (d *RedisDirectory) SetLive(ctx context.Context, streamID, ownerID, title string) error {
	entry := liveEntry{
		StreamID:  streamID,
		OwnerID:   ownerID,
		Title:     title,
		UpdatedAt: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := d.client.Set(ctx, d.keyFor(streamID), payload, entryTTL).Err(); err != nil {
		return fmt.Errorf("failed to advertise stream: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldStreamID, streamID).Msg("stream advertised as live")
	return nil
}

func (d *RedisDirectory) UpdateViewerCount(ctx context.Context, streamID string, count int) error {
	key := d.keyFor(streamID)

	raw, err := d.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read directory entry: %w", err)
	}

	var entry liveEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("unmarshal entry: %w", err)
	}
	entry.ViewerCount = count
	entry.UpdatedAt = time.Now().UnixMilli()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := d.client.Set(ctx, key, payload, entryTTL).Err(); err != nil {
		return fmt.Errorf("failed to update directory entry: %w", err)
	}
	return nil
}

func (d *RedisDirectory) SetOffline(ctx context.Context, streamID string) error {
	if err := d.client.Del(ctx, d.keyFor(streamID)).Err(); err != nil {
		return fmt.Errorf("failed to remove stream from directory: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldStreamID, streamID).Msg("stream removed from directory")
	return nil
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
