// Package persist is the durable key-value layer under the confession store.
// Adapters move opaque bytes; Repository encodes the three slots.
package persist

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sujalbistaa/whispr/internal/db"
	"github.com/sujalbistaa/whispr/internal/errs"
)

// Slot keys.
const (
	KeyConfessions = "unspoken_v3"
	KeyMessages    = "unspoken_messages"
	KeyTheme       = "unspoken_theme"
)

// Adapter is a keyed durable store. Load returns errs.ErrSlotMissing for a
// key that was never saved.
type Adapter interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Open selects a backend by URL scheme: sqlite://, postgres://, redis:// or
// memory://. The returned closer releases backend resources.
func Open(ctx context.Context, storageURL string, log *zap.Logger) (Adapter, func() error, error) {
	switch {
	case strings.HasPrefix(storageURL, "memory://"):
		log.Info("using in-memory storage, data will not survive a restart")
		return NewMemoryAdapter(), func() error { return nil }, nil

	case strings.HasPrefix(storageURL, "redis://"), strings.HasPrefix(storageURL, "rediss://"):
		opts, err := redis.ParseURL(storageURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, errors.Wrap(err, "ping redis")
		}
		log.Info("connected to redis", zap.String("addr", opts.Addr))
		return NewRedisAdapter(client, ""), client.Close, nil

	default:
		gdb, err := db.Init(storageURL, log)
		if err != nil {
			return nil, nil, err
		}
		return NewGormAdapter(gdb), func() error { return db.Close(gdb) }, nil
	}
}

// GormAdapter stores each slot as a row of the slots table.
type GormAdapter struct {
	db *gorm.DB
}

func NewGormAdapter(gdb *gorm.DB) *GormAdapter {
	return &GormAdapter{db: gdb}
}

func (a *GormAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	var slot db.Slot
	if err := a.db.WithContext(ctx).Where("slot_key = ?", key).First(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSlotMissing
		}
		return nil, err
	}
	return []byte(slot.Payload), nil
}

func (a *GormAdapter) Save(ctx context.Context, key string, data []byte) error {
	slot := db.Slot{Key: key, Payload: string(data)}
	// Save upserts on the primary key.
	return a.db.WithContext(ctx).Save(&slot).Error
}

// RedisAdapter stores each slot under prefix+key.
type RedisAdapter struct {
	client *redis.Client
	prefix string
}

func NewRedisAdapter(client *redis.Client, prefix string) *RedisAdapter {
	if prefix == "" {
		prefix = "whispr:"
	}
	return &RedisAdapter{client: client, prefix: prefix}
}

func (a *RedisAdapter) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := a.client.Get(ctx, a.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrSlotMissing
	}
	return data, err
}

func (a *RedisAdapter) Save(ctx context.Context, key string, data []byte) error {
	return a.client.Set(ctx, a.prefix+key, data, 0).Err()
}

// MemoryAdapter keeps slots in a map.
type MemoryAdapter struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{slots: make(map[string][]byte)}
}

func (a *MemoryAdapter) Load(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.slots[key]
	if !ok {
		return nil, errs.ErrSlotMissing
	}
	return append([]byte(nil), data...), nil
}

func (a *MemoryAdapter) Save(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots[key] = append([]byte(nil), data...)
	return nil
}
