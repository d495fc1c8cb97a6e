package persist

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/models"
)

// SchemaVersion is written into every collection envelope.
const SchemaVersion = 1

type envelope[T any] struct {
	Version int `json:"version"`
	Items   []T `json:"items"`
}

// Repository encodes the confession, message and theme slots on top of an
// Adapter.
type Repository struct {
	adapter Adapter
}

func NewRepository(a Adapter) *Repository {
	return &Repository{adapter: a}
}

// LoadConfessions returns errs.ErrSlotMissing when nothing was saved yet and
// an ErrPersistence-kind error when the slot could not be read or parsed.
func (r *Repository) LoadConfessions(ctx context.Context) ([]models.Confession, error) {
	return loadCollection[models.Confession](ctx, r.adapter, KeyConfessions)
}

func (r *Repository) SaveConfessions(ctx context.Context, items []models.Confession) error {
	return saveCollection(ctx, r.adapter, KeyConfessions, items)
}

func (r *Repository) LoadMessages(ctx context.Context) ([]models.AnonymousMessage, error) {
	return loadCollection[models.AnonymousMessage](ctx, r.adapter, KeyMessages)
}

func (r *Repository) SaveMessages(ctx context.Context, items []models.AnonymousMessage) error {
	return saveCollection(ctx, r.adapter, KeyMessages, items)
}

// LoadTheme returns the stored theme id as a raw string.
func (r *Repository) LoadTheme(ctx context.Context) (string, error) {
	data, err := r.adapter.Load(ctx, KeyTheme)
	if err != nil {
		if errors.Is(err, errs.ErrSlotMissing) {
			return "", err
		}
		return "", errs.Persistence(err, "load theme")
	}
	return string(data), nil
}

func (r *Repository) SaveTheme(ctx context.Context, id string) error {
	return errs.Persistence(r.adapter.Save(ctx, KeyTheme, []byte(id)), "save theme")
}

func loadCollection[T any](ctx context.Context, a Adapter, key string) ([]T, error) {
	data, err := a.Load(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrSlotMissing) {
			return nil, err
		}
		return nil, errs.Persistence(err, "load "+key)
	}
	items, err := decodeCollection[T](data)
	if err != nil {
		return nil, errs.Persistence(err, "decode "+key)
	}
	return items, nil
}

func saveCollection[T any](ctx context.Context, a Adapter, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(envelope[T]{Version: SchemaVersion, Items: items})
	if err != nil {
		return errs.Persistence(err, "encode "+key)
	}
	return errs.Persistence(a.Save(ctx, key, data), "save "+key)
}

// decodeCollection accepts both the versioned envelope and the bare array
// written by the unversioned layout.
func decodeCollection[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var env envelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Version > SchemaVersion {
		return nil, errors.Errorf("unsupported schema version %d", env.Version)
	}
	if env.Items == nil {
		env.Items = []T{}
	}
	return env.Items, nil
}
