package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStorage is an in-process Storage for single node deployments and tests.
type MemoryStorage struct {
	storage *memory.Storage
}

func (s *MemoryStorage) Conn() *memory.Storage {
	return s.storage
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := s.storage.Get(key)
	if err != nil {
		return err
	}
	if blob == nil {
		return ErrNotFound
	}
	return gob.NewDecoder(bytes.NewReader(blob)).Decode(val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob := new(bytes.Buffer)
	if err := gob.NewEncoder(blob).Encode(val); err != nil {
		return err
	}
	if expiresIn < 0 {
		expiresIn = 0
	}
	return s.storage.Set(key, blob.Bytes(), expiresIn)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := s.storage.Get(key)
	if err != nil {
		return err
	}
	if blob == nil {
		return ErrNotFound
	}
	return s.storage.Delete(key)
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func NewMemoryStorage(storage *memory.Storage) *MemoryStorage {
	return &MemoryStorage{
		storage: storage,
	}
}
