package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/walletd/marketsync/internal/models"
)

// FileStore persists one JSON record per cache kind under a data
// directory. Writes go through a temp file and rename so a crash
// mid-write leaves the previous record intact.
type FileStore struct {
	dataDir string
	logger  *logrus.Logger
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dataDir string, logger *logrus.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileStore{
		dataDir: dataDir,
		logger:  logger,
	}, nil
}

func (fs *FileStore) path(kind models.CacheKind) string {
	return filepath.Join(fs.dataDir, string(kind)+".json")
}

func (fs *FileStore) Load(_ context.Context, kind models.CacheKind) (*models.CacheRecord, error) {
	data, err := os.ReadFile(fs.path(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var record models.CacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		fs.logger.Warnf("Discarding unreadable %s cache record: %v", kind, err)
		return nil, ErrCacheMiss
	}

	if record.Version != models.CacheSchemaVersion {
		fs.logger.Warnf("Discarding %s cache record with unknown version %d", kind, record.Version)
		return nil, ErrCacheMiss
	}

	return &record, nil
}

func (fs *FileStore) Save(_ context.Context, kind models.CacheKind, payload any) error {
	record, err := newRecord(payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", kind, err)
	}

	tmp := fs.path(kind) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, fs.path(kind)); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	fs.logger.Debugf("Saved %s cache record (%d bytes)", kind, len(data))
	return nil
}

func (fs *FileStore) Close() error { return nil }
