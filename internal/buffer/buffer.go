// Package buffer provides a local file-based queue for messages that could not
// be published. Each message is written as a timestamped JSON file, so data
// survives crashes and restarts. A size cap drops the oldest messages first.
package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/telemetry/internal/models"
)

// Buffer stores unpublished messages in a directory.
type Buffer struct {
	dir       string
	maxSizeMB int
	logger    *zap.Logger
	mu        sync.Mutex
	counter   uint64
}

// New creates a new file-based buffer at the given directory path.
// The directory is created if it does not exist.
func New(dir string, maxSizeMB int, logger *zap.Logger) (*Buffer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating buffer directory: %w", err)
	}
	return &Buffer{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		logger:    logger,
	}, nil
}

// Store saves one message. If the buffer exceeds the configured size limit,
// the oldest message is dropped first.
func (b *Buffer) Store(msg models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentSizeMB() >= b.maxSizeMB {
		b.logger.Warn("Buffer full, dropping oldest message")
		b.dropOldest()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	// The counter keeps names unique and ordered within one process.
	b.counter++
	name := fmt.Sprintf("%s-%06d.json", time.Now().UTC().Format("20060102T150405.000000000"), b.counter%1000000)
	return os.WriteFile(filepath.Join(b.dir, name), data, 0640)
}

// RetrieveAll reads all buffered messages in chronological order and removes
// their files. Corrupted files are removed and logged.
func (b *Buffer) RetrieveAll() ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("reading buffer directory: %w", err)
	}

	var msgs []models.Message
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(b.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("Failed to read buffer file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Warn("Failed to parse buffer file, removing corrupted file",
				zap.String("file", path),
				zap.Error(err))
			os.Remove(path)
			continue
		}

		msgs = append(msgs, msg)
		os.Remove(path)
	}

	return msgs, nil
}

// Count returns the number of buffered messages.
func (b *Buffer) Count() int {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			count++
		}
	}
	return count
}

// currentSizeMB returns the total size of all buffer files in megabytes.
// Must be called with b.mu held.
func (b *Buffer) currentSizeMB() int {
	var totalSize int64
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil {
			totalSize += info.Size()
		}
	}
	return int(totalSize / (1024 * 1024))
}

// dropOldest removes the oldest buffer file. Must be called with b.mu held.
func (b *Buffer) dropOldest() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			path := filepath.Join(b.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				b.logger.Warn("Failed to remove oldest buffer file",
					zap.String("file", path),
					zap.Error(err))
			}
			return
		}
	}
}
