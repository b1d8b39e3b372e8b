package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sofatutor/usage-telemetry/internal/telemetry"
)

// FileClient writes batches to a local JSONL file. Intended for development
// and integration testing; it owns destination keys with the "local-" prefix.
type FileClient struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileClient creates an uninitialized file client.
func NewFileClient() *FileClient {
	return &FileClient{}
}

// Init opens the output file for appending. "filepath" is required.
func (c *FileClient) Init(cfg map[string]string) error {
	path, ok := cfg["filepath"]
	if !ok || path == "" {
		return fmt.Errorf("file client requires 'filepath' configuration")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}

	c.path = path
	c.file = f
	return nil
}

// Name returns the client name.
func (c *FileClient) Name() string { return "file" }

// Supports owns local development keys.
func (c *FileClient) Supports(key string) bool {
	return strings.HasPrefix(key, "local-")
}

type fileRecord struct {
	Key   string          `json:"key"`
	Event telemetry.Event `json:"event"`
}

// Send appends one JSON line per event.
func (c *FileClient) Send(ctx context.Context, key string, events []telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return fmt.Errorf("file client not initialized")
	}

	for _, evt := range events {
		line, err := json.Marshal(fileRecord{Key: key, Event: evt})
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := c.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

// Close closes the output file.
func (c *FileClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
