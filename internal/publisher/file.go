package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/genricoloni/tilesync/internal/fsutil"
	"go.uber.org/zap"
)

// FilePublisher writes the tile markup to a file for widgets and status bars to pick up
type FilePublisher struct {
	logger *zap.Logger
	path   string
}

// NewFilePublisher creates a publisher writing to path
func NewFilePublisher(logger *zap.Logger, path string) *FilePublisher {
	return &FilePublisher{logger: logger, path: path}
}

// Publish replaces the file contents with markup
func (p *FilePublisher) Publish(ctx context.Context, markup string) error {
	if err := fsutil.WriteFileAtomic(p.path, []byte(markup), 0644); err != nil {
		return fmt.Errorf("failed to write tile file: %w", err)
	}
	p.logger.Debug("Tile file written", zap.String("path", p.path))
	return nil
}

// Clear removes the file. A missing file is already clear.
func (p *FilePublisher) Clear(ctx context.Context) error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove tile file: %w", err)
	}
	return nil
}
