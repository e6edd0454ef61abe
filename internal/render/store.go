package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/genricoloni/tilesync/internal/domain"
)

// ErrTemplateNotFound is returned when no template exists for a design
var ErrTemplateNotFound = errors.New("tile template not found")

//go:embed templates
var embedded embed.FS

// Store loads tile templates by design, from a directory or from the
// templates built into the binary
type Store struct {
	fsys fs.FS
}

// NewStore returns a store reading from dir, or the built-in templates when dir is empty
func NewStore(dir string) (*Store, error) {
	if dir != "" {
		return &Store{fsys: os.DirFS(dir)}, nil
	}

	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open built-in templates: %w", err)
	}
	return &Store{fsys: sub}, nil
}

// Load returns the TileTemplates/LiveTile<Design>.xml template text
func (s *Store) Load(design domain.Design) (string, error) {
	name := path.Join("TileTemplates", "LiveTile"+design.String()+".xml")

	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(data), nil
}
