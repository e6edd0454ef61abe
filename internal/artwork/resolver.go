package artwork

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/genricoloni/tilesync/internal/fsutil"
	"golang.org/x/crypto/blake2b"
	"go.uber.org/zap"
)

const maxRemembered = 512

// Lookup finds artwork URLs for lookup keys
type Lookup interface {
	ArtistImage(ctx context.Context, query string) (string, error)
	AlbumCover(ctx context.Context, query string) (string, error)
}

// Resolver implements domain.ArtworkResolver.
// Remote artwork is downloaded, squared and stored in the cache directory,
// because notification servers only display local images.
type Resolver struct {
	logger    *zap.Logger
	lookup    Lookup
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
	dir       string

	mu    sync.Mutex
	known map[string]string // lookup results by kind+key, "" means not found
}

// NewResolver creates an artwork resolver caching under cacheDir/artwork
func NewResolver(logger *zap.Logger, lookup Lookup, fetch domain.Fetcher, proc domain.ImageProcessor, cacheDir string) *Resolver {
	return &Resolver{
		logger:    logger,
		lookup:    lookup,
		fetcher:   fetch,
		processor: proc,
		dir:       filepath.Join(cacheDir, "artwork"),
		known:     make(map[string]string),
	}
}

// ResolveArtistArt returns a local locator for the artist's picture
func (r *Resolver) ResolveArtistArt(ctx context.Context, artistID string) (string, error) {
	return r.resolve(ctx, "artist", artistID, r.lookup.ArtistImage)
}

// ResolveAlbumArt returns a local locator for the album cover
func (r *Resolver) ResolveAlbumArt(ctx context.Context, albumID string) (string, error) {
	return r.resolve(ctx, "album", albumID, r.lookup.AlbumCover)
}

func (r *Resolver) resolve(ctx context.Context, kind, id string, find func(context.Context, string) (string, error)) (string, error) {
	if id == "" {
		return "", nil
	}

	key := kind + ":" + id
	r.mu.Lock()
	remote, ok := r.known[key]
	r.mu.Unlock()

	if !ok {
		var err error
		remote, err = find(ctx, id)
		if err != nil {
			// Failures are not remembered, the next cycle asks again
			return "", err
		}
		r.remember(key, remote)
	}

	if remote == "" {
		return "", nil
	}
	return r.LocalizeArt(ctx, remote)
}

func (r *Resolver) remember(key, remote string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.known) >= maxRemembered {
		r.known = make(map[string]string)
	}
	r.known[key] = remote
}

// LocalizeArt returns a file:// locator for artwork. Local files pass through,
// remote images are downloaded and processed once, then served from the cache.
func (r *Resolver) LocalizeArt(ctx context.Context, artURL string) (string, error) {
	switch {
	case artURL == "":
		return "", nil
	case strings.HasPrefix(artURL, "file://"):
		return artURL, nil
	case filepath.IsAbs(artURL):
		return fileURI(artURL), nil
	case !strings.HasPrefix(artURL, "http://") && !strings.HasPrefix(artURL, "https://"):
		return "", fmt.Errorf("unsupported artwork locator: %s", artURL)
	}

	sum := blake2b.Sum256([]byte(artURL))
	path := filepath.Join(r.dir, hex.EncodeToString(sum[:16])+".jpg")

	if _, err := os.Stat(path); err == nil {
		return fileURI(path), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to stat cached artwork: %w", err)
	}

	data, err := r.fetcher.Fetch(ctx, artURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch artwork: %w", err)
	}

	thumb, err := r.processor.Process(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to process artwork: %w", err)
	}

	if err := fsutil.WriteFileAtomic(path, thumb, 0644); err != nil {
		return "", fmt.Errorf("failed to cache artwork: %w", err)
	}

	r.logger.Debug("Artwork cached",
		zap.String("url", artURL),
		zap.String("path", path))
	return fileURI(path), nil
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
