package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/20after4/configdir"
	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/genricoloni/tilesync/internal/fsutil"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	appName           = "tilesync"
	configFile        = "config.toml"
	tileFile          = "tile.xml"
	defaultDesign     = domain.DesignAlbumAndArtistArt
	defaultPublisher  = "notify"
	defaultListenAddr = "127.0.0.1:7655"
)

// FileConfig is the on-disk TOML representation of the configuration
type FileConfig struct {
	Design      string
	TemplateDir string
	CacheDir    string
	Publisher   string
	OutputFile  string
	ListenAddr  string
	AppID       string
}

// AppConfig holds application configuration
type AppConfig struct {
	logger *zap.Logger
	path   string

	templateDir string
	cacheDir    string
	publisher   string
	outputFile  string
	listenAddr  string
	appID       string

	mu     sync.Mutex
	design domain.Design // last design successfully read
}

// NewAppConfig creates a new application configuration instance.
// Values come from the TOML config file, each overridable by a TILESYNC_* variable.
func NewAppConfig(logger *zap.Logger) *AppConfig {
	path := os.Getenv("TILESYNC_CONFIG")
	if path == "" {
		path = filepath.Join(configdir.LocalConfig(appName), configFile)
	}
	path = expandPath(path)

	fc, err := readFile(path)
	if err != nil {
		logger.Warn("Could not read config file, using defaults",
			zap.String("path", path),
			zap.Error(err))
		fc = FileConfig{}
	}

	c := &AppConfig{
		logger:      logger,
		path:        path,
		templateDir: expandPath(override("TILESYNC_TEMPLATE_DIR", fc.TemplateDir)),
		cacheDir:    expandPath(override("TILESYNC_CACHE_DIR", fc.CacheDir)),
		publisher:   override("TILESYNC_PUBLISHER", fc.Publisher),
		outputFile:  expandPath(override("TILESYNC_OUTPUT_FILE", fc.OutputFile)),
		appID:       override("TILESYNC_APP_ID", fc.AppID),
		design:      defaultDesign,
	}

	if c.cacheDir == "" {
		c.cacheDir = configdir.LocalCache(appName)
	}
	if c.outputFile == "" {
		c.outputFile = filepath.Join(c.cacheDir, tileFile)
	}
	if c.publisher == "" {
		c.publisher = defaultPublisher
	}
	if c.appID == "" {
		c.appID = appName
	}

	// An explicitly empty TILESYNC_LISTEN_ADDR disables the control API
	if addr, ok := os.LookupEnv("TILESYNC_LISTEN_ADDR"); ok {
		c.listenAddr = addr
	} else if fc.ListenAddr != "" {
		c.listenAddr = fc.ListenAddr
	} else {
		c.listenAddr = defaultListenAddr
	}

	design := c.CurrentDesign()

	logger.Info("Configuration loaded",
		zap.String("path", path),
		zap.String("design", design.String()),
		zap.String("publisher", c.publisher),
		zap.String("cacheDir", c.cacheDir),
		zap.String("listenAddr", c.listenAddr))

	return c
}

// CurrentDesign returns the configured tile design. The config file is
// re-read on every call; on a read or parse failure the last good value is kept.
func (c *AppConfig) CurrentDesign() domain.Design {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name := os.Getenv("TILESYNC_DESIGN"); name != "" {
		d, err := domain.ParseDesign(name)
		if err == nil {
			return d
		}
		c.logger.Warn("Ignoring invalid TILESYNC_DESIGN", zap.Error(err))
	}

	fc, err := readFile(c.path)
	if err != nil {
		c.logger.Warn("Could not re-read config file, keeping last design",
			zap.String("design", c.design.String()),
			zap.Error(err))
		return c.design
	}
	if fc.Design == "" {
		return c.design
	}

	d, err := domain.ParseDesign(fc.Design)
	if err != nil {
		c.logger.Warn("Invalid design in config file, keeping last design",
			zap.String("design", c.design.String()),
			zap.Error(err))
		return c.design
	}
	c.design = d
	return d
}

// SetDesign persists a new tile design to the config file
func (c *AppConfig) SetDesign(d domain.Design) error {
	if !slices.Contains(domain.Designs(), d) {
		return fmt.Errorf("%w: %v", domain.ErrUnknownDesign, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fc, err := readFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fc.Design = d.String()

	b, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := configdir.MakePath(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// Readers outside this process re-read the file on every cycle
	if err := fsutil.WriteFileAtomic(c.path, b, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	c.design = d
	if os.Getenv("TILESYNC_DESIGN") != "" {
		c.logger.Warn("Design saved but TILESYNC_DESIGN overrides it",
			zap.String("design", d.String()))
	}
	return nil
}

// GetTemplateDir returns the directory holding TileTemplates, empty for the built-in templates
func (c *AppConfig) GetTemplateDir() string {
	return c.templateDir
}

// GetCacheDir returns the directory for localized artwork
func (c *AppConfig) GetCacheDir() string {
	return c.cacheDir
}

// GetPublisher returns the publisher kind ("notify" or "file")
func (c *AppConfig) GetPublisher() string {
	return c.publisher
}

// GetOutputFile returns the file written by the file publisher
func (c *AppConfig) GetOutputFile() string {
	return c.outputFile
}

// GetListenAddr returns the control API address, empty when disabled
func (c *AppConfig) GetListenAddr() string {
	return c.listenAddr
}

// GetAppID returns the desktop application identity used for pinning
func (c *AppConfig) GetAppID() string {
	return c.appID
}

// readFile decodes the TOML config file; a missing file yields an empty config
func readFile(path string) (FileConfig, error) {
	var fc FileConfig

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&fc); err != nil {
		return fc, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return fc, nil
}

func override(env, value string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return value
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
