package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/genricoloni/tilesync/internal/render"
	"go.uber.org/zap"
)

// Engine keeps the tile in sync with playback.
// It listens to status and suspend notifications, renders the tile for the
// current track and publishes it through the dedup gate.
type Engine struct {
	logger    *zap.Logger
	cfg       domain.Config
	status    domain.StatusSource
	suspend   domain.SuspendSource
	artwork   domain.ArtworkResolver
	templates domain.TemplateStore
	pins      domain.PinManager
	gate      *Gate

	ctx    context.Context // parent of the dispatch loop and update tasks
	cancel context.CancelFunc

	mu          sync.Mutex
	initialized bool
	stopped     bool
	tasks       sync.WaitGroup
}

// NewEngine creates a new tile engine
func NewEngine(
	logger *zap.Logger,
	cfg domain.Config,
	status domain.StatusSource,
	suspend domain.SuspendSource,
	artwork domain.ArtworkResolver,
	templates domain.TemplateStore,
	pins domain.PinManager,
	publisher domain.Publisher,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		logger:    logger,
		cfg:       cfg,
		status:    status,
		suspend:   suspend,
		artwork:   artwork,
		templates: templates,
		pins:      pins,
		gate:      NewGate(publisher),
		ctx:       ctx,
		cancel:    cancel,
	}

	if d, ok := publisher.(domain.DismissNotifier); ok {
		d.OnDismissed(e.onDismissed)
	}
	return e
}

// onDismissed runs when the tile left the screen without a clear
func (e *Engine) onDismissed() {
	e.gate.Forget()
	e.logger.Info("Tile dismissed, next update will show it again")
}

// Initialize clears whatever tile a previous run left behind and starts
// listening for status and suspend notifications. Calling it again after a
// success does nothing; after a failure it may be retried.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.stopped {
		return errors.New("engine stopped")
	}

	e.logger.Info("Engine initializing...")

	if err := e.gate.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tile on startup: %w", err)
	}

	e.tasks.Add(1)
	go e.runLoop(e.status.Changes(), e.suspend.Suspending())

	e.initialized = true
	e.logger.Info("Engine initialized")
	return nil
}

// runLoop dispatches notifications until the engine stops or both channels close
func (e *Engine) runLoop(changes, suspending <-chan struct{}) {
	defer e.tasks.Done()

	for changes != nil || suspending != nil {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case _, ok := <-changes:
			if !ok {
				e.logger.Info("Status channel closed")
				changes = nil
				continue
			}
			e.OnStatusChanged()

		case _, ok := <-suspending:
			if !ok {
				e.logger.Info("Suspend channel closed")
				suspending = nil
				continue
			}
			if err := e.OnSuspend(e.ctx); err != nil {
				e.logger.Error("Failed to clear tile on suspend", zap.Error(err))
			}
			e.suspend.SuspendHandled()
		}
	}
}

// OnSuspend clears the tile right away, regardless of updates in flight
func (e *Engine) OnSuspend(ctx context.Context) error {
	if err := e.gate.Clear(ctx); err != nil {
		return err
	}
	e.logger.Info("Cleared tile on suspend")
	return nil
}

// OnStatusChanged starts an update cycle in the background and returns.
// Failures are logged, never returned to the caller.
func (e *Engine) OnStatusChanged() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.tasks.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Tile update panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()

		err := e.Update(e.ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrStaleCycle):
			e.logger.Debug("Dropped update started before a clear")
		default:
			e.logger.Warn("Tile update failed", zap.Error(err))
		}
	}()
}

// Clear removes the tile and forgets the last published fingerprint
func (e *Engine) Clear(ctx context.Context) error {
	return e.gate.Clear(ctx)
}

// Update runs one update cycle for the current playback status.
// A failed cycle leaves the published tile and its fingerprint untouched.
func (e *Engine) Update(ctx context.Context) error {
	epoch := e.gate.Epoch()

	design := e.cfg.CurrentDesign()
	if design == domain.DesignDisabled {
		e.logger.Debug("Tile disabled, clearing")
		return e.gate.Clear(ctx)
	}

	status := e.status.Current()
	artistPhoto, albumPhoto := e.resolveArtwork(ctx, status)

	tmpl, err := e.templates.Load(design)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	content, err := render.Render(tmpl, render.Values(status, artistPhoto, albumPhoto))
	if err != nil {
		return fmt.Errorf("failed to render tile: %w", err)
	}

	published, err := e.gate.Publish(ctx, epoch, content)
	if err != nil {
		if errors.Is(err, ErrStaleCycle) {
			return err
		}
		return fmt.Errorf("failed to publish tile: %w", err)
	}

	if !published {
		e.logger.Debug("Tile unchanged, skipping publish",
			zap.String("track", status.TrackName))
		return nil
	}

	e.logger.Info("Tile updated",
		zap.String("track", status.TrackName),
		zap.String("artist", status.ArtistName),
		zap.String("design", design.String()),
		zap.Stringer("fingerprint", FingerprintOf(content)))
	return nil
}

// resolveArtwork looks up artist and album art concurrently.
// A failed or missing lookup yields an empty locator.
func (e *Engine) resolveArtwork(ctx context.Context, status domain.PlaybackStatus) (artist, album string) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		artist = e.lookup(ctx, "artist", func() (string, error) {
			return e.artwork.ResolveArtistArt(ctx, status.ArtistID)
		})
	}()

	go func() {
		defer wg.Done()
		album = e.lookup(ctx, "album", func() (string, error) {
			if status.ArtURL != "" {
				return e.artwork.LocalizeArt(ctx, status.ArtURL)
			}
			return e.artwork.ResolveAlbumArt(ctx, status.AlbumID)
		})
	}()

	wg.Wait()
	return artist, album
}

func (e *Engine) lookup(ctx context.Context, kind string, resolve func() (string, error)) (locator string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Artwork lookup panicked",
				zap.String("kind", kind),
				zap.Any("panic", r))
			locator = ""
		}
	}()

	locator, err := resolve()
	if err != nil {
		e.logger.Warn("Artwork lookup failed, continuing without it",
			zap.String("kind", kind),
			zap.Error(err))
		return ""
	}
	return locator
}

// QueryPinned reports whether the application is pinned
func (e *Engine) QueryPinned(ctx context.Context) (bool, error) {
	pinned, err := e.pins.IsPinned(ctx)
	if err != nil {
		e.logger.Warn("Failed to query pin state", zap.Error(err))
		return false, err
	}
	return pinned, nil
}

// QueryCanPin reports whether pinning is supported here
func (e *Engine) QueryCanPin(ctx context.Context) (bool, error) {
	supported, err := e.pins.CanPin(ctx)
	if err != nil {
		e.logger.Warn("Failed to query pin support", zap.Error(err))
		return false, err
	}
	return supported, nil
}

// RequestPin asks the shell to pin the application
func (e *Engine) RequestPin(ctx context.Context) (bool, error) {
	pinned, err := e.pins.RequestPin(ctx)
	if err != nil {
		e.logger.Warn("Pin request failed", zap.Error(err))
		return false, err
	}
	e.logger.Info("Pin requested", zap.Bool("pinned", pinned))
	return pinned, nil
}

// Stop ends the dispatch loop, waits for running updates and clears the tile
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("Timed out waiting for tile updates")
	}

	if err := e.gate.Clear(ctx); err != nil {
		e.logger.Error("Failed to clear tile on shutdown", zap.Error(err))
		return err
	}

	e.logger.Info("Tile cleared")
	return nil
}
