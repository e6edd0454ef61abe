package domain

import "context"

// StatusSource defines the interface for observing media playback state
// Implementations should handle D-Bus/MPRIS communication
type StatusSource interface {
	// Start begins monitoring for playback changes
	// It should block until context is cancelled or an error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the source
	Stop(ctx context.Context) error

	// Changes returns a channel that receives a notification whenever the
	// playback status changes. Notifications carry no payload, read Current.
	Changes() <-chan struct{}

	// Current returns the latest playback status snapshot
	Current() PlaybackStatus
}

// SuspendSource emits a notification when the host is about to suspend.
// The host may be held awake until SuspendHandled is called.
type SuspendSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Suspending() <-chan struct{}
	SuspendHandled()
}

// ArtworkResolver turns artwork identifiers into locators usable in a tile.
// "Not found" is reported as an empty locator with a nil error.
type ArtworkResolver interface {
	// ResolveArtistArt returns a locator for the artist's picture
	ResolveArtistArt(ctx context.Context, artistID string) (string, error)

	// ResolveAlbumArt returns a locator for the album cover
	ResolveAlbumArt(ctx context.Context, albumID string) (string, error)

	// LocalizeArt turns an artwork URL supplied by the player into a locator
	LocalizeArt(ctx context.Context, url string) (string, error)
}

// ImageProcessor defines the interface for in-memory image processing
// This is OS-agnostic and works purely with byte streams
type ImageProcessor interface {
	// Process transforms image data (e.g., crop, resize)
	// Returns the processed image bytes or an error
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// Fetcher defines the interface for retrieving artwork bytes
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TemplateStore loads the tile markup template for a design
type TemplateStore interface {
	Load(design Design) (string, error)
}

// Publisher makes rendered tile markup visible on the shell surface
//
//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/genricoloni/tilesync/internal/domain Publisher,PinManager
type Publisher interface {
	// Publish shows the given markup, replacing whatever was shown before
	Publish(ctx context.Context, markup string) error

	// Clear removes any published content
	Clear(ctx context.Context) error
}

// DismissNotifier is implemented by publishers whose content the user can
// remove without Clear being called
type DismissNotifier interface {
	// OnDismissed registers fn to run after published content disappeared
	OnDismissed(fn func())
}

// PinManager queries and requests pinning of the application launcher
type PinManager interface {
	IsPinned(ctx context.Context) (bool, error)
	CanPin(ctx context.Context) (bool, error)
	RequestPin(ctx context.Context) (bool, error)
}

// Config defines the interface for application configuration
type Config interface {
	// CurrentDesign returns the configured tile design.
	// It is re-read on every call so changes apply to the next update.
	CurrentDesign() Design
}
