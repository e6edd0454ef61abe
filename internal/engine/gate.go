package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/genricoloni/tilesync/internal/domain"
)

// ErrStaleCycle is returned when a Clear happened after the cycle started
var ErrStaleCycle = errors.New("tile was cleared during the update cycle")

// Gate suppresses duplicate publishes. It remembers the fingerprint of the
// last successful publish and serializes publish and clear so the
// fingerprint always describes what is on screen.
type Gate struct {
	publisher domain.Publisher

	mu    sync.Mutex
	last  Fingerprint
	set   bool
	epoch uint64 // advanced by every Clear
}

// NewGate creates a gate in front of publisher with no fingerprint set
func NewGate(publisher domain.Publisher) *Gate {
	return &Gate{publisher: publisher}
}

// Epoch returns the current clear epoch. Update cycles capture it before
// doing any work and hand it back to Publish.
func (g *Gate) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

// Publish shows content unless it is already showing. It reports whether
// the publisher was called. The fingerprint is only stored after the
// publisher succeeded.
func (g *Gate) Publish(ctx context.Context, epoch uint64, content domain.RenderedContent) (bool, error) {
	fp := FingerprintOf(content)

	g.mu.Lock()
	defer g.mu.Unlock()

	if epoch != g.epoch {
		return false, ErrStaleCycle
	}
	if g.set && g.last == fp {
		return false, nil
	}

	if err := g.publisher.Publish(ctx, string(content)); err != nil {
		return true, err
	}

	g.last = fp
	g.set = true
	return true, nil
}

// Clear forgets the fingerprint and removes the tile
func (g *Gate) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.epoch++
	g.set = false
	g.last = Fingerprint{}
	return g.publisher.Clear(ctx)
}

// Forget unsets the fingerprint without touching the publisher, so the next
// cycle publishes even unchanged content. In-flight cycles stay valid.
func (g *Gate) Forget() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.set = false
	g.last = Fingerprint{}
}

// Current returns the stored fingerprint and whether one is set
func (g *Gate) Current() (Fingerprint, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.set
}
